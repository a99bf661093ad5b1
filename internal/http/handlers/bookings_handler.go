package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MozzammelRidoy/car-doctor-server/internal/domain"
	mw "github.com/MozzammelRidoy/car-doctor-server/internal/http/middleware"
	"github.com/MozzammelRidoy/car-doctor-server/internal/http/response"
	"github.com/MozzammelRidoy/car-doctor-server/internal/repo/postgres"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/events"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type BookingsHandler struct {
	repo postgres.BookingsRepository
	bus  events.Publisher
}

func NewBookingsHandler(repo postgres.BookingsRepository, bus events.Publisher) *BookingsHandler {
	return &BookingsHandler{repo: repo, bus: bus}
}

func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	id, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create booking", "error", err)
		response.InternalError(w)
		return
	}

	h.publish(r, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:     id,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		ServiceID:     req.ServiceID,
		ServiceTitle:  req.ServiceTitle,
		CreatedAt:     time.Now(),
	})

	response.JSON(w, http.StatusCreated, map[string]int64{"insertedId": id})
}

// List returns the caller's bookings. The email filter must match the session
// identity exactly; without a filter the session identity scopes the query.
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		email = claims.Email
	} else if email != claims.Email {
		response.Forbidden(w)
		return
	}

	bookings, err := h.repo.ListByEmail(r.Context(), email)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list bookings", "error", err)
		response.InternalError(w)
		return
	}

	if bookings == nil {
		bookings = []domain.Booking{}
	}
	response.JSON(w, http.StatusOK, bookings)
}

// ListAll is the explicit list-everything capability, admin only.
func (h *BookingsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.repo.ListAll(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list all bookings", "error", err)
		response.InternalError(w)
		return
	}

	if bookings == nil {
		bookings = []domain.Booking{}
	}
	response.JSON(w, http.StatusOK, bookings)
}

func (h *BookingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "bad id")
		return
	}

	var patch domain.BookingStatusPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if patch.Status == "" {
		response.BadRequest(w, "status is required")
		return
	}

	b, err := h.repo.UpdateStatus(r.Context(), id, patch.Status)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update booking status", "id", id, "error", err)
		response.InternalError(w)
		return
	}
	if b == nil {
		response.JSON(w, http.StatusOK, map[string]int64{"modifiedCount": 0})
		return
	}

	h.publish(r, events.BookingStatusChanged, events.BookingStatusChangedEvent{
		BookingID:     b.ID,
		CustomerEmail: b.CustomerEmail,
		Status:        string(b.Status),
		ChangedAt:     time.Now(),
	})

	response.JSON(w, http.StatusOK, map[string]int64{"modifiedCount": 1})
}

func (h *BookingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "bad id")
		return
	}

	deleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to delete booking", "id", id, "error", err)
		response.InternalError(w)
		return
	}

	if deleted > 0 {
		h.publish(r, events.BookingDeleted, events.BookingDeletedEvent{
			BookingID: id,
			DeletedAt: time.Now(),
		})
	}

	response.JSON(w, http.StatusOK, map[string]int64{"deletedCount": deleted})
}

func (h *BookingsHandler) publish(r *http.Request, subject string, payload any) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(r.Context(), subject, payload); err != nil {
		logger.ErrorContext(r.Context(), "failed to publish event", "subject", subject, "error", err)
	}
}
