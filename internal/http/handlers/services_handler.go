package handlers

import (
	"net/http"
	"strconv"

	"github.com/MozzammelRidoy/car-doctor-server/internal/domain"
	"github.com/MozzammelRidoy/car-doctor-server/internal/http/response"
	"github.com/MozzammelRidoy/car-doctor-server/internal/repo/postgres"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ServicesHandler struct {
	repo postgres.ServicesRepository
}

func NewServicesHandler(repo postgres.ServicesRepository) *ServicesHandler {
	return &ServicesHandler{repo: repo}
}

func (h *ServicesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ServiceFilter{
		Search: r.URL.Query().Get("search"),
		Sort:   domain.ParseSortOrder(r.URL.Query().Get("sort")),
	}

	services, err := h.repo.List(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list services", "error", err)
		response.InternalError(w)
		return
	}

	if services == nil {
		services = []domain.Service{}
	}
	response.JSON(w, http.StatusOK, services)
}

func (h *ServicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		// structurally invalid id is a recoverable empty result, not a fault
		response.JSON(w, http.StatusOK, nil)
		return
	}

	svc, err := h.repo.Get(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to get service", "id", id, "error", err)
		response.InternalError(w)
		return
	}
	if svc == nil {
		response.NotFound(w, "service not found")
		return
	}

	response.JSON(w, http.StatusOK, svc)
}
