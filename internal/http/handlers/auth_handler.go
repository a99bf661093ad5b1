package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MozzammelRidoy/car-doctor-server/internal/domain"
	mw "github.com/MozzammelRidoy/car-doctor-server/internal/http/middleware"
	"github.com/MozzammelRidoy/car-doctor-server/internal/http/response"
	"github.com/MozzammelRidoy/car-doctor-server/internal/platform/token"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
)

// AuthHandler mints and clears the session cookie. There is no server-side
// session state: logout only tells the client to drop the cookie, expiry does
// the rest.
type AuthHandler struct {
	secret string
	ttl    time.Duration
}

func NewAuthHandler(secret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{secret: secret, ttl: ttl}
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var identity token.Identity
	if err := json.NewDecoder(r.Body).Decode(&identity); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if !domain.IsValidEmail(identity.Email) {
		response.BadRequest(w, "a valid email is required")
		return
	}
	// role is assigned server-side, never taken from the login payload
	identity.Role = ""

	tok, err := token.Issue(identity, h.secret, h.ttl)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to issue token", "error", err)
		response.InternalError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     mw.SessionCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	response.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	response.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
