package middleware

import (
	"context"
	"net/http"

	"github.com/MozzammelRidoy/car-doctor-server/internal/http/response"
	"github.com/MozzammelRidoy/car-doctor-server/internal/platform/token"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// SessionCookie is the name of the cookie carrying the session credential.
const SessionCookie = "token"

type Session struct {
	secret string
}

func NewSession(secret string) *Session {
	return &Session{secret: secret}
}

// Require gates a route on a valid session credential. The failure reason is
// never distinguished to the client: missing cookie, bad signature and expiry
// all produce the same 401.
func (s *Session) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := token.Verify(cookie.Value, s.secret)
		if err != nil {
			response.Unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), CtxClaims, claims)
		ctx = context.WithValue(ctx, logger.UserEmailKey, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin layers the admin capability check on top of Require.
func (s *Session) RequireAdmin(next http.Handler) http.Handler {
	return s.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := Claims(r)
		if claims == nil || claims.Role != "admin" {
			response.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func Claims(r *http.Request) *token.Claims {
	if v := r.Context().Value(CtxClaims); v != nil {
		if c, ok := v.(*token.Claims); ok {
			return c
		}
	}
	return nil
}
