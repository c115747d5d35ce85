package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"smartspend/internal/core"
)

type contextKey string

const userIDKey contextKey = "user_id"

// withUser authenticates the request from the X-User-ID header. The
// header must name an existing user; everything under /api requires it.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			writeError(w, r, fmt.Errorf("%w: missing X-User-ID header", core.ErrUnauthorized))
			return
		}
		if _, err := s.storage.GetUser(r.Context(), userID); err != nil {
			writeError(w, r, fmt.Errorf("%w: unknown user", core.ErrUnauthorized))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
