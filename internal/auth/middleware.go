package auth

import (
	"net/http"
	"strings"

	"github.com/mealpoint/mealpoint/internal/platform/httpx"
	"github.com/mealpoint/mealpoint/internal/shared"
)

// Middleware extracts and validates the bearer token, attaching the principal
// to the request context. Requests without a valid token get 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}

		principal, err := s.ParseToken(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.ContextWithAuth(r.Context(), principal)))
	})
}
