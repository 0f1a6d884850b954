package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/webmonitor/internal/auth"
	"github.com/user/webmonitor/internal/delivery/http/response"
)

// Auth attaches the bearer token's user to the request context. Requests
// without a token pass through anonymously; a bad token is rejected.
func Auth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := auth.BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := v.Verify(tok)
			if err != nil {
				slog.Debug("Rejected bearer token", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(response.ErrorResponse{
					Message: "Unauthorized",
					Code:    response.CodeUnauthorized,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}
