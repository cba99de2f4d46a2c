package middleware

import (
	"encoding/json"
	"net/http"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/models"
	"precioverdadero/internal/validation"
)

// BodyLimit refuses requests whose declared length exceeds maxBytes and
// caps the body reader for the rest.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := validation.ValidateHTTPRequestSize(r, maxBytes); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(models.APIResponse{Message: errors.GetUserMessage(err)})
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
