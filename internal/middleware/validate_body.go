package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/eventpass/backend/internal/schema"
)

// maxBodyBytes caps request bodies; every request schema is far smaller.
const maxBodyBytes = 64 << 10

// BodyValidator checks a raw body against a named schema.
type BodyValidator interface {
	Validate(name string, body []byte) error
}

// ValidateBody reads the body, rejects it with 400 unless it matches the
// named schema, then replaces r.Body so downstream handlers can re-read it.
func ValidateBody(v BodyValidator, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			r.Body.Close()
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "failed to read body")
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			if err := v.Validate(name, bodyBytes); err != nil {
				if errors.Is(err, schema.ErrValidation) {
					writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, "internal", "request validation unavailable")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
