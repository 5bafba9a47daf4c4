package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody reads at most limit bytes of JSON into dst. On failure it
// returns the status to answer with.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid body: %w", err)
	}
	return 0, nil
}

// StatusFor maps domain and infrastructure errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidLatitude),
		errors.Is(err, entity.ErrInvalidLongitude),
		errors.Is(err, entity.ErrIDIsRequired):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrFixTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}
