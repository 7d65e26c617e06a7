package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"earlykickoff-backend/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP codes. Messages stay generic so no
// storage or gateway detail reaches the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrQRPathNotFound):
		return http.StatusNotFound, "qr path not found"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEventMismatch):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrTaskNotClaimable):
		return http.StatusConflict, "task is running"
	case errors.Is(err, domain.ErrGateway), errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream error"
	}
	return http.StatusInternalServerError, "internal error"
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
