package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/providers/siv"
	"simfleet-svr/internal/sim"
)

type errorBody struct {
	Error string `json:"error"`
}

// errBadRequest marca errores de parámetros del propio handler.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error { return errBadRequest{msg: msg} }

func statusFor(err error) int {
	var br errBadRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, sim.ErrInvalidICCID),
		errors.Is(err, siv.ErrInvalidPlate),
		errors.Is(err, aggregate.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, sim.ErrNotFound),
		errors.Is(err, siv.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, siv.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, sim.ErrUnsupported),
		errors.Is(err, aggregate.ErrNoDeviceSource):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
