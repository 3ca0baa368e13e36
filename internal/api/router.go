// Package api expone el inventario de SIMs, los dispositivos Flespi y la
// consulta SIV por HTTP/JSON.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/providers/siv"
	"simfleet-svr/internal/sim"
)

type SIMService interface {
	Search(ctx context.Context, q sim.Query, page, size int, refresh bool) (aggregate.Result, error)
	Get(ctx context.Context, iccid string) (sim.SIM, error)
	SetStatus(ctx context.Context, iccid string, st sim.Status) (sim.SIM, error)
	Detect(ctx context.Context, s sim.SIM) sim.Operator
	EnrichDevices(ctx context.Context) ([]aggregate.Device, error)
	Assets(ctx context.Context) ([]aggregate.AssetView, error)
}

type VehicleLookup interface {
	Lookup(ctx context.Context, plate string) (siv.Vehicle, error)
}

// QuotaReporter lo implementa opcionalmente el VehicleLookup.
type QuotaReporter interface {
	QuotaRemaining(ctx context.Context) (int, bool)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	sims     SIMService
	vehicles VehicleLookup
	ready    Pinger
	logger   *slog.Logger
}

// NewServer: vehicles y ready pueden ser nil.
func NewServer(sims SIMService, vehicles VehicleLookup, ready Pinger, lg *slog.Logger) *Server {
	return &Server{sims: sims, vehicles: vehicles, ready: ready, logger: lg.With("component", "api")}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sims", func(r chi.Router) {
			r.Get("/", s.listSIMs)
			r.Get("/{iccid}", s.getSIM)
			r.Post("/{iccid}/status", s.setStatus)
		})
		r.Get("/operators/detect", s.detectOperator)
		r.Get("/devices", s.listDevices)
		r.Get("/assets", s.listAssets)
		r.Get("/vehicles/{plate}", s.lookupVehicle)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "redis unavailable"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
