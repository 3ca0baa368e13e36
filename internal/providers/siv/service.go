package siv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"simfleet-svr/internal/observability"
)

var ErrQuotaExceeded = errors.New("daily SIV lookup quota exceeded")

const CacheTTL = 30 * 24 * time.Hour

// Cache es lo que el servicio necesita de store.Store.
type Cache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	IncDailyCounter(ctx context.Context, name string, limit int) (bool, int64, error)
	DailyCount(ctx context.Context, name string) (int64, error)
}

type Auditor interface {
	Record(action string, kv ...any)
}

type Looker interface {
	Lookup(ctx context.Context, plate string) (Vehicle, error)
}

// Service añade cache de 30 días y cuota diaria sobre el Client.
type Service struct {
	client Looker
	cache  Cache
	audit  Auditor
	quota  int
	logger *slog.Logger
}

func NewService(client Looker, cache Cache, audit Auditor, dailyQuota int, lg *slog.Logger) *Service {
	return &Service{client: client, cache: cache, audit: audit, quota: dailyQuota, logger: lg.With("component", "siv")}
}

func (s *Service) Lookup(ctx context.Context, plate string) (Vehicle, error) {
	norm, err := NormalizePlate(plate)
	if err != nil {
		observability.SIVLookups.WithLabelValues("invalid").Inc()
		return Vehicle{}, err
	}
	key := "siv:" + norm

	if s.cache != nil {
		var v Vehicle
		ok, err := s.cache.GetJSON(ctx, key, &v)
		if err != nil {
			s.logger.Warn("siv cache read failed", "plate", norm, "err", err)
		}
		if ok {
			observability.CacheHits.WithLabelValues("siv").Inc()
			observability.SIVLookups.WithLabelValues("cached").Inc()
			return v, nil
		}
		observability.CacheMisses.WithLabelValues("siv").Inc()

		allowed, n, err := s.cache.IncDailyCounter(ctx, "siv", s.quota)
		if err != nil {
			return Vehicle{}, fmt.Errorf("siv quota: %w", err)
		}
		if !allowed {
			observability.SIVLookups.WithLabelValues("quota").Inc()
			s.logger.Warn("siv quota exceeded", "plate", norm, "count", n, "limit", s.quota)
			return Vehicle{}, ErrQuotaExceeded
		}
	}

	v, err := s.client.Lookup(ctx, norm)
	switch {
	case errors.Is(err, ErrVehicleNotFound):
		observability.SIVLookups.WithLabelValues("not_found").Inc()
		s.record(norm, "not_found")
		return Vehicle{}, err
	case err != nil:
		observability.SIVLookups.WithLabelValues("error").Inc()
		return Vehicle{}, err
	}
	observability.SIVLookups.WithLabelValues("ok").Inc()
	s.record(norm, "ok")

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, v, CacheTTL); err != nil {
			s.logger.Warn("siv cache write failed", "plate", norm, "err", err)
		}
	}
	return v, nil
}

// QuotaRemaining dice cuántas consultas pagadas quedan hoy. ok es false si no
// hay cuota configurada o no se puede leer el contador.
func (s *Service) QuotaRemaining(ctx context.Context) (remaining int, ok bool) {
	if s.cache == nil || s.quota <= 0 {
		return 0, false
	}
	n, err := s.cache.DailyCount(ctx, "siv")
	if err != nil {
		s.logger.Warn("siv quota read failed", "err", err)
		return 0, false
	}
	return max(s.quota-int(n), 0), true
}

func (s *Service) record(plate, outcome string) {
	if s.audit != nil {
		s.audit.Record("siv_lookup", "plate", plate, "outcome", outcome)
	}
}
