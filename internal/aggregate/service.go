// Package aggregate junta los proveedores de SIM y Flespi en una sola vista:
// inventario unificado, búsqueda, cambios de estado y enriquecimiento de
// dispositivos.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"simfleet-svr/internal/providers/flespi"
	"simfleet-svr/internal/sim"
)

var (
	ErrInvalidStatus  = errors.New("status must be active or suspended")
	ErrNoDeviceSource = errors.New("flespi is not configured")
)

// SIMProvider lo implementan thingsmobile, phenix y truphone.
type SIMProvider interface {
	Name() sim.Provider
	ListSIMs(ctx context.Context, page, pageSize int) ([]sim.SIM, int, error)
	GetSIM(ctx context.Context, iccid string) (sim.SIM, error)
	SetStatus(ctx context.Context, iccid string, st sim.Status) error
}

type DeviceSource interface {
	Devices(ctx context.Context) ([]flespi.Device, error)
	Telemetry(ctx context.Context, id int64) (flespi.Telemetry, error)
	Assets(ctx context.Context) ([]flespi.Asset, error)
	AssetIntervals(ctx context.Context, assetID int64) ([]flespi.Interval, error)
}

type Cache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// dev:<imei>:iccid
	SaveStringSafe(ctx context.Context, key, value string, ttl time.Duration)
	GetStrings(ctx context.Context, keys []string) map[string]string
}

type EventPublisher interface {
	SendSIMStatus(iccid, provider, status, previous string)
	SendInventoryRefresh(total int, byProvider map[string]int, errs map[string]string)
}

type SnapshotForwarder interface {
	SendSnapshot(ctx context.Context, s sim.Summary) error
}

type Auditor interface {
	Record(action string, kv ...any)
}

type Options struct {
	CacheTTL       time.Duration
	MaxConcurrency int
	RequestsPerSec float64
	// PageSize al paginar los proveedores.
	PageSize int
	// MaxPages corta proveedores que nunca devuelven una página corta.
	MaxPages int
}

func (o *Options) setDefaults() {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 4
	}
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 200
	}
}

// Deps son los colaboradores opcionales; cualquiera puede quedar a nil.
type Deps struct {
	Devices   DeviceSource
	Cache     Cache
	Events    EventPublisher
	Forwarder SnapshotForwarder
	Audit     Auditor
}

type Service struct {
	providers map[sim.Provider]SIMProvider
	order     []sim.Provider
	deps      Deps
	opts      Options
	limiter   *rate.Limiter
	group     singleflight.Group
	logger    *slog.Logger
	now       func() time.Time
}

func New(providers []SIMProvider, deps Deps, opts Options, lg *slog.Logger) *Service {
	opts.setDefaults()
	s := &Service{
		providers: make(map[sim.Provider]SIMProvider, len(providers)),
		deps:      deps,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    lg.With("component", "aggregate"),
		now:       time.Now,
	}
	if opts.RequestsPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := s.providers[p.Name()]; !dup {
			s.order = append(s.order, p.Name())
		}
		s.providers[p.Name()] = p
	}
	return s
}

// Providers en el orden de registro; ese orden decide quién gana al fusionar.
func (s *Service) Providers() []sim.Provider {
	return append([]sim.Provider(nil), s.order...)
}
