package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"simfleet-svr/internal/observability"
	"simfleet-svr/internal/operator"
	"simfleet-svr/internal/sim"
)

const (
	inventoryKey = "inventory"
	operatorTTL  = 24 * time.Hour
)

type Inventory struct {
	SIMs      []sim.SIM         `json:"sims"`
	Errors    map[string]string `json:"errors,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
	Cached    bool              `json:"cached"`
}

// ListAll consulta todos los proveedores en paralelo y fusiona por ICCID.
// Sólo devuelve error si fallan todos; los fallos parciales van en Errors.
func (s *Service) ListAll(ctx context.Context) (Inventory, error) {
	lists := make([][]sim.SIM, len(s.order))
	perrs := ProviderErrors{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range s.order {
		i, name := i, name
		p := s.providers[name]
		g.Go(func() error {
			items, err := s.listProvider(gctx, p)
			if err != nil {
				s.logger.Warn("provider list failed", "provider", name, "err", err)
				mu.Lock()
				perrs[name] = err
				mu.Unlock()
				return nil
			}
			lists[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Inventory{}, err
	}
	if len(s.order) > 0 && len(perrs) == len(s.order) {
		return Inventory{}, perrs
	}

	merged := sim.MergeAll(lists...)
	for i := range merged {
		merged[i].Operator = operator.Detect(merged[i])
	}
	return Inventory{SIMs: merged, Errors: perrs.Strings(), FetchedAt: s.now().UTC()}, nil
}

// listProvider recorre todas las páginas, esperando al limiter antes de cada una.
func (s *Service) listProvider(ctx context.Context, p SIMProvider) ([]sim.SIM, error) {
	var all []sim.SIM
	size := s.opts.PageSize
	for page := 1; page <= s.opts.MaxPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		items, total, err := p.ListSIMs(ctx, page, size)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for _, it := range items {
			if norm, err := sim.NormalizeICCID(it.ICCID); err == nil {
				it.ICCID = norm
			} else {
				it.ICCID = strings.TrimSpace(it.ICCID)
			}
			if it.Provider == sim.ProviderUnknown {
				it.Provider = p.Name()
			}
			all = append(all, it)
		}
		if len(items) < size || (total >= 0 && len(all) >= total) {
			break
		}
	}
	return all, nil
}

// Inventory devuelve el inventario cacheado o lo recarga. Las recargas
// concurrentes comparten una sola llamada a los proveedores.
func (s *Service) Inventory(ctx context.Context, refresh bool) (Inventory, error) {
	if !refresh && s.deps.Cache != nil {
		var inv Inventory
		ok, err := s.deps.Cache.GetJSON(ctx, inventoryKey, &inv)
		if err != nil {
			s.logger.Warn("inventory cache read failed", "err", err)
		}
		if ok {
			observability.CacheHits.WithLabelValues("inventory").Inc()
			inv.Cached = true
			return inv, nil
		}
		observability.CacheMisses.WithLabelValues("inventory").Inc()
	}

	v, err, _ := s.group.Do(inventoryKey, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return Inventory{}, err
	}
	return v.(Inventory), nil
}

func (s *Service) refresh(ctx context.Context) (Inventory, error) {
	inv, err := s.ListAll(ctx)
	if err != nil {
		var perrs ProviderErrors
		if errors.As(err, &perrs) && s.deps.Events != nil {
			s.deps.Events.SendInventoryRefresh(0, nil, perrs.Strings())
		}
		return Inventory{}, err
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetJSON(ctx, inventoryKey, inv, s.opts.CacheTTL); err != nil {
			s.logger.Warn("inventory cache write failed", "err", err)
		}
	}

	summary := sim.Summarize(inv.SIMs, inv.FetchedAt)
	summary.Errors = inv.Errors
	for _, name := range s.order {
		observability.InventorySIMs.WithLabelValues(string(name)).Set(float64(summary.ByProvider[string(name)]))
	}
	if s.deps.Events != nil {
		s.deps.Events.SendInventoryRefresh(summary.Total, summary.ByProvider, summary.Errors)
	}
	if s.deps.Forwarder != nil {
		if err := s.deps.Forwarder.SendSnapshot(ctx, summary); err != nil {
			s.logger.Warn("snapshot forward failed", "err", err)
		}
	}
	s.logger.Info("inventory refreshed", "total", summary.Total, "failed_providers", len(inv.Errors))
	return inv, nil
}

// Result es una página de búsqueda más los fallos parciales de proveedores.
type Result struct {
	sim.Page[sim.SIM]
	Errors    map[string]string `json:"errors,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
	Cached    bool              `json:"cached"`
}

func (s *Service) Search(ctx context.Context, q sim.Query, page, size int, refresh bool) (Result, error) {
	inv, err := s.Inventory(ctx, refresh)
	if err != nil {
		return Result{}, err
	}
	items := sim.Filter(inv.SIMs, q)
	sim.Sort(items, q.Sort, q.Desc)
	return Result{
		Page:      sim.Paginate(items, page, size),
		Errors:    inv.Errors,
		FetchedAt: inv.FetchedAt,
		Cached:    inv.Cached,
	}, nil
}

// Get busca en el inventario y, si no está, pregunta directamente al
// proveedor que emite ese rango de ICCID.
func (s *Service) Get(ctx context.Context, raw string) (sim.SIM, error) {
	iccid, err := sim.NormalizeICCID(raw)
	if err != nil {
		return sim.SIM{}, err
	}
	inv, err := s.Inventory(ctx, false)
	if err != nil {
		s.logger.Warn("inventory unavailable, asking provider directly", "iccid", iccid, "err", err)
	}
	for _, it := range inv.SIMs {
		if it.ICCID == iccid {
			return it, nil
		}
	}
	return s.getDirect(ctx, iccid)
}

func (s *Service) getDirect(ctx context.Context, iccid string) (sim.SIM, error) {
	platform := operator.PlatformForICCID(iccid)
	p, ok := s.providers[platform]
	if !ok {
		return sim.SIM{}, fmt.Errorf("%s: %w", iccid, sim.ErrNotFound)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return sim.SIM{}, err
	}
	got, err := p.GetSIM(ctx, iccid)
	if err != nil {
		return sim.SIM{}, err
	}
	if got.ICCID == "" {
		got.ICCID = iccid
	}
	if got.Provider == sim.ProviderUnknown {
		got.Provider = platform
	}
	got.Operator = operator.Detect(got)
	return got, nil
}

// SetStatus cambia el estado en el proveedor dueño de la SIM e invalida el
// inventario cacheado.
func (s *Service) SetStatus(ctx context.Context, raw string, st sim.Status) (sim.SIM, error) {
	if st != sim.StatusActive && st != sim.StatusSuspended {
		return sim.SIM{}, ErrInvalidStatus
	}
	cur, err := s.Get(ctx, raw)
	if err != nil {
		return sim.SIM{}, err
	}
	p, ok := s.providers[cur.Provider]
	if !ok {
		return sim.SIM{}, fmt.Errorf("%s via %q: %w", cur.ICCID, cur.Provider, sim.ErrUnsupported)
	}
	if err := p.SetStatus(ctx, cur.ICCID, st); err != nil {
		return sim.SIM{}, err
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Delete(ctx, inventoryKey); err != nil {
			s.logger.Warn("inventory cache invalidation failed", "err", err)
		}
	}
	if s.deps.Events != nil {
		s.deps.Events.SendSIMStatus(cur.ICCID, string(cur.Provider), string(st), string(cur.Status))
	}
	if s.deps.Audit != nil {
		s.deps.Audit.Record("sim_status", "iccid", cur.ICCID, "provider", cur.Provider, "from", cur.Status, "to", st)
	}
	s.logger.Info("sim status changed", "iccid", cur.ICCID, "provider", cur.Provider, "from", cur.Status, "to", st)

	cur.Status = st
	cur.RawStatus = ""
	return cur, nil
}

// Detect resuelve el operador. Se cachea sólo lo que sale del ICCID; la
// plataforma del llamador se aplica después de leer la cache.
func (s *Service) Detect(ctx context.Context, in sim.SIM) sim.Operator {
	iccid, err := sim.NormalizeICCID(in.ICCID)
	if err != nil || s.deps.Cache == nil || in.IMSI != "" {
		return operator.Detect(in)
	}
	in.ICCID = iccid
	key := "operator:" + iccid
	var op sim.Operator
	if ok, _ := s.deps.Cache.GetJSON(ctx, key, &op); ok {
		observability.CacheHits.WithLabelValues("operator").Inc()
		return operator.WithPlatform(op, in)
	}
	observability.CacheMisses.WithLabelValues("operator").Inc()
	op, ok := operator.DetectFromICCID(iccid)
	if !ok {
		return operator.Detect(in)
	}
	if err := s.deps.Cache.SetJSON(ctx, key, op, operatorTTL); err != nil {
		s.logger.Warn("operator cache write failed", "iccid", iccid, "err", err)
	}
	return operator.WithPlatform(op, in)
}
