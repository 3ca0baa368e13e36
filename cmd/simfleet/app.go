package main

import (
	"context"
	"log/slog"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/audit"
	"simfleet-svr/internal/config"
	"simfleet-svr/internal/observability"
	"simfleet-svr/internal/providers/flespi"
	"simfleet-svr/internal/providers/phenix"
	"simfleet-svr/internal/providers/siv"
	"simfleet-svr/internal/providers/thingsmobile"
	"simfleet-svr/internal/providers/truphone"
	"simfleet-svr/internal/store"
)

type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	audit  *audit.Logger
}

// newApp carga config y logger. Con requireRedis=false un Redis caído sólo
// deja el servicio sin cache.
func newApp(ctx context.Context, requireRedis bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel)
	a := &app{cfg: cfg, logger: logger, audit: audit.New(cfg.AuditDir, "AUDIT", logger)}

	st, err := store.InitRedis(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		if requireRedis {
			return nil, err
		}
		logger.Warn("Redis unavailable, running without cache", "error", err)
	}
	a.store = st
	return a, nil
}

func (a *app) simProviders() []aggregate.SIMProvider {
	var out []aggregate.SIMProvider
	c := a.cfg
	if c.ThingsMobileEnabled() {
		out = append(out, thingsmobile.New(c.ThingsMobile.BaseURL, c.ThingsMobile.Username, c.ThingsMobile.Token, c.HTTPTimeout))
	}
	if c.TruphoneEnabled() {
		out = append(out, truphone.New(c.Truphone.BaseURL, c.Truphone.APIKey, c.HTTPTimeout))
	}
	if c.PhenixEnabled() {
		out = append(out, phenix.New(c.Phenix.BaseURL, c.Phenix.ClientID, c.Phenix.ClientSecret, c.HTTPTimeout))
	}
	return out
}

// service arma el agregador; events y forwarder los añade serve.
func (a *app) service(deps aggregate.Deps) *aggregate.Service {
	if a.cfg.FlespiEnabled() {
		deps.Devices = flespi.New(a.cfg.Flespi.BaseURL, a.cfg.Flespi.Token, a.cfg.HTTPTimeout)
	}
	if a.store != nil {
		deps.Cache = a.store
	}
	if a.audit != nil {
		deps.Audit = a.audit
	}
	return aggregate.New(a.simProviders(), deps, aggregate.Options{
		CacheTTL:       a.cfg.CacheTTL,
		MaxConcurrency: a.cfg.MaxConcurrency,
		RequestsPerSec: a.cfg.RequestsPerSec,
	}, a.logger)
}

func (a *app) vehicles() *siv.Service {
	if !a.cfg.SIVEnabled() {
		return nil
	}
	var cache siv.Cache
	if a.store != nil {
		cache = a.store
	}
	var aud siv.Auditor
	if a.audit != nil {
		aud = a.audit
	}
	client := siv.New(a.cfg.SIV.BaseURL, a.cfg.SIV.APIKey, a.cfg.HTTPTimeout)
	return siv.NewService(client, cache, aud, a.cfg.SIV.DailyQuota, a.logger)
}
