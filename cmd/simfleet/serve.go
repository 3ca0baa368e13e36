package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/api"
	"simfleet-svr/internal/grpcclient"
	"simfleet-svr/internal/link"
	"simfleet-svr/internal/observability"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Arranca la API HTTP y el servidor de métricas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.store.Close()
	logger := a.logger
	logger.Info("Starting simfleet-svr...", "port", a.cfg.HTTPPort)

	var deps aggregate.Deps
	lk := link.New(a.cfg.ProxyAddr, logger)
	if lk != nil {
		deps.Events = lk
	}
	if a.cfg.GRPCServer != "" {
		gc, err := grpcclient.NewGRPCClient(a.cfg.GRPCServer, logger)
		if err != nil {
			return err
		}
		defer gc.Close()
		deps.Forwarder = gc
	}
	svc := a.service(deps)

	if lk != nil {
		lk.OnLine = linkLineHandler(ctx, svc, logger)
		go lk.Run(ctx)
	}

	go func() {
		if err := observability.StartMetricsServer(a.cfg.MetricsPort); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	var server *api.Server
	if v := a.vehicles(); v != nil {
		server = api.NewServer(svc, v, a.store, logger)
	} else {
		server = api.NewServer(svc, nil, a.store, logger)
	}
	httpSrv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
