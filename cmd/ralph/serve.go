package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ralph-api/internal"
	"ralph-api/internal/config"
	"ralph-api/internal/store/postgres"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	if migrate && a.cfg.Storage.Driver == config.DriverPostgres {
		if err := a.migrateUp(ctx); err != nil {
			return err
		}
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	srv, err := internal.NewServer(a.cfg, st, a.log)
	if err != nil {
		st.Close()
		return err
	}

	httpServer := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.WithFields(logrus.Fields{
		"addr":         a.cfg.HTTP.Addr,
		"storage":      a.cfg.Storage.Driver,
		"jwt_issuer":   a.cfg.JWT.Issuer,
		"jwt_audience": a.cfg.JWT.Audience,
		"jwt_expiry":   a.cfg.JWT.Expiry.String(),
		"rate_limit":   srv.Limiter != nil,
	}).Info("starting ralph api")

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		srv.Close(context.Background())
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Error("graceful shutdown failed")
	}
	return srv.Close(shutdownCtx)
}

func (a *app) migrateUp(ctx context.Context) error {
	m, err := postgres.NewMigrator(ctx, a.cfg.Storage.DSN, a.log)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}
