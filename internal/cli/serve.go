package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/eshaffer321/expense-matcher/internal/api"
)

const shutdownTimeout = 30 * time.Second

// runServe runs the API server until ctx is cancelled.
func (a *app) runServe(ctx context.Context, port int) error {
	if err := a.setup("api"); err != nil {
		return err
	}
	if port > 0 {
		a.cfg.Server.Port = port
	}

	services, closeStore, err := a.openServices()
	if err != nil {
		return err
	}
	defer closeStore()

	apiCfg := api.Config{
		Port:                      a.cfg.Server.Port,
		AllowedOrigins:            a.cfg.Server.AllowedOrigins,
		MaxUploadBytes:            api.DefaultMaxUploadBytes,
		DefaultAutoMatchThreshold: a.cfg.Matching.AutoMatchThreshold,
	}
	server := api.NewServer(apiCfg, services, a.logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", slog.Any("error", err))
	}
	err = <-errc
	a.logger.Info("server stopped")
	return err
}
