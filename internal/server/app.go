// Package server wires configuration, storage, and the HTTP API into a
// runnable sync server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fortress/internal/logging"
	"github.com/dmitrijs2005/fortress/internal/server/config"
	"github.com/dmitrijs2005/fortress/internal/server/httpapi"
	"github.com/dmitrijs2005/fortress/internal/server/storage"
)

// Run starts the server and blocks until the context is cancelled or a
// termination signal arrives.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.NewText(slog.Level(cfg.LogLevel))

	repo, err := storage.NewPostgresRepository(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	handler := httpapi.NewHandler(repo,
		[]byte(cfg.JWT.Secret), cfg.JWT.TokenTTL, []byte(cfg.Pepper), log)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
