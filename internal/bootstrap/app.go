package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
	"github.com/pandemetrix/pandemetrix/internal/infra/config"
)

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	predictor predictor.Service
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, predictorSvc predictor.Service) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		predictor: predictorSvc,
	}
}

// Run loads the model, starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.predictor.Load(ctx); err != nil {
		// Predictions report model_not_loaded until a reload succeeds.
		a.logger.Warn("model load failed, predictor starts unready", "error", err)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
