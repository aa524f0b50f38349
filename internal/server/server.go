package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// NewHTTPServer builds the http.Server and binds it to the fx lifecycle.
func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, router *Router) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Townfeed.Server.Port),
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("HTTP server listening on %s.", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("HTTP server error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("HTTP server shutting down.")
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
