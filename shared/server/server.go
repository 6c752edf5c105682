// Package server builds the gin engine every service shares and runs it
// with graceful shutdown next to any background workers.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eaglebank/wallet/shared/middleware"
)

// NewRouter returns an engine with recovery, request ids, tracing, access
// logging and a /health route.
func NewRouter(service string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.TracingMiddleware(service),
		middleware.LoggingMiddleware(logger),
	)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	})
	return router
}

// Worker is a background loop that runs until ctx is cancelled.
type Worker func(ctx context.Context) error

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownWait. Workers share ctx; the first one to fail
// stops everything.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownWait time.Duration, logger *zap.Logger, workers ...Worker) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", shutdownWait))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
