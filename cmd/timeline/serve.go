package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	httptransport "github.com/example/exam-timeline/internal/http"
)

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the allocation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx, c.cfg, c.logger)
			if err != nil {
				c.logger.Error("failed to open storage", "error", err)
				return err
			}
			defer func() {
				if cerr := svc.Close(); cerr != nil {
					c.logger.Error("failed to close storage", "error", cerr)
				}
			}()

			handler, err := newHandler(c, svc)
			if err != nil {
				c.logger.Error("failed to build handler", "error", err)
				return err
			}
			return serve(ctx, c, handler)
		},
	}
}

func newHandler(c *cli, svc *services) (http.Handler, error) {
	cfg, logger := c.cfg, c.logger
	writes, err := writeMiddleware(c)
	if err != nil {
		return nil, err
	}
	return httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:           httptransport.NewRoomHandler(svc.rooms, logger),
		Allocations:     httptransport.NewAllocationHandler(svc.allocations, logger),
		Timeline:        httptransport.NewTimelineHandler(svc.rooms, svc.allocations, cfg.SnapPolicy(), logger),
		Health:          httptransport.NewHealthHandler(svc.storage, version, logger),
		Middleware:      []httptransport.Middleware{httptransport.RequestLogger(logger)},
		WriteMiddleware: writes,
	}), nil
}

func writeMiddleware(c *cli) ([]httptransport.Middleware, error) {
	cfg := c.cfg
	var chain []httptransport.Middleware
	if cfg.RateLimit > 0 {
		chain = append(chain, httptransport.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst), c.logger))
	}
	if cfg.OperatorKey == "" {
		c.logger.Warn("operator key not configured; writes are not authenticated")
		return chain, nil
	}
	verifier, err := httptransport.NewOperatorKeyVerifier(cfg.OperatorKey)
	if err != nil {
		return nil, err
	}
	return append(chain, httptransport.RequireOperatorKey(verifier, c.logger)), nil
}

func serve(ctx context.Context, c *cli, handler http.Handler) error {
	server := &http.Server{
		Addr:              c.cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	c.logger.Info("timeline API listening", "addr", server.Addr, "version", version)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}
