package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecgard/planner/internal/api"
	"github.com/alecgard/planner/internal/metrics"
	"github.com/alecgard/planner/internal/ratelimit"
	"github.com/alecgard/planner/internal/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Planner HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	a, err := newApp(ctx, m)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)
	go ratelimit.RunSweeper(ctx, limiter)

	router := api.NewRouter(api.RouterDeps{
		Users:          a.users,
		Teams:          a.teams,
		Boards:         a.boards,
		Metrics:        m,
		Limiter:        limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		Health: func(ctx context.Context) error {
			_, err := a.backend.Load(ctx, storage.Users)
			return err
		},
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()

	return srv.Shutdown(shutdownCtx)
}
