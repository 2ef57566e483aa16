package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/empleaido-factory/internal/app"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

const shutdownTimeout = 10 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and web UI",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
		slog.SetDefault(logger)

		cfg := mustConfig()
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			fatal("Error starting service", err)
		}

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           a.Router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Minute,
			// must outlast TRANSCRIBE_TIMEOUT
			WriteTimeout: cfg.TranscribeTimeout + 30*time.Second,
			IdleTimeout:  90 * time.Second,
		}

		drained := make(chan struct{})
		go func() {
			defer close(drained)
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("server started",
			"addr", cfg.ListenAddr,
			"version", models.Version,
			"store", cfg.StoreBackend,
			"rate_limit", cfg.RateLimitBackend,
			"require_session", cfg.RequireSession,
		)
		serveErr := srv.ListenAndServe()
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
			<-drained
		}
		if err := a.Close(); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
		if serveErr != nil {
			fatal("Server error", serveErr)
		}
		logger.Info("server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
}
