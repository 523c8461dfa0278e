package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	authmiddleware "github.com/terraconstructs/authresolve/internal/middleware"
	"github.com/terraconstructs/authresolve/internal/server"
	"github.com/terraconstructs/authresolve/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resolution HTTP server",
	Long:  `Starts the HTTP server exposing /health and the /whoami operator endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}()

		rt, err := buildRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		router := server.NewRouter(server.RouterOptions{
			Resolver:      rt.engine,
			Extract:       authmiddleware.ExtractOptionsFromConfig(cfg),
			HealthHandler: server.HealthHandler(rt.db.PingContext),
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.ServerAddr).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Info().Msg("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
