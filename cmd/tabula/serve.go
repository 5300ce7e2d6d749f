package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/tabula/internal/cli"
	"github.com/aretw0/tabula/internal/metrics"
	httpAdapter "github.com/aretw0/tabula/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session server",
	Long:  `Exposes sessions over a JSON API with Server-Sent Events and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		logger := cli.NewLogger(cfg, false)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}

		consultant, err := cli.NewConsultant(cfg.Anthropic, logger)
		if err != nil {
			return err
		}
		engine, err := cli.NewEngine(cfg, consultant, logger, m.Hooks())
		if err != nil {
			return err
		}
		sessions, closer, err := cli.NewSessions(cfg.Store, logger)
		if err != nil {
			return err
		}
		defer closer.Close()

		handler := httpAdapter.NewHandler(engine, sessions,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMaxSteps(cfg.Engine.MaxSteps),
			httpAdapter.WithGatherer(reg),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting Tabula Server", "addr", srv.Addr, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Tabula Server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
}
