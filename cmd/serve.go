package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/linkgate/internal/api"
	"github.com/darmiel/linkgate/internal/logging"
	"github.com/darmiel/linkgate/internal/service"
	"github.com/darmiel/linkgate/internal/tasks"
)

const (
	RenewalSweepTask = "renewal-sweep"

	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LinkGate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		log.Info().Msg("Initializing store, auditor and platforms...")
		rt, err := f.BuildRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to release resources")
			}
		}()

		for _, c := range rt.Coordinator.Platforms() {
			log.Info().
				Str("platform", string(c.Platform)).
				Bool("renew", c.Renew).
				Bool("introspect", c.Introspect).
				Msg("Platform enabled")
		}
		if cfg.Admin.SigningKey == "" {
			log.Warn().Msg("No admin signing key configured, the admin API is disabled")
		}

		taskManager := tasks.NewManager()
		if err := registerTasks(taskManager, rt.Coordinator, cfg.Renewal.Sweep.Enabled, cfg.Renewal.Sweep.Schedule); err != nil {
			return err
		}
		taskManager.Start()

		srv := api.NewServer(rt.Coordinator, taskManager, rt.Auditor)
		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv.Routes([]byte(cfg.Admin.SigningKey)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			log.Info().Msgf("Starting server on %s...", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-serverErr:
			return fmt.Errorf("server crashed: %w", err)
		}
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := taskManager.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("Background tasks did not finish in time")
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// registerTasks registers the renewal sweep. It is always triggerable and
// only scheduled if enabled.
func registerTasks(m *tasks.Manager, coord *service.Coordinator, scheduled bool, schedule string) error {
	def := tasks.TaskDefinition{
		Name:    RenewalSweepTask,
		Timeout: 15 * time.Minute,
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			report, err := coord.SweepRenewals(ctx, 0, logger)
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d tokens could not be renewed", report.Failed, len(report.Outcomes))
			}
			return nil
		},
	}
	if scheduled {
		def.Schedule = schedule
	}
	if err := m.Register(def); err != nil {
		return fmt.Errorf("registering %s: %w", RenewalSweepTask, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides server.addr)")
}
