package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/mode_orchestrator/internal/config"
	"github.com/R3E-Network/mode_orchestrator/internal/httpapi"
	"github.com/R3E-Network/mode_orchestrator/internal/storage"
	"github.com/R3E-Network/mode_orchestrator/internal/storage/postgres"
	"github.com/R3E-Network/mode_orchestrator/orchestrator"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	envFile    string
	listen     string
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the orchestrator HTTP API",
		Args:    cobra.NoArgs,
		GroupID: "server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Listen address (overrides http.addr)")
	return cmd
}

// storageOpeners lists backends living outside the storage package.
var storageOpeners = map[string]storage.Opener{
	storage.DriverPostgres: postgres.Opener,
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.HTTP.Addr = opts.listen
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer log.Close()

	backend, err := storage.Open(ctx, cfg.Storage, storageOpeners)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	svc := orchestrator.New(ctx, orchestrator.Deps{Storage: backend, Logger: log}, cfg.Orchestrator())
	defer func() {
		if err := svc.Close(); err != nil {
			log.WithError(err).Warn("failed to close orchestrator")
		}
	}()

	api := httpapi.NewServer(svc, httpapi.Config{
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		JWTSecret:      cfg.HTTP.JWTSecret,
	}, log.Named("httpapi"))

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	if limiter := api.Limiter(); limiter != nil {
		limiter.StartCleanup(time.Minute, stopCleanup)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).WithField("storage", cfg.Storage.Driver).Info("mode API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.WithField("addr", cfg.HTTP.Addr).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
