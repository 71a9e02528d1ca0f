package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/config"
	"github.com/warrenhq/warren/internal/host"
	"github.com/warrenhq/warren/internal/storage"
)

// shutdownGrace bounds how long in-flight requests and background work may
// take once a stop signal arrives.
const shutdownGrace = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the object host",
		Long:          "Run the owning-node host: the forwarding endpoint, the alarm\nrunner, and the built-in KV object for every configured namespace.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "warren.yaml", "path to the configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}
	log := slog.Default()

	db, err := backend.Open(cfg.Backend.Driver, cfg.Backend.DSN)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening backend", err)
	}
	defer db.Close()

	hostOpts := []host.HostOption{
		host.WithLogger(log),
		host.WithPollInterval(cfg.AlarmPoll),
	}
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		hostOpts = append(hostOpts, host.WithMetrics(storage.NewMetrics(registry)))
	}
	h := host.New(db, hostOpts...)
	for name := range cfg.Namespaces {
		h.Register(name, host.NewKVObject)
		log.Info("namespace registered", "namespace", name)
	}

	mux := http.NewServeMux()
	mux.Handle("/do/", h.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go h.RunAlarms(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("host listening", "addr", cfg.Listen, "driver", cfg.Backend.Driver)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "server failed", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(graceCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server shutdown incomplete", "error", err)
	}
	if err := h.Shutdown(graceCtx); err != nil {
		log.Error("background work did not drain", "error", err)
	}
	return nil
}
