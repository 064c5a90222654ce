package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactivator/internal/config"
	"github.com/vango-dev/reactivator/internal/errors"
	"github.com/vango-dev/reactivator/pkg/loop"
	"github.com/vango-dev/reactivator/pkg/server"
	"github.com/vango-dev/reactivator/pkg/sharedstate"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port     int
		host     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the HTTP server.

The server renders the component at /, streams live field changes over
/ws, and exposes /healthz, /status and Prometheus metrics.

Examples:
  reactivator serve
  reactivator serve --port=9090
  reactivator serve --config deploy/reactivator.yaml --log-level=debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	l := loop.New(
		loop.WithQueueSize(cfg.Loop.QueueSize),
		loop.WithLogger(logger.With("component", "loop")),
	)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go l.Run(loopCtx)

	cache := sharedstate.NewCache(
		sharedstate.WithDispatcher(l),
		sharedstate.WithLogger(logger.With("component", "sharedstate")),
		sharedstate.WithMetrics(sharedstate.NewPrometheusMetrics(
			sharedstate.WithNamespace(cfg.Metrics.Namespace),
			sharedstate.WithRegistry(registry),
		)),
	)

	bindings, err := newSourceBuilder(logger).build(cfg)
	if err != nil {
		return err
	}
	mixin := sharedstate.NewMixin(cache, bindings...)

	srv := server.New(&server.ServerConfig{
		Address:         cfg.Address(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		MetricsPath:     cfg.Metrics.Path,
		Namespace:       cfg.Metrics.Namespace,
		Registry:        registry,
		TracerName:      cfg.Tracing.TracerName,
		Logger:          logger,
	}, l, cache, mixin)

	success(out, "Serving %d bindings on http://%s", len(bindings), cfg.Address())
	for _, b := range cfg.Bindings {
		info(out, "%s <- %s", b.Field, describeBinding(b))
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		return errors.FromError(err, errors.CodeServerListen)
	}
	info(out, "Stopped")
	return nil
}
