package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/molmatch/internal/application/matching"
	"github.com/turtacn/molmatch/internal/config"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/prometheus"
	httpapi "github.com/turtacn/molmatch/internal/interfaces/http"
	"github.com/turtacn/molmatch/internal/interfaces/http/handlers"
	"github.com/turtacn/molmatch/internal/interfaces/http/middleware"
)

// NewServeCmd runs the HTTP API until SIGINT or SIGTERM.
func NewServeCmd() *cobra.Command {
	var (
		port int
		mode string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the match API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cliCtx.Config.Server.Port = port
			}
			if cmd.Flags().Changed("mode") {
				cliCtx.Config.Server.Mode = mode
			}
			if err := cliCtx.Config.Validate(); err != nil {
				return err
			}

			// the server logs as configured rather than to the CLI console
			logger, err := logging.NewLogger(logging.LogConfig{
				Level:       cliCtx.Config.Log.Level,
				Format:      cliCtx.Config.Log.Format,
				OutputPaths: cliCtx.Config.Log.OutputPaths,
			})
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			logging.SetDefault(logger)
			cliCtx.Logger = logger

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cliCtx, nil)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultServerPort, "listen port")
	cmd.Flags().StringVar(&mode, "mode", config.DefaultServerMode, "gin mode (debug, release, test)")
	return cmd
}

// serveStarter lets tests serve on a prepared listener.
type serveStarter func(srv *httpapi.Server) error

// runServe wires metrics, handlers, router and server from cliCtx and
// blocks until ctx is done or the server fails.
func runServe(ctx context.Context, cliCtx *CLIContext, start serveStarter) error {
	cfg := cliCtx.Config
	logger := cliCtx.Logger

	var (
		collector prometheus.MetricsCollector
		metrics   *prometheus.MatchMetrics
		recorder  matching.Recorder
	)
	if cfg.Metrics.Enabled {
		var err error
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            cfg.Metrics.Subsystem,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return err
		}
		metrics = prometheus.NewMatchMetrics(collector)
		recorder = metrics
	}

	mh := handlers.NewMatchHandler(matching.NewService(cliCtx.Options, recorder, logger), logger)
	health := handlers.NewHealthHandler(Version, handlers.NewEngineCheck(mh))

	if cliCtx.ConfigFile != "" {
		err := config.Watch(cliCtx.ConfigFile, func(next *config.Config) {
			logger.Info("search configuration reloaded", logging.String("path", cliCtx.ConfigFile))
			mh.SetService(matching.NewService(ServiceOptions(next), recorder, logger))
		}, func(err error) {
			logger.Warn("configuration reload rejected", logging.Err(err))
		})
		if err != nil {
			logger.Warn("configuration watch disabled", logging.Err(err))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		MatchHandler:     mh,
		HealthHandler:    health,
		Logger:           logger,
		Logging:          middleware.DefaultLoggingConfig(),
		Metrics:          metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
		MaxBodySize:      cfg.Server.MaxBodySize,
	})
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	if start == nil {
		start = (*httpapi.Server).Start
	}
	errCh := make(chan error, 1)
	go func() { errCh <- start(srv) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
