package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/s0up4200/reqflow/config"
	"github.com/s0up4200/reqflow/debounce"
	"github.com/s0up4200/reqflow/metrics"
	"github.com/s0up4200/reqflow/request"
	"github.com/s0up4200/reqflow/transport"
)

var (
	cfgFile  string
	logLevel string
	logFile  string

	cfg    *config.Config
	logger zerolog.Logger
	client *request.Client

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reqflow",
	Short: "Send API calls through a configurable request pipeline",
	Long: `reqflow sends calls through a layered request pipeline: configured origin
and base path, default headers and data, repeat suppression, throttling
and declarative decoding of {code, message, data} style responses.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
}

// SetVersion records build information for the version command
func SetVersion(v, built string) {
	version = v
	buildTime = built
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./reqflow.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to a rotating file")
}

// initializeApp loads configuration and sets up logging
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Logging.File = logFile
	}

	logger = setupLogger(cfg.Logging, os.Stderr)
	return nil
}

// initializeClient builds the shared client for commands that send calls
func initializeClient(cmd *cobra.Command, args []string) error {
	var err error
	client, err = buildClient(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// buildClient wires the configured transport, repeat store and observer
func buildClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*request.Client, error) {
	partial, err := cfg.Partial()
	if err != nil {
		return nil, err
	}
	partial.Request.Header = cfg.HeaderResolver(config.LoadToken)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []request.Option{
		request.WithConfig(partial),
		request.WithLogger(logger),
		request.WithTransport(transport.NewHTTP(
			transport.WithLogger(logger),
			transport.WithUserAgent(cfg.Client.UserAgent),
		)),
		request.WithRegistry(debounce.NewRegistry(
			debounce.WithStore(store),
			debounce.WithLogger(logger),
		)),
		request.WithTimeout(cfg.Client.Timeout),
		request.WithRepeatWindow(cfg.Client.RepeatWindow),
		request.WithThrottleDelay(cfg.Client.ThrottleDelay),
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		opts = append(opts, request.WithObserver(metrics.NewCollectorWithRegistry(registry)))
		serveMetrics(cfg.Metrics.Addr, registry, logger)
	}

	return request.New(opts...), nil
}

func buildStore(ctx context.Context, cfg *config.Config) (debounce.Store, error) {
	if !cfg.Redis.Enabled {
		return debounce.NewMemoryStore(debounce.WithMaxEntries(cfg.Client.MaxEntries)), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	return debounce.NewRedisStore(rdb, cfg.Redis.Prefix), nil
}

// serveMetrics exposes registry on addr for the lifetime of the process
func serveMetrics(addr string, registry *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	logger.Debug().Str("addr", addr).Msg("Serving metrics")
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig, out *os.File) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	var console io.Writer = out
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Color || !isatty.IsTerminal(out.Fd()),
		}
	}

	writer := console
	if cfg.File != "" {
		// the file always gets JSON lines
		writer = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	return zerolog.New(writer).With().Timestamp().Logger()
}
