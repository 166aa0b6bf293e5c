package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/screentime/internal/api"
	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/metrics"
	"github.com/goodtune/screentime/internal/notify"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/storage/bolt"
	"github.com/goodtune/screentime/internal/storage/redis"
	"github.com/goodtune/screentime/internal/timer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the screentime server",
	Long:  `Start the screentime server with the timer API, periodic maintenance sweep, and metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting screentime")

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Timezone was validated at config load.
	location, err := time.LoadLocation(cfg.Timer.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}
	clock := &timer.RealClock{Location: location}

	notifier := buildNotifier(cfg.Notify, logger)

	service := timer.NewService(store, clock, logger)
	admin := timer.NewAdmin(store, clock, logger)

	sweeper := timer.NewSweeper(store, clock, notifier, timer.SweepConfig{
		WarningThreshold: parseDuration(cfg.Timer.WarningThreshold, timer.DefaultWarningThreshold),
		AdminUserIDs:     cfg.Notify.AdminUserIDs,
		AuditRetention:   time.Duration(cfg.Timer.AuditRetentionDays) * 24 * time.Hour,
	}, logger)

	scheduler := timer.NewScheduler(sweeper, parseDuration(cfg.Timer.SweepInterval, 5*time.Minute), logger)
	scheduler.Start()
	logger.Info().Str("interval", cfg.Timer.SweepInterval).Msg("Sweep scheduler started")

	apiServer := api.NewServer(api.Config{
		ListenAddr: fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort),
		AdminToken: cfg.API.AdminToken,
		SweepToken: cfg.API.SweepToken,
	}, store, service, admin, sweeper, logger)

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Msg("Screentime startup complete")
	logger.Info().Msgf("API: http://%s:%d/api", cfg.Server.BindAddress, cfg.Server.APIPort)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	scheduler.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Screentime stopped")
	return nil
}

// openStorage opens the configured storage backend.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Path)
	}
}

// buildNotifier constructs the configured notification backend.
func buildNotifier(cfg config.NotifyConfig, logger zerolog.Logger) notify.Notifier {
	switch cfg.Kind {
	case "webhook":
		return notify.NewWebhook(cfg.WebhookURL, parseDuration(cfg.Timeout, 10*time.Second), logger)
	default:
		return notify.NewLogNotifier(logger)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
