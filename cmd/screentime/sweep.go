package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/timer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance sweep and exit",
	Long: `Run a single maintenance sweep: accrue elapsed time on running
sessions, send warning and expiry notifications, force-stop sessions over
quota, and remove stale session and audit records. Intended for cron when
the long-running server is not used.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	location, err := time.LoadLocation(cfg.Timer.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	sweeper := timer.NewSweeper(store, &timer.RealClock{Location: location}, buildNotifier(cfg.Notify, logger), timer.SweepConfig{
		WarningThreshold: parseDuration(cfg.Timer.WarningThreshold, timer.DefaultWarningThreshold),
		AdminUserIDs:     cfg.Notify.AdminUserIDs,
		AuditRetention:   time.Duration(cfg.Timer.AuditRetentionDays) * 24 * time.Hour,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), parseDuration(cfg.Timer.SweepInterval, 5*time.Minute))
	defer cancel()

	result, err := sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	logger.Info().
		Int("updated", result.Updated).
		Int("warned", result.Warned).
		Int("expired", result.Expired).
		Int("cleaned", result.Cleaned).
		Msg("Sweep complete")
	return nil
}
