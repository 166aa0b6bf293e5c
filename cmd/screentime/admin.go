package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/timer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	adminActor    string
	timerUserID   string
	timerName     string
	timerCategory string
	weekdayLimit  int
	weekendLimit  int
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage timers from the command line",
	Long:  `Manage timers directly against the storage backend, without going through the HTTP API.`,
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all timers with today's usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error {
			timers, err := store.Timers().List(ctx)
			if err != nil {
				return err
			}

			type row struct {
				Timer          storage.Timer `json:"timer"`
				ElapsedSeconds int64         `json:"elapsed_seconds"`
				BonusSeconds   int64         `json:"bonus_seconds"`
				Status         string        `json:"status"`
			}

			date := clock.Now().Format(storage.DateFormat)
			rows := make([]row, 0, len(timers))
			for _, t := range timers {
				r := row{Timer: t, Status: string(storage.StatusIdle)}
				sess, err := store.Sessions().Get(ctx, t.ID, date)
				if err == nil {
					r.ElapsedSeconds = sess.ElapsedSeconds
					r.BonusSeconds = sess.BonusSeconds
					r.Status = string(sess.Status)
				} else if !errors.Is(err, storage.ErrNotFound) {
					return err
				}
				rows = append(rows, r)
			}
			return printJSON(rows)
		})
	},
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error {
			t, err := admin.CreateTimer(ctx, timer.TimerParams{
				UserID:         timerUserID,
				Name:           timerName,
				Category:       storage.Category(timerCategory),
				WeekdayMinutes: weekdayLimit,
				WeekendMinutes: weekendLimit,
			}, adminActor)
			if err != nil {
				return err
			}
			return printJSON(t)
		})
	},
}

var adminUpdateCmd = &cobra.Command{
	Use:   "update <timer-id>",
	Short: "Update a timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error {
			t, err := admin.UpdateTimer(ctx, args[0], timer.TimerParams{
				UserID:         timerUserID,
				Name:           timerName,
				Category:       storage.Category(timerCategory),
				WeekdayMinutes: weekdayLimit,
				WeekendMinutes: weekendLimit,
			}, adminActor)
			if err != nil {
				return err
			}
			return printJSON(t)
		})
	},
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <timer-id>",
	Short: "Soft-delete a timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error {
			return admin.DeleteTimer(ctx, args[0], adminActor)
		})
	},
}

var adminBonusCmd = &cobra.Command{
	Use:   "bonus <timer-id> <minutes>",
	Short: "Grant bonus minutes for today",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var minutes int
		if _, err := fmt.Sscanf(args[1], "%d", &minutes); err != nil {
			return fmt.Errorf("invalid minutes: %s", args[1])
		}
		return withAdmin(func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error {
			return admin.GrantBonus(ctx, args[0], minutes, adminActor)
		})
	},
}

var adminAuditCmd = &cobra.Command{
	Use:   "audit <timer-id>",
	Short: "Show the audit trail for a timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error {
			entries, err := admin.AuditTrail(ctx, args[0], 50)
			if err != nil {
				return err
			}
			return printJSON(entries)
		})
	},
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminActor, "actor", "cli", "Administrator ID recorded in the audit trail")

	for _, c := range []*cobra.Command{adminCreateCmd, adminUpdateCmd} {
		c.Flags().StringVar(&timerUserID, "user", "", "Owning user ID")
		c.Flags().StringVar(&timerName, "name", "", "Timer name")
		c.Flags().StringVar(&timerCategory, "category", "computer", "Device category (computer, phone, tablet, console, tv)")
		c.Flags().IntVar(&weekdayLimit, "weekday", 60, "Weekday limit in minutes")
		c.Flags().IntVar(&weekendLimit, "weekend", 120, "Weekend limit in minutes")
	}

	adminCmd.AddCommand(adminListCmd, adminCreateCmd, adminUpdateCmd, adminDeleteCmd, adminBonusCmd, adminAuditCmd)
	rootCmd.AddCommand(adminCmd)
}

// withAdmin opens storage, builds the admin service, and runs fn against it.
func withAdmin(fn func(ctx context.Context, admin *timer.Admin, store storage.Store, clock timer.Clock) error) error {
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

	clock := &timer.RealClock{Location: location}
	admin := timer.NewAdmin(store, clock, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return fn(ctx, admin, store, clock)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
