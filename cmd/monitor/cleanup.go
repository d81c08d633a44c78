package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/internal/adapters/database"
	redisAdapter "github.com/selivandex/whale-monitor/internal/adapters/redis"
	"github.com/selivandex/whale-monitor/internal/dedup"
	"github.com/selivandex/whale-monitor/internal/store"
	"github.com/selivandex/whale-monitor/pkg/logger"
)

func newCleanupCmd() *cobra.Command {
	var (
		dryRun bool
		live   bool
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cleanup-duplicates",
		Short: "Remove stored near-duplicate records",
		Long: `Scans stored records for near-duplicates that slipped past the
online suppressor and removes the lower-confidence side of each pair.
Runs in dry-run mode unless --live is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun && live {
				return &usageError{msg: "--dry-run and --live are mutually exclusive"}
			}
			return runCleanup(cmd.Context(), !live, since)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report duplicates without deleting (default)")
	cmd.Flags().BoolVar(&live, "live", false, "actually delete the duplicate rows")
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "how far back to scan")
	return cmd
}

func runCleanup(ctx context.Context, dryRun bool, since time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Only one replica may run a live cleanup at a time
	if !dryRun && cfg.Redis.Enabled {
		redisClient, rErr := redisAdapter.New(&cfg.Redis)
		if rErr != nil {
			return fmt.Errorf("failed to connect to redis: %w", rErr)
		}
		defer redisClient.Close()

		lock := redisClient.NewJobLock("cleanup-duplicates")
		acquired, lErr := lock.TryAcquire(ctx)
		if lErr != nil {
			return fmt.Errorf("failed to acquire cleanup lock: %w", lErr)
		}
		if !acquired {
			return fmt.Errorf("cleanup already running on another replica")
		}
		defer lock.Release(ctx)
	}

	repo := store.NewWhaleRepository(db.DB())
	cleaner := dedup.NewCleaner(&cfg.Dedup, repo, dryRun)

	report, err := cleaner.Run(ctx, time.Now().Add(-since))
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	logger.Info("cleanup report",
		zap.Int("scanned", report.Scanned),
		zap.Int("duplicates", report.Duplicates),
		zap.Int64("deleted", report.Deleted),
		zap.Bool("dry_run", report.DryRun),
	)

	mode := "LIVE"
	if report.DryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("[%s] scanned=%d duplicates=%d deleted=%d\n",
		mode, report.Scanned, report.Duplicates, report.Deleted)
	return nil
}
