package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/clickhouse"
	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/internal/adapters/database"
	"github.com/selivandex/whale-monitor/internal/adapters/explorer"
	chmetrics "github.com/selivandex/whale-monitor/internal/adapters/metrics"
	redisAdapter "github.com/selivandex/whale-monitor/internal/adapters/redis"
	"github.com/selivandex/whale-monitor/internal/classify"
	"github.com/selivandex/whale-monitor/internal/health"
	"github.com/selivandex/whale-monitor/internal/labels"
	"github.com/selivandex/whale-monitor/internal/pipeline"
	"github.com/selivandex/whale-monitor/internal/pricing"
	"github.com/selivandex/whale-monitor/internal/registry"
	"github.com/selivandex/whale-monitor/internal/sink"
	"github.com/selivandex/whale-monitor/internal/sources"
	"github.com/selivandex/whale-monitor/internal/store"
	"github.com/selivandex/whale-monitor/internal/supervisor"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/metrics"
	"github.com/selivandex/whale-monitor/pkg/worker"
)

const (
	pidFilePath    = "data/whale-monitor.pid"
	deadLetterPath = "data/dead_letter.ndjson"
	auditLogPath   = "data/audit.ndjson"
	rpcHashQueue   = 256
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the monitoring pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd.Context())
		},
	}
}

func runStart(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("🐋 Whale monitor starting")

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := writePIDFile(); err != nil {
		return err
	}
	defer os.Remove(pidFilePath)

	// Storage
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := store.NewWhaleRepository(db.DB())

	// Label provider: builtin registry + postgres store, optionally behind
	// redis and the explorer
	var labelStore labels.Store = labels.NewPostgresStore(db.DB())

	var redisClient *redisAdapter.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisAdapter.New(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		labelStore = labels.NewCachedStore(labelStore, redisClient.Cache(), cfg.Labels.TTL.Duration(), cfg.Labels.NegativeTTL)
	}

	var remoteLabels labels.RemoteSource
	var receipts classify.ReceiptSource
	if cfg.Sources.EtherscanAPIKey != "" {
		expl := explorer.NewClient(cfg.Sources.EtherscanAPIKey, cfg.Sources.ReceiptTimeout)
		remoteLabels = explorer.NewLabelSource(expl)
		receipts = explorer.NewReceiptSource(expl)
	}
	labelProvider := labels.NewProvider(&cfg.Labels, labelStore, remoteLabels)

	// Pricing
	prices := pricing.NewResolver(pricing.NewCoinGeckoFeed(), cfg.Price.Staleness.Duration())

	// Whale registry with snapshot persistence
	reg := registry.New()
	if err := reg.Rehydrate(cfg.Registry.SnapshotPath); err != nil {
		logger.Warn("registry rehydration failed, starting cold", zap.Error(err))
	}

	// Optional analytical backend: mega-whale volume queries plus the
	// buffered transfer_history mirror and pipeline tick metrics
	var storage sink.Storage = repo
	var analytics classify.Analytics
	var metricsBuf *metrics.Buffer
	if cfg.ClickHouse.Enabled {
		chDB, chErr := database.NewClickHouse(cfg.ClickHouse.GetDSN())
		if chErr != nil {
			logger.Warn("clickhouse unavailable, analytics disabled", zap.Error(chErr))
		} else {
			defer chDB.Close()
			analytics = clickhouse.NewAnalytics(chDB.DB())
			metricsBuf = metrics.NewBuffer(metrics.BufferConfig{
				Writer:        chmetrics.NewClickHouseWriter(chDB.DB()),
				BatchSize:     cfg.ClickHouse.MetricsBatch,
				FlushInterval: cfg.ClickHouse.MetricsFlush,
			})
			storage = chmetrics.NewHistoryStorage(repo, metricsBuf)
		}
	}

	engine := classify.NewEngine(&cfg.Classification, receipts, reg, analytics)

	// Sink with dead-letter queue and audit trail
	deadLetter, err := sink.NewDeadLetter(deadLetterPath)
	if err != nil {
		return fmt.Errorf("failed to create dead-letter queue: %w", err)
	}
	audit, err := sink.NewAuditLog(auditLogPath)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	snk := sink.New(storage, deadLetter, audit)

	pl := pipeline.New(cfg, labelProvider, prices, engine, snk, reg, repo, audit)
	pl.Start(ctx)

	// Sources under supervision
	watermarks, err := sources.NewWatermarkStore(cfg.Sources.WatermarkPath)
	if err != nil {
		return fmt.Errorf("failed to load watermarks: %w", err)
	}

	sup := supervisor.New(&cfg.Supervisor, pl.Emit)
	registerSources(cfg, sup, watermarks)
	sup.Start(ctx)

	// Snapshot worker and health server
	workers := worker.NewWorkerGroup(ctx)
	workers.Add(registry.NewSnapshotWorker(reg, cfg.Registry.SnapshotPath), cfg.Registry.SnapshotInterval)
	if metricsBuf != nil {
		workers.Add(chmetrics.NewTickWorker(pl.Counters(), metricsBuf), cfg.ClickHouse.TicksInterval)
	}
	workers.Start()

	healthServer := health.NewServer(cfg.Health.Port, db, pl, sup)
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error("health server failed", zap.Error(err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("✅ Whale monitor running")

	<-ctx.Done()
	logger.Info("🛑 Shutting down...")

	// Sources first so the fan-in queue stops filling, then drain the
	// pipeline, then snapshot state
	sup.Wait()
	pl.Stop()
	workers.Stop(10 * time.Second)

	if err := reg.Snapshot(cfg.Registry.SnapshotPath); err != nil {
		logger.Error("final registry snapshot failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if metricsBuf != nil {
		if err := metricsBuf.Close(shutdownCtx); err != nil {
			logger.Error("metrics buffer close failed", zap.Error(err))
		}
	}
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown failed", zap.Error(err))
	}

	logger.Info("👋 Whale monitor stopped")
	return nil
}

// registerSources adds every configured ingestion stream
func registerSources(cfg *config.Config, sup *supervisor.Supervisor, watermarks *sources.WatermarkStore) {
	if cfg.Sources.WhaleAlertEnabled && cfg.Sources.WhaleAlertAPIKey != "" {
		sup.Add(sources.NewWhaleAlertSource(
			cfg.Sources.WhaleAlertAPIKey,
			cfg.Sources.MinValueUSD,
			cfg.Sources.PollInterval,
			watermarks,
		))
	}

	if cfg.Sources.EtherscanAPIKey != "" {
		sup.Add(sources.NewEtherscanSource(
			cfg.Sources.EtherscanAPIKey,
			cfg.Sources.WatchedTokens,
			cfg.Sources.PollInterval,
			watermarks,
		))
	}

	if cfg.Sources.StreamURL != "" {
		hashes := make(chan string, rpcHashQueue)
		sup.Add(sources.NewChainStreamSource(cfg.Sources.StreamURL, hashes))
		if cfg.Sources.RPCURL != "" {
			sup.Add(sources.NewRPCLogSource(cfg.Sources.RPCURL, hashes, cfg.Sources.ReceiptTimeout))
		}
	}
}

func writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(pidFilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(pidFilePath, []byte(pid), 0o644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}
