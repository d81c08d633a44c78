package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Seconds is a duration env value given as a plain number of seconds,
// matching the *_SECONDS variable names. Duration strings ("90s", "2m")
// are accepted too.
type Seconds time.Duration

// Decode implements envconfig.Decoder
func (s *Seconds) Decode(value string) error {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid seconds value %q: %w", value, err)
	}
	*s = Seconds(d)
	return nil
}

// Duration converts to the stdlib representation
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// Config represents application configuration
type Config struct {
	Pipeline       PipelineConfig       `envconfig:"PIPELINE"`
	Dedup          DedupConfig          `envconfig:"DEDUP"`
	Classification ClassificationConfig `envconfig:"CLASSIFICATION"`
	Labels         LabelsConfig         `envconfig:"LABELS"`
	Price          PriceConfig          `envconfig:"PRICE"`
	Sources        SourcesConfig        `envconfig:"SOURCES"`
	Supervisor     SupervisorConfig     `envconfig:"SUPERVISOR"`
	Registry       RegistryConfig       `envconfig:"REGISTRY"`
	Database       DatabaseConfig       `envconfig:"DATABASE"`
	Redis          RedisConfig          `envconfig:"REDIS"`
	ClickHouse     ClickHouseConfig     `envconfig:"CLICKHOUSE"`
	Health         HealthConfig         `envconfig:"HEALTH"`
	Logging        LoggingConfig        `envconfig:"LOGGING"`
}

// PipelineConfig sizes the staged worker pools and their queues
type PipelineConfig struct {
	DrainTimeout        time.Duration `envconfig:"PIPELINE_DRAIN_TIMEOUT" default:"30s"`
	FanInQueueSize      int           `envconfig:"PIPELINE_FANIN_QUEUE_SIZE" default:"1024"`
	EnrichedQueueSize   int           `envconfig:"PIPELINE_ENRICHED_QUEUE_SIZE" default:"512"`
	ClassifiedQueueSize int           `envconfig:"PIPELINE_CLASSIFIED_QUEUE_SIZE" default:"512"`
	StoredQueueSize     int           `envconfig:"PIPELINE_STORED_QUEUE_SIZE" default:"512"`
	EnrichWorkers       int           `envconfig:"PIPELINE_ENRICH_WORKERS" default:"4"`
	ClassifyWorkers     int           `envconfig:"PIPELINE_CLASSIFY_WORKERS" default:"8"`
	DedupShards         int           `envconfig:"PIPELINE_DEDUP_SHARDS" default:"32"`
}

// DedupConfig controls the near-duplicate suppressor
type DedupConfig struct {
	TimeWindow          time.Duration `envconfig:"NEAR_DUPE_TIME_WINDOW" default:"10s"`
	USDThreshold        float64       `envconfig:"NEAR_DUPE_USD_THRESHOLD" default:"5.0"`
	PercentageThreshold float64       `envconfig:"NEAR_DUPE_PERCENTAGE_THRESHOLD" default:"0.0015"`
	SafeguardUSD        float64       `envconfig:"NEAR_DUPE_SAFEGUARD_USD" default:"5000000"`
	MemoryRingSize      int           `envconfig:"NEAR_DUPE_MEMORY_RING" default:"50"`
	LookbackRows        int           `envconfig:"NEAR_DUPE_LOOKBACK_ROWS" default:"200"`
}

// ClassificationConfig holds thresholds and optional heuristics
type ClassificationConfig struct {
	PhaseTimeout     time.Duration `envconfig:"CLASSIFICATION_PHASE_TIMEOUT" default:"8s"`
	HighConfidence   float64       `envconfig:"CLASSIFICATION_HIGH" default:"0.80"`
	MediumConfidence float64       `envconfig:"CLASSIFICATION_MEDIUM" default:"0.60"`
	// EarlyExit stops the phase pipeline once the stacked confidence of
	// the leading direction already clears it; 0 disables the shortcut
	EarlyExit float64 `envconfig:"CLASSIFICATION_EARLY_EXIT" default:"0.85"`
	// CEXEarlyExit and DEXEarlyExit finalize on a single strong
	// directional vote from that phase; 0 disables
	CEXEarlyExit    float64 `envconfig:"CLASSIFICATION_CEX_EARLY_EXIT" default:"0.75"`
	DEXEarlyExit    float64 `envconfig:"CLASSIFICATION_DEX_EARLY_EXIT" default:"0.70"`
	MegaWhaleWeight float64 `envconfig:"CLASSIFICATION_MEGAWHALE_WEIGHT" default:"0.35"`
	// DEXCoverageMode enables the User->Router => SELL heuristic even when
	// no swap event could be decoded. Off by default: router direction alone
	// is not trustworthy without the decoded swap.
	DEXCoverageMode bool `envconfig:"DEX_COVERAGE_MODE" default:"false"`
	// BridgeDirectional maps L1->L2 deposits to BUY and exits to SELL
	BridgeDirectional bool `envconfig:"BRIDGE_DIRECTIONAL" default:"false"`
}

// LabelsConfig controls the address label provider
type LabelsConfig struct {
	TTL           Seconds       `envconfig:"LABEL_TTL_SECONDS" default:"3600"`
	NegativeTTL   time.Duration `envconfig:"LABEL_NEGATIVE_TTL" default:"60s"`
	LookupTimeout time.Duration `envconfig:"LABEL_LOOKUP_TIMEOUT" default:"2s"`
	CacheSize     int           `envconfig:"LABEL_CACHE_SIZE" default:"100000"`
	RemoteRPS     float64       `envconfig:"LABEL_REMOTE_RPS" default:"5"`
}

// PriceConfig controls the token price resolver
type PriceConfig struct {
	Staleness Seconds `envconfig:"PRICE_STALENESS_SECONDS" default:"120"`
}

// SourcesConfig configures the ingestion sources
type SourcesConfig struct {
	WhaleAlertAPIKey  string        `envconfig:"WHALE_ALERT_API_KEY" required:"false"`
	EtherscanAPIKey   string        `envconfig:"ETHERSCAN_API_KEY" required:"false"`
	StreamURL         string        `envconfig:"CHAIN_STREAM_URL" required:"false"`
	RPCURL            string        `envconfig:"CHAIN_RPC_URL" required:"false"`
	WatermarkPath     string        `envconfig:"WATERMARK_PATH" default:"data/watermarks.json"`
	WatchedTokens     []string      `envconfig:"WATCHED_TOKENS" default:"USDT,USDC,WETH,WBTC"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"60s"`
	ReceiptTimeout    time.Duration `envconfig:"RECEIPT_TIMEOUT" default:"5s"`
	MinValueUSD       int           `envconfig:"MIN_VALUE_USD" default:"500000"`
	DropBudget        int           `envconfig:"SOURCE_DROP_BUDGET" default:"0"`
	WhaleAlertEnabled bool          `envconfig:"WHALE_ALERT_ENABLED" default:"true"`
}

// SupervisorConfig tunes source lifecycle management
type SupervisorConfig struct {
	HealthWindow    time.Duration `envconfig:"SUPERVISOR_HEALTH_WINDOW" default:"120s"`
	BackoffBase     time.Duration `envconfig:"SUPERVISOR_BACKOFF_BASE" default:"1s"`
	BackoffCap      time.Duration `envconfig:"SUPERVISOR_BACKOFF_CAP" default:"60s"`
	BreakerInterval time.Duration `envconfig:"SUPERVISOR_BREAKER_INTERVAL" default:"60s"`
	BreakerHalfOpen time.Duration `envconfig:"SUPERVISOR_BREAKER_HALFOPEN" default:"30s"`
	BreakerFailures uint32        `envconfig:"SUPERVISOR_BREAKER_FAILURES" default:"10"`
}

// RegistryConfig controls whale registry persistence
type RegistryConfig struct {
	SnapshotPath     string        `envconfig:"REGISTRY_SNAPSHOT_PATH" default:"data/whale_registry.json"`
	SnapshotInterval time.Duration `envconfig:"REGISTRY_SNAPSHOT_INTERVAL" default:"60s"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	Name           string `envconfig:"DB_NAME" default:"whale_monitor"`
	User           string `envconfig:"DB_USER" required:"true"`
	Password       string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// RedisConfig represents redis connection parameters
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
}

// ClickHouseConfig points at the analytical backend used by the
// mega-whale phase and the metrics buffer. Optional.
type ClickHouseConfig struct {
	Host          string        `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Name          string        `envconfig:"CLICKHOUSE_DB" default:"whale_analytics"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Enabled       bool          `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	MetricsBatch  int           `envconfig:"CLICKHOUSE_METRICS_BATCH" default:"200"`
	MetricsFlush  time.Duration `envconfig:"CLICKHOUSE_METRICS_FLUSH" default:"10s"`
	TicksInterval time.Duration `envconfig:"CLICKHOUSE_TICKS_INTERVAL" default:"30s"`
}

// HealthConfig configures the liveness/readiness HTTP server
type HealthConfig struct {
	Port string `envconfig:"HEALTH_PORT" default:"8086"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Pipeline.DedupShards < 1 {
		return fmt.Errorf("dedup shard count must be at least 1")
	}
	if c.Pipeline.FanInQueueSize < 1 {
		return fmt.Errorf("fan-in queue size must be positive")
	}
	if c.Dedup.TimeWindow <= 0 {
		return fmt.Errorf("near-dupe time window must be positive")
	}
	if c.Dedup.SafeguardUSD <= 0 {
		return fmt.Errorf("near-dupe safeguard threshold must be positive")
	}
	if c.Classification.MediumConfidence >= c.Classification.HighConfidence {
		return fmt.Errorf("medium confidence threshold must be below high")
	}
	if c.Classification.HighConfidence > 1 || c.Classification.MediumConfidence < 0 {
		return fmt.Errorf("confidence thresholds must stay within [0,1]")
	}
	if c.Labels.CacheSize < 1 {
		return fmt.Errorf("label cache size must be positive")
	}
	if c.Labels.RemoteRPS <= 0 {
		return fmt.Errorf("label remote rate must be positive")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the ClickHouse native endpoint
func (c *ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetDSN returns the ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}
