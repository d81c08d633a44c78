package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Historical volume that qualifies a wallet as a mega-whale
const (
	megaWhaleVolumeUSD = 50_000_000
	megaWhaleWindow    = 90 * 24 * time.Hour

	verdictCacheSize = 50_000
	verdictCacheTTL  = 10 * time.Minute
)

// Analytics answers historical questions from the transfer_history table.
// Verdicts are cached so the hot classification path rarely touches
// ClickHouse.
type Analytics struct {
	db    *sqlx.DB
	cache *expirable.LRU[string, bool]
}

// NewAnalytics creates the analytical repository
func NewAnalytics(db *sqlx.DB) *Analytics {
	return &Analytics{
		db:    db,
		cache: expirable.NewLRU[string, bool](verdictCacheSize, nil, verdictCacheTTL),
	}
}

// IsMegaWhale reports whether the address moved mega-whale volume on the
// chain within the lookback window
func (a *Analytics) IsMegaWhale(ctx context.Context, address string, chain models.Chain) (bool, error) {
	key := string(chain) + ":" + address
	if verdict, ok := a.cache.Get(key); ok {
		return verdict, nil
	}

	query := `
		SELECT sum(usd_value) AS total
		FROM transfer_history
		WHERE chain = ? AND (from_addr = ? OR to_addr = ?) AND block_time >= ?
	`

	var total float64
	since := time.Now().Add(-megaWhaleWindow)
	if err := a.db.GetContext(ctx, &total, query, string(chain), address, address, since); err != nil {
		return false, fmt.Errorf("failed to query historical volume: %w", err)
	}

	verdict := total >= megaWhaleVolumeUSD
	a.cache.Add(key, verdict)

	logger.Debug("mega-whale volume checked",
		zap.String("address", address),
		zap.String("chain", string(chain)),
		zap.Float64("total_usd", total),
		zap.Bool("mega_whale", verdict),
	)
	return verdict, nil
}
