package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// WhaleRepository persists whale records in PostgreSQL. All writes go
// through Upsert, which is idempotent on (chain, tx_hash).
type WhaleRepository struct {
	db *sqlx.DB
}

// NewWhaleRepository creates the repository
func NewWhaleRepository(db *sqlx.DB) *WhaleRepository {
	return &WhaleRepository{db: db}
}

// Upsert inserts or refreshes a record. A conflicting row keeps its
// earliest block time and only takes the incoming classification when the
// incoming confidence is at least as high.
func (r *WhaleRepository) Upsert(ctx context.Context, rec *models.WhaleRecord) error {
	query := `
		INSERT INTO whale_transactions (
			chain, tx_hash, block_time, ingested_at,
			whale_address, counterparty_address, counterparty_kind,
			classification, confidence, token_symbol, usd_value,
			from_label, to_label, evidence, source_id,
			impact_score, is_cex_transaction
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (chain, tx_hash) DO UPDATE SET
			block_time           = LEAST(whale_transactions.block_time, EXCLUDED.block_time),
			whale_address        = CASE WHEN EXCLUDED.confidence >= whale_transactions.confidence
			                            THEN EXCLUDED.whale_address ELSE whale_transactions.whale_address END,
			counterparty_address = CASE WHEN EXCLUDED.confidence >= whale_transactions.confidence
			                            THEN EXCLUDED.counterparty_address ELSE whale_transactions.counterparty_address END,
			counterparty_kind    = CASE WHEN EXCLUDED.confidence >= whale_transactions.confidence
			                            THEN EXCLUDED.counterparty_kind ELSE whale_transactions.counterparty_kind END,
			classification       = CASE WHEN EXCLUDED.confidence >= whale_transactions.confidence
			                            THEN EXCLUDED.classification ELSE whale_transactions.classification END,
			evidence             = CASE WHEN EXCLUDED.confidence >= whale_transactions.confidence
			                            THEN EXCLUDED.evidence ELSE whale_transactions.evidence END,
			is_cex_transaction   = CASE WHEN EXCLUDED.confidence >= whale_transactions.confidence
			                            THEN EXCLUDED.is_cex_transaction ELSE whale_transactions.is_cex_transaction END,
			confidence           = GREATEST(whale_transactions.confidence, EXCLUDED.confidence),
			usd_value            = EXCLUDED.usd_value,
			impact_score         = EXCLUDED.impact_score
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.Chain, rec.TxHash, rec.BlockTime.UTC(), rec.IngestedAt.UTC(),
		rec.WhaleAddress, rec.CounterpartyAddress, rec.CounterpartyKind,
		rec.Classification, rec.Confidence, rec.TokenSymbol, rec.USDValue,
		rec.FromLabel, rec.ToLabel, pq.Array(rec.Evidence), rec.SourceID,
		rec.ImpactScore, rec.IsCEXTransaction,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert whale record %s: %w", rec.TxHash, err)
	}
	return nil
}

// RecentForKey returns the newest records for a (whale, token) key within
// the window around the given time, newest first
func (r *WhaleRepository) RecentForKey(ctx context.Context, whaleAddress, tokenSymbol string, around time.Time, window time.Duration, limit int) ([]*models.WhaleRecord, error) {
	query := `
		SELECT chain, tx_hash, block_time, ingested_at,
		       whale_address, counterparty_address, counterparty_kind,
		       classification, confidence, token_symbol, usd_value,
		       from_label, to_label, source_id, impact_score, is_cex_transaction
		FROM whale_transactions
		WHERE whale_address = $1
		  AND token_symbol = $2
		  AND block_time BETWEEN $3 AND $4
		ORDER BY block_time DESC
		LIMIT $5
	`

	var out []*models.WhaleRecord
	err := r.db.SelectContext(ctx, &out, query,
		whaleAddress, tokenSymbol,
		around.Add(-window).UTC(), around.Add(window).UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent records for %s/%s: %w", whaleAddress, tokenSymbol, err)
	}
	return out, nil
}

// SentimentCounters are stored aggregates over a time range
type SentimentCounters struct {
	BuyCount      int64           `db:"buy_count"`
	SellCount     int64           `db:"sell_count"`
	TransferCount int64           `db:"transfer_count"`
	TotalCount    int64           `db:"total_count"`
	TotalUSD      sql.NullFloat64 `db:"total_usd"`
}

// Counters aggregates classification counts since the given time
func (r *WhaleRepository) Counters(ctx context.Context, since time.Time) (*SentimentCounters, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE classification IN ('BUY', 'MODERATE_BUY'))   AS buy_count,
			COUNT(*) FILTER (WHERE classification IN ('SELL', 'MODERATE_SELL')) AS sell_count,
			COUNT(*) FILTER (WHERE classification = 'TRANSFER')                 AS transfer_count,
			COUNT(*)                                                            AS total_count,
			SUM(usd_value)                                                      AS total_usd
		FROM whale_transactions
		WHERE block_time >= $1
	`

	var c SentimentCounters
	if err := r.db.GetContext(ctx, &c, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to aggregate counters: %w", err)
	}
	return &c, nil
}

// ChainStat is the per-chain activity row used by the stats command
type ChainStat struct {
	Chain      models.Chain    `db:"chain"`
	Count      int64           `db:"cnt"`
	TotalUSD   sql.NullFloat64 `db:"total_usd"`
	LastSeenAt time.Time       `db:"last_seen"`
}

// StatsByChain returns per-chain record counts since the given time
func (r *WhaleRepository) StatsByChain(ctx context.Context, since time.Time) ([]ChainStat, error) {
	query := `
		SELECT chain, COUNT(*) AS cnt, SUM(usd_value) AS total_usd, MAX(block_time) AS last_seen
		FROM whale_transactions
		WHERE block_time >= $1
		GROUP BY chain
		ORDER BY cnt DESC
	`

	var out []ChainStat
	if err := r.db.SelectContext(ctx, &out, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query per-chain stats: %w", err)
	}
	return out, nil
}

// FetchWindow pages records ordered by (whale_address, token_symbol,
// block_time) for the offline duplicate cleaner
func (r *WhaleRepository) FetchWindow(ctx context.Context, since time.Time, limit, offset int) ([]*models.WhaleRecord, error) {
	query := `
		SELECT chain, tx_hash, block_time, ingested_at,
		       whale_address, counterparty_address, counterparty_kind,
		       classification, confidence, token_symbol, usd_value,
		       from_label, to_label, source_id, impact_score, is_cex_transaction
		FROM whale_transactions
		WHERE block_time >= $1
		ORDER BY whale_address, token_symbol, block_time
		LIMIT $2 OFFSET $3
	`

	var out []*models.WhaleRecord
	if err := r.db.SelectContext(ctx, &out, query, since.UTC(), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to fetch cleanup window: %w", err)
	}
	return out, nil
}

// DeleteByHashes removes the given rows; returns the number deleted
func (r *WhaleRepository) DeleteByHashes(ctx context.Context, chain models.Chain, hashes []string) (int64, error) {
	if len(hashes) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM whale_transactions WHERE chain = $1 AND tx_hash = ANY($2)`,
		chain, pq.Array(hashes),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duplicate rows: %w", err)
	}
	return res.RowsAffected()
}
