package labels

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Store is the persistent registry of address labels. TTL handling is the
// client's responsibility.
type Store interface {
	// Get returns the stored label or nil when the address is unlabeled
	Get(ctx context.Context, address string, chain models.Chain) (*models.AddressLabel, error)
	// Upsert inserts the label, keeping the higher-confidence entry on conflict
	Upsert(ctx context.Context, label *models.AddressLabel) error
}

// PostgresStore keeps labels in the address_labels table
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a label store over an existing connection
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the stored label for an address
func (s *PostgresStore) Get(ctx context.Context, address string, chain models.Chain) (*models.AddressLabel, error) {
	query := `
		SELECT address, chain, kind, entity_name, confidence, updated_at
		FROM address_labels
		WHERE address = $1 AND chain = $2
	`

	var label models.AddressLabel
	err := s.db.GetContext(ctx, &label, query, address, string(chain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query address label: %w", err)
	}

	return &label, nil
}

// Upsert stores the label; an existing higher-confidence entry wins,
// ties are broken by freshness
func (s *PostgresStore) Upsert(ctx context.Context, label *models.AddressLabel) error {
	query := `
		INSERT INTO address_labels (address, chain, kind, entity_name, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address, chain) DO UPDATE SET
			kind = EXCLUDED.kind,
			entity_name = EXCLUDED.entity_name,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
		WHERE address_labels.confidence < EXCLUDED.confidence
			OR (address_labels.confidence = EXCLUDED.confidence
				AND address_labels.updated_at < EXCLUDED.updated_at)
	`

	_, err := s.db.ExecContext(ctx, query,
		label.Address,
		string(label.Chain),
		string(label.Kind),
		label.EntityName,
		label.Confidence,
		label.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert address label: %w", err)
	}

	return nil
}

// negativeMarker is cached in redis for addresses known to be unlabeled
const negativeMarker = "-"

// CachedStore puts a shared redis tier in front of another store so that
// replicas do not hammer Postgres for the same hot addresses
type CachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
	// negative entries expire quickly so fresh labels surface
	negativeTTL time.Duration
}

// NewCachedStore wraps a store with a redis read-through cache
func NewCachedStore(inner Store, rdb *redis.Client, ttl, negativeTTL time.Duration) *CachedStore {
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl, negativeTTL: negativeTTL}
}

func labelCacheKey(address string, chain models.Chain) string {
	return fmt.Sprintf("label:%s:%s", chain, address)
}

// Get consults redis first, falling back to the inner store
func (s *CachedStore) Get(ctx context.Context, address string, chain models.Chain) (*models.AddressLabel, error) {
	key := labelCacheKey(address, chain)

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		if raw == negativeMarker {
			return nil, nil
		}
		var label models.AddressLabel
		if jsonErr := json.Unmarshal([]byte(raw), &label); jsonErr == nil {
			return &label, nil
		}
		// Corrupt cache entry falls through to the inner store
	}

	label, err := s.inner.Get(ctx, address, chain)
	if err != nil {
		return nil, err
	}

	if label == nil {
		s.rdb.Set(ctx, key, negativeMarker, s.negativeTTL)
		return nil, nil
	}

	if payload, jsonErr := json.Marshal(label); jsonErr == nil {
		s.rdb.Set(ctx, key, payload, s.ttl)
	}

	return label, nil
}

// Upsert writes through to the inner store and refreshes the cache
func (s *CachedStore) Upsert(ctx context.Context, label *models.AddressLabel) error {
	if err := s.inner.Upsert(ctx, label); err != nil {
		return err
	}

	if payload, err := json.Marshal(label); err == nil {
		s.rdb.Set(ctx, labelCacheKey(label.Address, label.Chain), payload, s.ttl)
	}

	return nil
}
