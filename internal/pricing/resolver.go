package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
)

// Feed is a remote spot-price source
type Feed interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// stablecoins are pegged 1:1 to USD and skip the feed entirely
var stablecoins = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
	"BUSD": {},
	"TUSD": {},
	"FRAX": {},
	"USDP": {},
	"GUSD": {},
}

// IsStablecoin reports whether a symbol is a known USD stablecoin
func IsStablecoin(symbol string) bool {
	_, ok := stablecoins[symbol]
	return ok
}

type observedPrice struct {
	at    time.Time
	price decimal.Decimal
}

// Resolver computes USD value at event time. A price is applied only while
// it is within the staleness budget; beyond that the caller proceeds with
// usd_value=0 and a price_missing tag.
type Resolver struct {
	feed      Feed
	mu        sync.RWMutex
	last      map[string]observedPrice
	staleness time.Duration
}

// NewResolver creates a price resolver over an optional feed
func NewResolver(feed Feed, staleness time.Duration) *Resolver {
	return &Resolver{
		feed:      feed,
		last:      make(map[string]observedPrice),
		staleness: staleness,
	}
}

// Price returns the USD price per unit for the symbol at the given time,
// or ok=false when no sufficiently fresh price is known
func (r *Resolver) Price(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, bool) {
	if symbol == "" {
		return decimal.Zero, false
	}

	if IsStablecoin(symbol) {
		return decimal.NewFromInt(1), true
	}

	r.mu.RLock()
	obs, ok := r.last[symbol]
	r.mu.RUnlock()

	if ok && absDuration(at.Sub(obs.at)) <= r.staleness {
		return obs.price, true
	}

	if r.feed == nil {
		return decimal.Zero, false
	}

	value, err := r.feed.GetPrice(ctx, symbol)
	if err != nil {
		logger.Debug("price feed lookup failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return decimal.Zero, false
	}

	price := decimal.NewFromFloat(value)
	now := time.Now().UTC()

	r.mu.Lock()
	r.last[symbol] = observedPrice{at: now, price: price}
	r.mu.Unlock()

	// A fresh feed price still has to be close enough to the event time
	if absDuration(at.Sub(now)) > r.staleness {
		return decimal.Zero, false
	}

	return price, true
}

// Observe records a price reported by an ingestion source (e.g. an alert
// feed that carries its own USD valuation), so later events can reuse it
func (r *Resolver) Observe(symbol string, at time.Time, price decimal.Decimal) {
	if symbol == "" || price.Sign() <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.last[symbol]; !ok || at.After(existing.at) {
		r.last[symbol] = observedPrice{at: at, price: price}
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
