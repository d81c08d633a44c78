package labels

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// RemoteSource is an explorer-backed label lookup. Calls are expensive and
// rate limited; the provider gates them behind a token bucket.
type RemoteSource interface {
	FetchLabel(ctx context.Context, address string, chain models.Chain) (*models.AddressLabel, error)
}

// Provider resolves addresses to labels. Lookup never fails: any error
// degrades to an UNKNOWN label.
//
// Resolution order: process-local LRU, built-in registry, label store,
// remote explorer (rate limited). The highest-confidence candidate wins;
// ties are broken by freshness.
type Provider struct {
	cache    *expirable.LRU[string, *models.AddressLabel]
	negative *expirable.LRU[string, struct{}]
	builtin  map[models.Chain]map[string]*models.AddressLabel
	store    Store
	remote   RemoteSource
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewProvider builds a label provider. Store and remote are optional.
func NewProvider(cfg *config.LabelsConfig, store Store, remote RemoteSource) *Provider {
	return &Provider{
		cache:    expirable.NewLRU[string, *models.AddressLabel](cfg.CacheSize, nil, cfg.TTL.Duration()),
		negative: expirable.NewLRU[string, struct{}](cfg.CacheSize/10, nil, cfg.NegativeTTL),
		builtin:  BuiltinRegistry(),
		store:    store,
		remote:   remote,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RemoteRPS), int(cfg.RemoteRPS)+1),
		timeout:  cfg.LookupTimeout,
	}
}

func cacheKey(address string, chain models.Chain) string {
	return string(chain) + ":" + address
}

// Lookup resolves an address to its label. Never returns nil.
func (p *Provider) Lookup(ctx context.Context, address string, chain models.Chain) *models.AddressLabel {
	if address == "" {
		return models.UnknownLabel(address, chain)
	}

	key := cacheKey(address, chain)

	if label, ok := p.cache.Get(key); ok {
		return label
	}

	best := p.lookupBuiltin(address, chain)

	if p.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		stored, err := p.store.Get(storeCtx, address, chain)
		cancel()
		if err != nil {
			logger.Debug("label store lookup failed",
				zap.String("address", address),
				zap.Error(err),
			)
		} else {
			best = pickBetter(best, stored)
		}
	}

	if best == nil {
		best = p.lookupRemote(ctx, address, chain)
	}

	if best == nil {
		best = models.UnknownLabel(address, chain)
	}

	p.cache.Add(key, best)
	return best
}

func (p *Provider) lookupBuiltin(address string, chain models.Chain) *models.AddressLabel {
	byChain, ok := p.builtin[chain]
	if !ok {
		return nil
	}
	return byChain[address]
}

// lookupRemote calls the explorer, respecting the token bucket and the
// negative cache. Failures negative-cache the address for a short period
// to prevent a thundering herd.
func (p *Provider) lookupRemote(ctx context.Context, address string, chain models.Chain) *models.AddressLabel {
	if p.remote == nil {
		return nil
	}

	key := cacheKey(address, chain)
	if _, recentFailure := p.negative.Get(key); recentFailure {
		return nil
	}

	if !p.limiter.Allow() {
		return nil
	}

	remoteCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	label, err := p.remote.FetchLabel(remoteCtx, address, chain)
	if err != nil {
		p.negative.Add(key, struct{}{})
		logger.Debug("remote label lookup failed",
			zap.String("address", address),
			zap.String("chain", string(chain)),
			zap.Error(err),
		)
		return nil
	}

	if label != nil && p.store != nil {
		storeCtx, storeCancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.store.Upsert(storeCtx, label); err != nil {
			logger.Debug("failed to persist remote label", zap.Error(err))
		}
		storeCancel()
	}

	return label
}

// pickBetter applies the precedence rule: higher confidence wins,
// freshness breaks ties
func pickBetter(a, b *models.AddressLabel) *models.AddressLabel {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Confidence > a.Confidence {
		return b
	}
	if b.Confidence == a.Confidence && b.UpdatedAt.After(a.UpdatedAt) {
		return b
	}
	return a
}

// CacheLen reports the number of cached labels, used by stats
func (p *Provider) CacheLen() int {
	return p.cache.Len()
}
