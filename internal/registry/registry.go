package registry

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Thresholds for the proven-whale transition and smart money scoring
const (
	provenTradeCount = 5
	provenTotalUSD   = 250_000

	scoreBase         = 0.5
	scoreTradeBonus   = 0.2
	scoreVolumeBonus  = 0.2
	scoreBreadthBonus = 0.1

	scoreTradeThreshold  = 20
	scoreVolumeThreshold = 1_000_000
	scoreTokenThreshold  = 10

	tradeHistoryLimit = 50
	shardCount        = 32
)

// Registry tracks cumulative per-wallet stats. Shard locks keep observe
// and lookup cheap under the classify worker fan-out.
type Registry struct {
	shards [shardCount]shard
}

type shard struct {
	mu     sync.RWMutex
	whales map[string]*models.WhaleStats
}

// New creates an empty registry
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].whales = make(map[string]*models.WhaleStats)
	}
	return r
}

func (r *Registry) shardFor(address string) *shard {
	h := fnv.New32a()
	h.Write([]byte(address))
	return &r.shards[h.Sum32()%shardCount]
}

// Observe folds one classified record into the wallet's stats
func (r *Registry) Observe(whaleAddress string, kind models.ClassificationKind, usd decimal.Decimal, tokenSymbol string, now time.Time) {
	if whaleAddress == "" {
		return
	}

	s := r.shardFor(whaleAddress)
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.whales[whaleAddress]
	if !ok {
		stats = &models.WhaleStats{
			Address:   whaleAddress,
			FirstSeen: now,
		}
		s.whales[whaleAddress] = stats
	}

	stats.TradeCount++
	stats.TotalUSD = stats.TotalUSD.Add(usd)
	stats.LastSeen = now

	switch {
	case kind.IsBuySide():
		stats.BuyCount++
	case kind.IsSellSide():
		stats.SellCount++
	}

	if tokenSymbol != "" && !stats.HasToken(tokenSymbol) {
		stats.Tokens = append(stats.Tokens, tokenSymbol)
	}

	stats.TradeHistory = append(stats.TradeHistory, models.TradeEntry{
		Timestamp:      now,
		Classification: kind,
		Token:          tokenSymbol,
		USDValue:       usd,
	})
	if len(stats.TradeHistory) > tradeHistoryLimit {
		stats.TradeHistory = stats.TradeHistory[len(stats.TradeHistory)-tradeHistoryLimit:]
	}

	recompute(stats)
}

// recompute refreshes the derived fields; callers hold the shard lock
func recompute(stats *models.WhaleStats) {
	totalUSD := models.ToFloat64(stats.TotalUSD)

	stats.IsProven = stats.TradeCount >= provenTradeCount && totalUSD >= provenTotalUSD

	score := scoreBase
	if stats.TradeCount >= scoreTradeThreshold {
		score += scoreTradeBonus
	}
	if totalUSD >= scoreVolumeThreshold {
		score += scoreVolumeBonus
	}
	if len(stats.Tokens) >= scoreTokenThreshold {
		score += scoreBreadthBonus
	}
	stats.SmartMoneyScore = score
}

// Lookup returns a copy of the wallet's stats
func (r *Registry) Lookup(address string) (*models.WhaleStats, bool) {
	s := r.shardFor(address)
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.whales[address]
	if !ok {
		return nil, false
	}

	cp := *stats
	cp.Tokens = append([]string(nil), stats.Tokens...)
	cp.TradeHistory = append([]models.TradeEntry(nil), stats.TradeHistory...)
	return &cp, true
}

// Size reports the number of tracked wallets
func (r *Registry) Size() int {
	total := 0
	for i := range r.shards {
		r.shards[i].mu.RLock()
		total += len(r.shards[i].whales)
		r.shards[i].mu.RUnlock()
	}
	return total
}

// ProvenCount reports how many wallets crossed the proven threshold
func (r *Registry) ProvenCount() int {
	total := 0
	for i := range r.shards {
		r.shards[i].mu.RLock()
		for _, s := range r.shards[i].whales {
			if s.IsProven {
				total++
			}
		}
		r.shards[i].mu.RUnlock()
	}
	return total
}

// snapshotAll copies every entry for persistence
func (r *Registry) snapshotAll() []*models.WhaleStats {
	var out []*models.WhaleStats
	for i := range r.shards {
		r.shards[i].mu.RLock()
		for _, s := range r.shards[i].whales {
			cp := *s
			cp.Tokens = append([]string(nil), s.Tokens...)
			cp.TradeHistory = append([]models.TradeEntry(nil), s.TradeHistory...)
			out = append(out, &cp)
		}
		r.shards[i].mu.RUnlock()
	}
	return out
}

// restore loads entries into the registry, replacing existing ones
func (r *Registry) restore(entries []*models.WhaleStats) {
	for _, e := range entries {
		if e == nil || e.Address == "" {
			continue
		}
		s := r.shardFor(e.Address)
		s.mu.Lock()
		s.whales[e.Address] = e
		s.mu.Unlock()
	}
}
