package labels

import (
	"strings"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Kind inference over raw label strings as returned by explorers and the
// label store. Patterns are checked in priority order; the first match wins.

const (
	confidenceExactEntity = 0.95
	confidenceKeyword     = 0.80
	confidenceCategory    = 0.60
)

type labelPattern struct {
	kind     models.LabelKind
	exact    []string
	keywords []string
	category []string
}

// Order matters: CEX names first, mixers and MEV before the broad DeFi buckets.
var labelPatterns = []labelPattern{
	{
		kind: models.LabelCEX,
		exact: []string{
			"binance", "coinbase", "kraken", "okx", "bybit", "kucoin",
			"huobi", "gate.io", "bitfinex", "gemini", "crypto.com", "upbit",
		},
		keywords: []string{"exchange", "hot wallet", "deposit wallet", "cex"},
		category: []string{"trading"},
	},
	{
		kind:     models.LabelMixer,
		exact:    []string{"tornado cash", "tornado.cash"},
		keywords: []string{"mixer", "tumbler"},
	},
	{
		kind:     models.LabelMEV,
		exact:    []string{"wintermute", "jump trading", "flashbots"},
		keywords: []string{"mev", "market maker", "searcher", "sandwich"},
	},
	{
		kind:     models.LabelDEX,
		exact:    []string{"uniswap", "sushiswap", "curve.fi", "pancakeswap", "raydium", "jupiter"},
		keywords: []string{"router", "swap", "aggregator", "amm", "dex"},
		category: []string{"pool"},
	},
	{
		kind:     models.LabelBridge,
		exact:    []string{"wormhole", "multichain", "stargate"},
		keywords: []string{"bridge", "gateway", "portal", "cross-chain"},
	},
	{
		kind:     models.LabelLending,
		exact:    []string{"aave", "compound", "morpho"},
		keywords: []string{"lending", "borrow", "collateral"},
	},
	{
		kind:     models.LabelStaking,
		exact:    []string{"lido", "rocket pool", "eth2 deposit"},
		keywords: []string{"staking", "validator", "stake"},
	},
	{
		kind:     models.LabelYield,
		exact:    []string{"yearn", "convex"},
		keywords: []string{"yield", "vault", "farm"},
	},
}

// matchesEntity reports whether the label names the entity, alone or
// followed by a qualifier ("binance 14", "lido: steth")
func matchesEntity(label, name string) bool {
	if label == name {
		return true
	}
	for _, sep := range []string{" ", "_", ":"} {
		if strings.HasPrefix(label, name+sep) {
			return true
		}
	}
	return false
}

// InferKind maps a raw label string to a kind and a confidence.
// Unmatched labels come back UNKNOWN with zero confidence. Exact entity
// names beat keywords, keywords beat broad category hints; a later
// pattern's exact name must not lose to an earlier pattern's category.
func InferKind(rawLabel string) (models.LabelKind, float64) {
	label := strings.ToLower(strings.TrimSpace(rawLabel))
	if label == "" {
		return models.LabelUnknown, 0
	}

	for _, p := range labelPatterns {
		for _, name := range p.exact {
			if matchesEntity(label, name) {
				return p.kind, confidenceExactEntity
			}
		}
	}
	for _, p := range labelPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(label, kw) {
				return p.kind, confidenceKeyword
			}
		}
	}
	for _, p := range labelPatterns {
		for _, cat := range p.category {
			if strings.Contains(label, cat) {
				return p.kind, confidenceCategory
			}
		}
	}

	return models.LabelUnknown, 0
}

// EntityFromLabel extracts a stable entity name from a raw label,
// e.g. "Binance 14" -> "binance"
func EntityFromLabel(rawLabel string) string {
	label := strings.ToLower(strings.TrimSpace(rawLabel))
	for _, p := range labelPatterns {
		for _, name := range p.exact {
			if matchesEntity(label, name) {
				return name
			}
		}
	}
	if i := strings.IndexAny(label, " _:"); i > 0 {
		return label[:i]
	}
	return label
}
