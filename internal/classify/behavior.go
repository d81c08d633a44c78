package classify

import (
	"fmt"
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Behavioral confidence boosts stacked on top of the leading directional
// signal after aggregation
const (
	boostLargeUSD    = 0.15
	boostGasHigh     = 0.10
	boostGasElevated = 0.05
	boostProvenWhale = 0.15
	boostActiveWhale = 0.08
	boostPeakHours   = 0.04

	largeUSDThreshold = 100_000
	gasHighGwei       = 100.0
	gasElevatedGwei   = 50.0
	activeTradeCount  = 10
	activeRecency     = 30 * 24 * time.Hour
	peakHourStartUTC  = 13
	peakHourEndUTC    = 21
)

// BehaviorAnalyzer computes wallet-behavior boosts. It does not vote a
// direction; its output amplifies whichever direction won aggregation.
type BehaviorAnalyzer struct {
	intel WhaleIntel
}

// NewBehaviorAnalyzer creates the behavior analyzer; intel may be nil
func NewBehaviorAnalyzer(intel WhaleIntel) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{intel: intel}
}

// BoostResult is the stacked behavioral adjustment with its evidence
type BoostResult struct {
	Evidence []string
	Boost    float64
}

// Analyze computes the total behavioral boost for a transfer. The whale
// address identifies which wallet's history to consult; empty disables
// the registry boosts.
func (b *BehaviorAnalyzer) Analyze(t *models.EnrichedTransfer, whaleAddress string) BoostResult {
	var res BoostResult

	// Missing USD value never blocks classification, it only loses this boost
	if !t.PriceMissing && models.ToFloat64(t.USDValue) >= largeUSDThreshold {
		res.Boost += boostLargeUSD
		res.Evidence = append(res.Evidence,
			fmt.Sprintf("Large position: $%.0f", models.ToFloat64(t.USDValue)))
	}

	switch {
	case t.GasPriceGwei >= gasHighGwei:
		res.Boost += boostGasHigh
		res.Evidence = append(res.Evidence,
			fmt.Sprintf("High gas price (%.0f gwei) indicates urgency", t.GasPriceGwei))
	case t.GasPriceGwei >= gasElevatedGwei:
		res.Boost += boostGasElevated
		res.Evidence = append(res.Evidence,
			fmt.Sprintf("Elevated gas price (%.0f gwei) suggests urgency", t.GasPriceGwei))
	}

	if b.intel != nil && whaleAddress != "" {
		if stats, ok := b.intel.Lookup(whaleAddress); ok {
			switch {
			case stats.IsProven:
				res.Boost += boostProvenWhale
				res.Evidence = append(res.Evidence, "Proven whale wallet")
			case stats.TradeCount >= activeTradeCount &&
				time.Since(stats.LastSeen) < activeRecency:
				res.Boost += boostActiveWhale
				res.Evidence = append(res.Evidence, "Active trading wallet")
			}
		}
	}

	hour := t.BlockTime.UTC().Hour()
	if hour >= peakHourStartUTC && hour < peakHourEndUTC {
		res.Boost += boostPeakHours
		res.Evidence = append(res.Evidence, "Peak trading hours")
	}

	return res
}
