package classify

import (
	"context"
	"fmt"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// CEXPhase classifies transfers touching known exchange hot wallets.
// Direction follows custody: funds leaving an exchange were bought,
// funds arriving at an exchange are being sold.
type CEXPhase struct{}

// NewCEXPhase creates the CEX classification phase
func NewCEXPhase() *CEXPhase {
	return &CEXPhase{}
}

func (p *CEXPhase) Name() string { return "cex" }

func (p *CEXPhase) Weight() float64 { return weightCEX }

const cexBaseConfidence = 0.90

// Evaluate matches from/to labels against the CEX set
func (p *CEXPhase) Evaluate(_ context.Context, t *models.EnrichedTransfer, _ *SwapFacts) PhaseResult {
	fromCEX := t.FromLabel.IsCEX()
	toCEX := t.ToLabel.IsCEX()

	switch {
	case fromCEX && toCEX:
		if t.FromLabel.Entity() == t.ToLabel.Entity() {
			// Internal exchange shuffle, not a whale action
			return PhaseResult{
				Kind:       models.KindTransfer,
				Confidence: 0.99,
				Skip:       true,
				Evidence:   []string{fmt.Sprintf("Internal %s move", t.FromLabel.Entity())},
				Tags:       []string{"cex_internal"},
			}
		}
		return PhaseResult{
			Kind:       models.KindTransfer,
			Confidence: 0.85,
			Evidence: []string{fmt.Sprintf("Exchange-to-exchange transfer %s -> %s",
				t.FromLabel.Entity(), t.ToLabel.Entity())},
			Tags: []string{"cex_to_cex"},
		}

	case fromCEX && t.ToLabel.IsPlainWallet():
		return PhaseResult{
			Kind:       models.KindBuy,
			Confidence: cexBaseConfidence,
			Evidence:   []string{fmt.Sprintf("CEX withdrawal from %s", properEntity(t.FromLabel))},
			Tags:       []string{"cex_withdrawal"},
		}

	case toCEX && t.FromLabel.IsPlainWallet():
		return PhaseResult{
			Kind:       models.KindSell,
			Confidence: cexBaseConfidence,
			Evidence:   []string{fmt.Sprintf("CEX deposit to %s", properEntity(t.ToLabel))},
			Tags:       []string{"cex_deposit"},
		}
	}

	return Abstain()
}

// properEntity capitalizes the entity name for evidence lines
func properEntity(l *models.AddressLabel) string {
	name := l.Entity()
	if name == "" {
		return "exchange"
	}
	b := []byte(name)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
