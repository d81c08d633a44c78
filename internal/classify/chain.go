package classify

import (
	"context"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// ChainPhase votes on blockchain-level evidence: the decoded receipt.
// It abstains when the receipt is unavailable or the transaction failed.
// Evaluation is pure over the facts and safe to re-run.
type ChainPhase struct{}

// NewChainPhase creates the blockchain-specific phase
func NewChainPhase() *ChainPhase {
	return &ChainPhase{}
}

func (p *ChainPhase) Name() string { return "blockchain" }

func (p *ChainPhase) Weight() float64 { return weightChain }

// Evaluate turns decoded swap facts into a direction vote
func (p *ChainPhase) Evaluate(_ context.Context, _ *models.EnrichedTransfer, facts *SwapFacts) PhaseResult {
	if facts == nil || !facts.Decoded || !facts.Success {
		return Abstain()
	}

	if r, ok := classifyIntentMethod(facts); ok {
		// The DEX phase already carries the intent vote; the chain phase
		// seconds it at its own weight
		r.Confidence *= 0.9
		return r
	}

	r, ok := classifySwapDirection(facts)
	if !ok {
		return Abstain()
	}

	// Receipt-level certainty is capped below the label-driven phases
	if r.Confidence > 0.80 {
		r.Confidence = 0.80
	}
	return r
}
