package classify

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Phase weights applied during aggregation
const (
	weightCEX      = 0.65
	weightDEX      = 0.60
	weightChain    = 0.50
	weightBehavior = 0.45
)

// PhaseResult is the discriminated output of a single phase. A phase either
// abstains or produces a vote; it never raises.
type PhaseResult struct {
	Kind       models.ClassificationKind
	Evidence   []string
	Tags       []string
	Confidence float64
	// Skip marks a CEX-internal move that must be dropped downstream
	Skip bool
	// Abstained phases contribute nothing to aggregation
	Abstained bool
}

// Abstain produces a no-vote result
func Abstain() PhaseResult {
	return PhaseResult{Abstained: true}
}

// Phase is one stage of the classification pipeline
type Phase interface {
	// Name identifies the phase in evidence and logs
	Name() string
	// Weight is the aggregation weight of this phase's vote
	Weight() float64
	// Evaluate inspects the transfer and the decoded receipt facts.
	// Facts may be nil when the receipt was unavailable.
	Evaluate(ctx context.Context, t *models.EnrichedTransfer, facts *SwapFacts) PhaseResult
}

// TokenAmount is one leg of a decoded swap
type TokenAmount struct {
	Symbol string
	Addr   string
	Amount decimal.Decimal
}

// SwapFacts are the receipt-derived facts the chain phase extracts and the
// DEX phase consumes. Safe to recompute; derivation is idempotent.
type SwapFacts struct {
	// TokensIn are assets the originating wallet received
	TokensIn []TokenAmount
	// TokensOut are assets the originating wallet sent
	TokensOut []TokenAmount
	Method    string
	Protocol  string
	Decoded   bool
	Success   bool
}

// ReceiptSource decodes a transaction receipt into swap facts.
// Implementations must respect the context deadline.
type ReceiptSource interface {
	FetchFacts(ctx context.Context, t *models.EnrichedTransfer) (*SwapFacts, error)
}

// WhaleIntel exposes the whale registry to the behavior phase
type WhaleIntel interface {
	Lookup(address string) (*models.WhaleStats, bool)
}
