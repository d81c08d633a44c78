package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/selivandex/whale-monitor/internal/pricing"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// DEXPhase classifies interactions with routers, aggregators and protocol
// contracts. Router direction alone is not trusted: a BUY/SELL verdict
// requires a decoded swap or a known intent method. Without either the
// phase abstains, unless coverage mode is explicitly enabled.
type DEXPhase struct {
	// coverageMode enables the unsound User->Router => SELL fallback
	coverageMode bool
	// bridgeDirectional maps bridge deposits/exits to BUY/SELL
	bridgeDirectional bool
}

// NewDEXPhase creates the DEX/protocol phase
func NewDEXPhase(coverageMode, bridgeDirectional bool) *DEXPhase {
	return &DEXPhase{coverageMode: coverageMode, bridgeDirectional: bridgeDirectional}
}

func (p *DEXPhase) Name() string { return "dex_protocol" }

func (p *DEXPhase) Weight() float64 { return weightDEX }

// Evaluate decodes router intent from labels and receipt facts
func (p *DEXPhase) Evaluate(_ context.Context, t *models.EnrichedTransfer, facts *SwapFacts) PhaseResult {
	// Protocol interactions recognizable from labels alone
	if r, ok := p.classifyByLabelKind(t, facts); ok {
		return r
	}

	fromDEX := t.FromLabel != nil && t.FromLabel.Kind == models.LabelDEX
	toDEX := t.ToLabel != nil && t.ToLabel.Kind == models.LabelDEX
	if !fromDEX && !toDEX {
		return Abstain()
	}

	if facts != nil && facts.Decoded {
		if !facts.Success {
			return Abstain()
		}
		if r, ok := classifyIntentMethod(facts); ok {
			return r
		}
		if r, ok := classifySwapDirection(facts); ok {
			return r
		}
	}

	if p.coverageMode && toDEX {
		return PhaseResult{
			Kind:       models.KindSell,
			Confidence: 0.60,
			Evidence:   []string{fmt.Sprintf("Coverage mode: transfer into %s", t.ToLabel.Entity())},
			Tags:       []string{"dex_coverage_heuristic"},
		}
	}

	// Router touched but nothing decoded: direction unknowable
	return Abstain()
}

// classifyByLabelKind handles bridges, staking, lending and yield contracts
func (p *DEXPhase) classifyByLabelKind(t *models.EnrichedTransfer, facts *SwapFacts) (PhaseResult, bool) {
	toKind := labelKind(t.ToLabel)
	fromKind := labelKind(t.FromLabel)

	switch {
	case toKind == models.LabelBridge:
		if p.bridgeDirectional {
			return PhaseResult{
				Kind:       models.KindBuy,
				Confidence: 0.70,
				Evidence:   []string{fmt.Sprintf("Bridge deposit to %s (L2 accumulation)", t.ToLabel.Entity())},
				Tags:       []string{"bridge_deposit"},
			}, true
		}
		return PhaseResult{
			Kind:       models.KindBridge,
			Confidence: 0.75,
			Evidence:   []string{fmt.Sprintf("Bridge deposit to %s", t.ToLabel.Entity())},
			Tags:       []string{"bridge_deposit"},
		}, true

	case fromKind == models.LabelBridge:
		if p.bridgeDirectional {
			return PhaseResult{
				Kind:       models.KindSell,
				Confidence: 0.65,
				Evidence:   []string{fmt.Sprintf("Bridge exit from %s (L1 exit)", t.FromLabel.Entity())},
				Tags:       []string{"bridge_exit"},
			}, true
		}
		return PhaseResult{
			Kind:       models.KindBridge,
			Confidence: 0.70,
			Evidence:   []string{fmt.Sprintf("Bridge exit from %s", t.FromLabel.Entity())},
			Tags:       []string{"bridge_exit"},
		}, true

	case toKind == models.LabelStaking:
		return PhaseResult{
			Kind:       models.KindStaking,
			Confidence: 0.85,
			Evidence:   []string{fmt.Sprintf("Staked into %s", t.ToLabel.Entity())},
			Tags:       []string{"staking"},
		}, true

	case fromKind == models.LabelStaking:
		// Unstaking is a sell-side transfer, not a SELL
		return PhaseResult{
			Kind:       models.KindTransfer,
			Confidence: 0.70,
			Evidence:   []string{fmt.Sprintf("Unstaked from %s", t.FromLabel.Entity())},
			Tags:       []string{"unstaking", "sell_side"},
		}, true

	case toKind == models.LabelLending || fromKind == models.LabelLending,
		toKind == models.LabelYield || fromKind == models.LabelYield:
		_ = facts
		return PhaseResult{
			Kind:       models.KindDefi,
			Confidence: 0.75,
			Evidence:   []string{"DeFi protocol interaction"},
			Tags:       []string{"defi"},
		}, true
	}

	return PhaseResult{}, false
}

func labelKind(l *models.AddressLabel) models.LabelKind {
	if l == nil {
		return models.LabelUnknown
	}
	return l.Kind
}

// classifyIntentMethod recognizes non-swap router intents
func classifyIntentMethod(facts *SwapFacts) (PhaseResult, bool) {
	method := strings.ToLower(facts.Method)
	switch {
	case strings.HasPrefix(method, "addliquidity"), strings.HasPrefix(method, "removeliquidity"):
		return PhaseResult{
			Kind:       models.KindLiquidity,
			Confidence: 0.85,
			Evidence:   []string{fmt.Sprintf("Liquidity operation %s on %s", facts.Method, facts.Protocol)},
			Tags:       []string{"liquidity"},
		}, true
	case strings.HasPrefix(method, "stake"), strings.HasPrefix(method, "deposit") && strings.Contains(facts.Protocol, "staking"):
		return PhaseResult{
			Kind:       models.KindStaking,
			Confidence: 0.80,
			Evidence:   []string{fmt.Sprintf("Staking method %s", facts.Method)},
			Tags:       []string{"staking"},
		}, true
	}
	return PhaseResult{}, false
}

// majorTokens approximates "not low-cap" for the direction heuristic on
// crypto-to-crypto swaps
var majorTokens = map[string]struct{}{
	"BTC": {}, "WBTC": {}, "ETH": {}, "WETH": {}, "SOL": {}, "BNB": {},
	"XRP": {}, "ADA": {}, "AVAX": {}, "MATIC": {}, "LINK": {}, "UNI": {},
	"DOT": {}, "LTC": {}, "TRX": {},
}

func isMajor(symbol string) bool {
	_, ok := majorTokens[strings.ToUpper(symbol)]
	return ok
}

// classifySwapDirection derives BUY/SELL from a decoded swap: acquiring a
// non-stable against a stable is a BUY, the reverse a SELL. Crypto-to-crypto
// swaps stay DEFI unless the inbound leg is low cap (accumulation).
func classifySwapDirection(facts *SwapFacts) (PhaseResult, bool) {
	if len(facts.TokensIn) == 0 || len(facts.TokensOut) == 0 {
		return PhaseResult{}, false
	}

	in := facts.TokensIn[0]
	out := facts.TokensOut[0]
	inStable := pricing.IsStablecoin(in.Symbol)
	outStable := pricing.IsStablecoin(out.Symbol)

	switch {
	case !inStable && outStable:
		return PhaseResult{
			Kind:       models.KindBuy,
			Confidence: 0.85,
			Evidence:   []string{fmt.Sprintf("Swap decoded: acquired %s for %s on %s", in.Symbol, out.Symbol, facts.Protocol)},
			Tags:       []string{"swap_decoded"},
		}, true

	case inStable && !outStable:
		return PhaseResult{
			Kind:       models.KindSell,
			Confidence: 0.85,
			Evidence:   []string{fmt.Sprintf("Swap decoded: sold %s for %s on %s", out.Symbol, in.Symbol, facts.Protocol)},
			Tags:       []string{"swap_decoded"},
		}, true

	case inStable && outStable:
		return PhaseResult{
			Kind:       models.KindTransfer,
			Confidence: 0.60,
			Evidence:   []string{"Stable-to-stable swap"},
			Tags:       []string{"swap_decoded"},
		}, true

	default:
		if !isMajor(in.Symbol) && isMajor(out.Symbol) {
			// Rotating a major into a low-cap token reads as accumulation
			return PhaseResult{
				Kind:       models.KindBuy,
				Confidence: 0.65,
				Evidence:   []string{fmt.Sprintf("Swap decoded: rotated %s into low-cap %s", out.Symbol, in.Symbol)},
				Tags:       []string{"swap_decoded", "low_cap_inbound"},
			}, true
		}
		return PhaseResult{
			Kind:       models.KindDefi,
			Confidence: 0.70,
			Evidence:   []string{fmt.Sprintf("Crypto-to-crypto swap %s -> %s", out.Symbol, in.Symbol)},
			Tags:       []string{"swap_decoded"},
		}, true
	}
}
