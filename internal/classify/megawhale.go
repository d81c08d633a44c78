package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Analytics is the historical analytical backend consulted by the
// mega-whale phase. Opt-in; lookups are best effort.
type Analytics interface {
	// IsMegaWhale reports whether the address has historical mega-whale
	// volume on the chain
	IsMegaWhale(ctx context.Context, address string, chain models.Chain) (bool, error)
}

// MegaWhalePhase adds a small pro-direction signal when either party is a
// historical mega-whale: a receiving mega-whale reads as accumulation,
// a sending one as distribution.
type MegaWhalePhase struct {
	analytics Analytics
	weight    float64
}

// NewMegaWhalePhase creates the mega-whale phase; analytics may be nil
func NewMegaWhalePhase(analytics Analytics, weight float64) *MegaWhalePhase {
	return &MegaWhalePhase{analytics: analytics, weight: weight}
}

func (p *MegaWhalePhase) Name() string { return "mega_whale" }

func (p *MegaWhalePhase) Weight() float64 { return p.weight }

// Evaluate consults the analytical backend for both parties
func (p *MegaWhalePhase) Evaluate(ctx context.Context, t *models.EnrichedTransfer, _ *SwapFacts) PhaseResult {
	if p.analytics == nil {
		return Abstain()
	}

	if t.ToLabel.IsPlainWallet() {
		if mega := p.check(ctx, t.ToAddr, t.Chain); mega {
			return PhaseResult{
				Kind:       models.KindBuy,
				Confidence: 0.50,
				Evidence:   []string{fmt.Sprintf("Historical mega-whale accumulating: %s", shortAddr(t.ToAddr))},
				Tags:       []string{"mega_whale"},
			}
		}
	}

	if t.FromLabel.IsPlainWallet() {
		if mega := p.check(ctx, t.FromAddr, t.Chain); mega {
			return PhaseResult{
				Kind:       models.KindSell,
				Confidence: 0.50,
				Evidence:   []string{fmt.Sprintf("Historical mega-whale distributing: %s", shortAddr(t.FromAddr))},
				Tags:       []string{"mega_whale"},
			}
		}
	}

	return Abstain()
}

func (p *MegaWhalePhase) check(ctx context.Context, address string, chain models.Chain) bool {
	mega, err := p.analytics.IsMegaWhale(ctx, address, chain)
	if err != nil {
		logger.Debug("mega-whale lookup failed",
			zap.String("address", address),
			zap.Error(err),
		)
		return false
	}
	return mega
}

func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "..."
}
