package classify

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Multi-signal agreement bonus applied during confidence stacking
const (
	concordanceBonusStep = 0.08
	concordanceBonusCap  = 0.32
	maxConfidence        = 0.99
)

// Engine runs the ordered phase pipeline and aggregates the votes into a
// final Classification. The engine never returns an error: failures
// degrade to abstentions and low-confidence TRANSFER verdicts.
type Engine struct {
	cex       *CEXPhase
	dex       *DEXPhase
	chain     *ChainPhase
	megaWhale *MegaWhalePhase
	behavior  *BehaviorAnalyzer
	receipts  ReceiptSource
	cfg       *config.ClassificationConfig
}

// NewEngine wires the classification pipeline. receipts, analytics and
// intel are optional collaborators.
func NewEngine(cfg *config.ClassificationConfig, receipts ReceiptSource, intel WhaleIntel, analytics Analytics) *Engine {
	return &Engine{
		cex:       NewCEXPhase(),
		dex:       NewDEXPhase(cfg.DEXCoverageMode, cfg.BridgeDirectional),
		chain:     NewChainPhase(),
		megaWhale: NewMegaWhalePhase(analytics, cfg.MegaWhaleWeight),
		behavior:  NewBehaviorAnalyzer(intel),
		receipts:  receipts,
		cfg:       cfg,
	}
}

type vote struct {
	phase  Phase
	result PhaseResult
}

// Classify produces the final verdict for an enriched transfer
func (e *Engine) Classify(ctx context.Context, t *models.EnrichedTransfer) models.Classification {
	facts := e.fetchFacts(ctx, t)

	var votes []vote

	// P1 CEX
	if r := e.runPhase(ctx, e.cex, t, facts); !r.Abstained {
		if r.Skip {
			return models.Classification{
				Kind:       models.KindTransfer,
				Confidence: r.Confidence,
				Evidence:   r.Evidence,
				Tags:       r.Tags,
				Skip:       true,
			}
		}
		if r.Kind.IsDirectional() && e.cfg.CEXEarlyExit > 0 && r.Confidence >= e.cfg.CEXEarlyExit {
			return e.finalizeSingle(t, r)
		}
		votes = append(votes, vote{e.cex, r})
	}

	// P2 DEX / protocol
	if r := e.runPhase(ctx, e.dex, t, facts); !r.Abstained {
		if r.Kind.IsDirectional() && e.cfg.DEXEarlyExit > 0 && r.Confidence >= e.cfg.DEXEarlyExit {
			return e.finalizeSingle(t, r)
		}
		votes = append(votes, vote{e.dex, r})
	}

	// P3 blockchain-specific
	if e.stackReached(votes) {
		return e.aggregate(t, votes)
	}
	if r := e.runPhase(ctx, e.chain, t, facts); !r.Abstained {
		votes = append(votes, vote{e.chain, r})
	}

	// P5 mega-whale (P4 is a boost, not a vote)
	if e.stackReached(votes) {
		return e.aggregate(t, votes)
	}
	if r := e.runPhase(ctx, e.megaWhale, t, facts); !r.Abstained {
		votes = append(votes, vote{e.megaWhale, r})
	}

	return e.aggregate(t, votes)
}

// fetchFacts decodes the receipt once for all phases; nil on any failure
func (e *Engine) fetchFacts(ctx context.Context, t *models.EnrichedTransfer) *SwapFacts {
	if e.receipts == nil {
		return nil
	}

	factsCtx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeout)
	defer cancel()

	facts, err := e.receipts.FetchFacts(factsCtx, t)
	if err != nil {
		logger.Debug("receipt facts unavailable",
			zap.String("tx_hash", t.TxHash),
			zap.Error(err),
		)
		return nil
	}
	return facts
}

// runPhase guards a phase with the per-phase deadline
func (e *Engine) runPhase(ctx context.Context, p Phase, t *models.EnrichedTransfer, facts *SwapFacts) PhaseResult {
	phaseCtx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeout)
	defer cancel()

	r := p.Evaluate(phaseCtx, t, facts)
	if phaseCtx.Err() != nil {
		return Abstain()
	}
	return r
}

// finalizeSingle finishes on an early-exit vote, stacking only the
// behavioral boosts
func (e *Engine) finalizeSingle(t *models.EnrichedTransfer, r PhaseResult) models.Classification {
	c := models.Classification{
		Kind:       r.Kind,
		Confidence: r.Confidence,
		Evidence:   r.Evidence,
		Tags:       r.Tags,
	}
	e.applyBehavior(t, &c)
	e.mapThresholds(&c)
	e.applyAlertPolicy(t, &c)
	return c
}

// aggregate stacks all votes per direction, picks the winner and applies
// the behavioral boosts
func (e *Engine) aggregate(t *models.EnrichedTransfer, votes []vote) models.Classification {
	if len(votes) == 0 {
		c := models.Classification{
			Kind:       models.KindTransfer,
			Confidence: 0,
			Evidence:   []string{"No classification signals"},
		}
		e.applyAlertPolicy(t, &c)
		return c
	}

	if resolved, ok := e.resolveConflict(votes); ok {
		e.applyBehavior(t, &resolved)
		e.mapThresholds(&resolved)
		e.applyAlertPolicy(t, &resolved)
		return resolved
	}

	buckets := make(map[models.ClassificationKind][]vote)
	for _, v := range votes {
		buckets[bucketFor(v.result.Kind)] = append(buckets[bucketFor(v.result.Kind)], v)
	}

	var (
		bestKind  models.ClassificationKind
		bestScore float64
	)
	kinds := make([]models.ClassificationKind, 0, len(buckets))
	for k := range buckets {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, k := range kinds {
		score := StackConfidence(buckets[k])
		if score > bestScore {
			bestScore = score
			bestKind = k
		}
	}

	c := models.Classification{
		Kind:       bestKind,
		Confidence: clamp(bestScore),
	}
	for _, v := range buckets[bestKind] {
		c.Evidence = append(c.Evidence, v.result.Evidence...)
		c.Tags = append(c.Tags, v.result.Tags...)
	}

	e.applyBehavior(t, &c)
	e.mapThresholds(&c)
	e.applyAlertPolicy(t, &c)
	return c
}

// stackReached reports whether the stacked confidence of the leading
// direction already clears the global early-exit threshold, making the
// remaining phases redundant
func (e *Engine) stackReached(votes []vote) bool {
	if e.cfg.EarlyExit <= 0 || len(votes) == 0 {
		return false
	}

	buckets := make(map[models.ClassificationKind][]vote)
	for _, v := range votes {
		buckets[bucketFor(v.result.Kind)] = append(buckets[bucketFor(v.result.Kind)], v)
	}
	for _, bucket := range buckets {
		if StackConfidence(bucket) >= e.cfg.EarlyExit {
			return true
		}
	}
	return false
}

// bucketFor folds moderate kinds into their strong direction for stacking
func bucketFor(k models.ClassificationKind) models.ClassificationKind {
	switch {
	case k.IsBuySide():
		return models.KindBuy
	case k.IsSellSide():
		return models.KindSell
	default:
		return k
	}
}

// StackConfidence combines concordant votes:
//
//	C = 1 - Π(1 - w·c) · (1 + bonus), bonus = (n-1)·0.08 capped at 0.32
func StackConfidence(votes []vote) float64 {
	if len(votes) == 0 {
		return 0
	}

	product := 1.0
	for _, v := range votes {
		product *= 1 - v.phase.Weight()*v.result.Confidence
	}

	bonus := float64(len(votes)-1) * concordanceBonusStep
	if bonus > concordanceBonusCap {
		bonus = concordanceBonusCap
	}

	return math.Max(0, 1-product*(1+bonus))
}

// resolveConflict handles CEX and DEX phases disagreeing at comparable
// confidence: blockchain evidence wins when present, otherwise TRANSFER
func (e *Engine) resolveConflict(votes []vote) (models.Classification, bool) {
	var cexVote, dexVote, chainVote *vote
	for i := range votes {
		switch votes[i].phase.Name() {
		case "cex":
			cexVote = &votes[i]
		case "dex_protocol":
			dexVote = &votes[i]
		case "blockchain":
			chainVote = &votes[i]
		}
	}

	if cexVote == nil || dexVote == nil {
		return models.Classification{}, false
	}

	ck, dk := bucketFor(cexVote.result.Kind), bucketFor(dexVote.result.Kind)
	directional := ck.IsDirectional() && dk.IsDirectional()
	comparable := math.Abs(cexVote.result.Confidence-dexVote.result.Confidence) <= 0.15

	if !directional || ck == dk || !comparable {
		return models.Classification{}, false
	}

	if chainVote != nil && bucketFor(chainVote.result.Kind).IsDirectional() {
		winner := chainVote
		side := bucketFor(chainVote.result.Kind)
		evidence := append([]string{"Conflicting CEX/DEX signals resolved by blockchain evidence"},
			winner.result.Evidence...)
		return models.Classification{
			Kind:       side,
			Confidence: clamp(winner.result.Confidence),
			Evidence:   evidence,
			Tags:       winner.result.Tags,
		}, true
	}

	return models.Classification{
		Kind:       models.KindTransfer,
		Confidence: 0.50,
		Evidence:   []string{"Conflicting CEX/DEX signals without blockchain evidence"},
		Tags:       []string{"signal_conflict"},
	}, true
}

// applyBehavior adds the P4 boosts onto a directional leading signal
func (e *Engine) applyBehavior(t *models.EnrichedTransfer, c *models.Classification) {
	if !c.Kind.IsDirectional() && c.Kind != models.KindTransfer {
		return
	}

	boost := e.behavior.Analyze(t, whaleSideAddress(t, c.Kind))
	if boost.Boost == 0 {
		return
	}

	c.Confidence = clamp(c.Confidence + boost.Boost)
	c.Evidence = append(c.Evidence, boost.Evidence...)
}

// whaleSideAddress picks the wallet whose history matters for the boost
func whaleSideAddress(t *models.EnrichedTransfer, kind models.ClassificationKind) string {
	switch {
	case kind.IsBuySide():
		return t.ToAddr
	case kind.IsSellSide():
		return t.FromAddr
	default:
		if t.FromLabel.IsPlainWallet() {
			return t.FromAddr
		}
		return t.ToAddr
	}
}

// mapThresholds converts a directional confidence into the output kind:
// below medium it is only a TRANSFER, the moderate band gets MODERATE_*,
// the high band keeps the strong kind. Non-directional kinds pass through.
func (e *Engine) mapThresholds(c *models.Classification) {
	if !c.Kind.IsDirectional() {
		return
	}

	buySide := c.Kind.IsBuySide()
	switch {
	case c.Confidence < e.cfg.MediumConfidence:
		c.Kind = models.KindTransfer
	case c.Confidence < e.cfg.HighConfidence:
		if buySide {
			c.Kind = models.KindModerateBuy
		} else {
			c.Kind = models.KindModerateSell
		}
	default:
		if buySide {
			c.Kind = models.KindBuy
		} else {
			c.Kind = models.KindSell
		}
	}
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// applyAlertPolicy suppresses alerts for suspect tokens without touching
// the classification itself
func (e *Engine) applyAlertPolicy(t *models.EnrichedTransfer, c *models.Classification) {
	c.ShouldAlert = c.Kind.IsDirectional() && c.Confidence >= e.cfg.MediumConfidence

	if t.HasTag("scam_token") || c.HasTag("scam_token") || t.HasTag("low_liquidity") {
		c.ShouldAlert = false
	}
}
