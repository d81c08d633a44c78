package dedup

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Duplicate patterns recognized by the match predicate
const (
	PatternMirror           = "mirror"
	PatternShadow           = "shadow"
	PatternCounterpartyMism = "counterparty_mismatch"
	PatternCEXFlagMism      = "cex_flag_mismatch"
)

// Decision is the suppressor's verdict on an incoming record
type Decision int

const (
	// DecisionPass admits the record unchanged
	DecisionPass Decision = iota
	// DecisionSuppress drops the incoming record
	DecisionSuppress
	// DecisionReplace upgrades the stored duplicate with the incoming data
	DecisionReplace
)

// Result carries the verdict plus the merged record and audit event when a
// duplicate was found
type Result struct {
	Decision Decision
	// Merged is the record to upsert instead of the incoming one; set only
	// for DecisionReplace
	Merged *models.WhaleRecord
	// Event documents the suppression; set for Suppress and Replace
	Event *models.SuppressionEvent
}

// Lookback queries recent stored records for a dedup key
type Lookback interface {
	RecentForKey(ctx context.Context, whaleAddress, tokenSymbol string, around time.Time, window time.Duration, limit int) ([]*models.WhaleRecord, error)
}

// Suppressor detects near-duplicate whale records that share no tx hash:
// the same economic event reported by multiple sources with diverging
// metadata. Layer 1 is an in-memory ring per (whale, token) key, layer 2 a
// bounded storage lookback.
type Suppressor struct {
	cfg      *config.DedupConfig
	lookback Lookback

	mu    sync.Mutex
	rings map[string]*ring

	onSuppress func(*models.SuppressionEvent)
}

// NewSuppressor creates the suppressor; lookback may be nil (layer 1 only)
func NewSuppressor(cfg *config.DedupConfig, lookback Lookback, onSuppress func(*models.SuppressionEvent)) *Suppressor {
	return &Suppressor{
		cfg:        cfg,
		lookback:   lookback,
		rings:      make(map[string]*ring),
		onSuppress: onSuppress,
	}
}

// Check runs both layers against the incoming record. The safeguards
// cover both sides of a candidate pair: an exempt record neither gets
// suppressed nor suppresses anything. The record is NOT remembered yet;
// call Remember once the caller commits to storing it.
func (s *Suppressor) Check(ctx context.Context, rec *models.WhaleRecord) Result {
	if s.exempt(rec) {
		return Result{Decision: DecisionPass}
	}

	// Layer 1: memory ring
	if existing, pattern := s.scanRing(rec); existing != nil {
		return s.resolve(rec, existing, pattern, "memory")
	}

	// Layer 2: recent storage
	if s.lookback != nil {
		recent, err := s.lookback.RecentForKey(ctx, rec.WhaleAddress, rec.TokenSymbol,
			rec.BlockTime, s.cfg.TimeWindow, s.cfg.LookbackRows)
		if err != nil {
			// Lookback failure must not block the pipeline
			logger.Warn("dedup lookback failed",
				zap.String("whale", rec.WhaleAddress),
				zap.Error(err),
			)
			return Result{Decision: DecisionPass}
		}
		for _, ex := range recent {
			if ex.TxHash == rec.TxHash || s.exempt(ex) {
				continue
			}
			if pattern, ok := s.matches(rec, ex); ok {
				return s.resolve(rec, ex, pattern, "storage")
			}
		}
	}

	return Result{Decision: DecisionPass}
}

// Remember records an admitted record in the memory ring
func (s *Suppressor) Remember(rec *models.WhaleRecord) {
	key := rec.DedupKey()
	s.mu.Lock()
	r, ok := s.rings[key]
	if !ok {
		r = newRing(s.cfg.MemoryRingSize)
		s.rings[key] = r
	}
	s.mu.Unlock()
	r.add(rec)
}

// RingKeys reports how many dedup keys are tracked in memory
func (s *Suppressor) RingKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rings)
}

// Match exposes the duplicate predicate for the offline cleaner
func (s *Suppressor) Match(a, b *models.WhaleRecord) (string, bool) {
	return s.matches(a, b)
}

// Exempt reports whether the safeguards protect the record from
// suppression
func (s *Suppressor) Exempt(rec *models.WhaleRecord) bool {
	return s.exempt(rec)
}

// exempt applies the never-suppress safeguards
func (s *Suppressor) exempt(rec *models.WhaleRecord) bool {
	if models.ToFloat64(rec.USDValue) > s.cfg.SafeguardUSD {
		return true
	}
	return rec.Classification.IsProtocol()
}

func (s *Suppressor) scanRing(rec *models.WhaleRecord) (*models.WhaleRecord, string) {
	s.mu.Lock()
	r, ok := s.rings[rec.DedupKey()]
	s.mu.Unlock()
	if !ok {
		return nil, ""
	}

	var (
		found   *models.WhaleRecord
		pattern string
	)
	r.scan(func(ex *models.WhaleRecord) bool {
		if ex.TxHash == rec.TxHash || s.exempt(ex) {
			return true
		}
		if p, ok := s.matches(rec, ex); ok {
			found, pattern = ex, p
			return false
		}
		return true
	})
	return found, pattern
}

// matches implements the near-duplicate predicate: time window, USD
// tolerance, and one of the known duplication patterns
func (s *Suppressor) matches(a, b *models.WhaleRecord) (string, bool) {
	dt := a.BlockTime.Sub(b.BlockTime)
	if dt < 0 {
		dt = -dt
	}
	if dt > s.cfg.TimeWindow {
		return "", false
	}

	if !s.usdClose(a, b) {
		return "", false
	}

	switch {
	case bothDirectionalOpposite(a.Classification, b.Classification):
		return PatternMirror, true
	case shadowPair(a.Classification, b.Classification):
		return PatternShadow, true
	case sameSide(a.Classification, b.Classification) && a.CounterpartyKind != b.CounterpartyKind:
		return PatternCounterpartyMism, true
	case sameSide(a.Classification, b.Classification) && a.IsCEXTransaction != b.IsCEXTransaction:
		return PatternCEXFlagMism, true
	}
	return "", false
}

func (s *Suppressor) usdClose(a, b *models.WhaleRecord) bool {
	av, bv := models.ToFloat64(a.USDValue), models.ToFloat64(b.USDValue)
	diff := math.Abs(av - bv)
	if diff <= s.cfg.USDThreshold {
		return true
	}
	max := math.Max(av, bv)
	return max > 0 && diff/max <= s.cfg.PercentageThreshold
}

func bothDirectionalOpposite(a, b models.ClassificationKind) bool {
	return (a.IsBuySide() && b.IsSellSide()) || (a.IsSellSide() && b.IsBuySide())
}

// sameSide folds MODERATE_* into its strong direction before comparing,
// so BUY and MODERATE_BUY count as the same verdict for the mismatch
// patterns
func sameSide(a, b models.ClassificationKind) bool {
	if a.IsBuySide() || a.IsSellSide() {
		return (a.IsBuySide() && b.IsBuySide()) || (a.IsSellSide() && b.IsSellSide())
	}
	return a == b
}

func shadowPair(a, b models.ClassificationKind) bool {
	return (a == models.KindTransfer && b.IsDirectional()) ||
		(b == models.KindTransfer && a.IsDirectional())
}

// resolve applies the merge policy: higher confidence wins, earliest
// block time is preserved, and every decision emits an audit event
func (s *Suppressor) resolve(incoming, existing *models.WhaleRecord, pattern, layer string) Result {
	event := &models.SuppressionEvent{
		Timestamp:    time.Now().UTC(),
		IncomingHash: incoming.TxHash,
		ExistingHash: existing.TxHash,
		Pattern:      pattern,
		TimeDiff:     math.Abs(incoming.BlockTime.Sub(existing.BlockTime).Seconds()),
		USDDiff:      math.Abs(models.ToFloat64(incoming.USDValue) - models.ToFloat64(existing.USDValue)),
	}

	if incoming.Confidence > existing.Confidence {
		merged := *incoming
		merged.TxHash = existing.TxHash
		merged.Chain = existing.Chain
		if existing.BlockTime.Before(incoming.BlockTime) {
			merged.BlockTime = existing.BlockTime
		}
		event.Reason = "replaced_lower_confidence"
		s.emit(event, incoming, layer)
		return Result{Decision: DecisionReplace, Merged: &merged, Event: event}
	}

	event.Reason = "suppressed_duplicate"
	s.emit(event, incoming, layer)
	return Result{Decision: DecisionSuppress, Event: event}
}

func (s *Suppressor) emit(event *models.SuppressionEvent, incoming *models.WhaleRecord, layer string) {
	logger.Info("🔁 Near-duplicate detected",
		zap.String("layer", layer),
		zap.String("pattern", event.Pattern),
		zap.String("reason", event.Reason),
		zap.String("incoming_hash", event.IncomingHash),
		zap.String("existing_hash", event.ExistingHash),
		zap.Float64("time_diff_s", event.TimeDiff),
		zap.Float64("usd_diff", event.USDDiff),
		zap.String("whale", incoming.WhaleAddress),
		zap.String("token", incoming.TokenSymbol),
	)
	if s.onSuppress != nil {
		s.onSuppress(event)
	}
}

// ring is a fixed-size record buffer, newest first
type ring struct {
	mu   sync.Mutex
	buf  []*models.WhaleRecord
	next int
	full bool
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 50
	}
	return &ring{buf: make([]*models.WhaleRecord, size)}
}

func (r *ring) add(rec *models.WhaleRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// scan visits entries newest to oldest until fn returns false
func (r *ring) scan(fn func(*models.WhaleRecord) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		rec := r.buf[idx]
		if rec == nil {
			continue
		}
		if !fn(rec) {
			return
		}
	}
}
