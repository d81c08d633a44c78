package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/models"
)

func dedupCfg() *config.DedupConfig {
	return &config.DedupConfig{
		TimeWindow:          10 * time.Second,
		USDThreshold:        5.0,
		PercentageThreshold: 0.0015,
		SafeguardUSD:        5_000_000,
		MemoryRingSize:      50,
		LookbackRows:        200,
	}
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(hash string, kind models.ClassificationKind, usd float64, at time.Time, confidence float64) *models.WhaleRecord {
	return &models.WhaleRecord{
		Chain:            models.ChainEthereum,
		TxHash:           hash,
		BlockTime:        at,
		WhaleAddress:     "0xwhale",
		TokenSymbol:      "WETH",
		Classification:   kind,
		USDValue:         models.NewDecimal(usd),
		Confidence:       confidence,
		CounterpartyKind: models.LabelCEX,
		IsCEXTransaction: true,
	}
}

func TestSuppressor_MirrorPattern(t *testing.T) {
	s := NewSuppressor(dedupCfg(), nil, nil)
	ctx := context.Background()

	existing := record("0xaaa", models.KindBuy, 1_000_000, baseTime, 0.90)
	s.Remember(existing)

	incoming := record("0xbbb", models.KindSell, 1_000_001, baseTime.Add(3*time.Second), 0.70)
	res := s.Check(ctx, incoming)

	require.Equal(t, DecisionSuppress, res.Decision)
	require.NotNil(t, res.Event)
	require.Equal(t, PatternMirror, res.Event.Pattern)
	require.Equal(t, "suppressed_duplicate", res.Event.Reason)
	require.Equal(t, "0xbbb", res.Event.IncomingHash)
	require.Equal(t, "0xaaa", res.Event.ExistingHash)
}

func TestSuppressor_ReplaceKeepsIdentityAndEarliestTime(t *testing.T) {
	s := NewSuppressor(dedupCfg(), nil, nil)
	ctx := context.Background()

	existing := record("0xaaa", models.KindBuy, 1_000_000, baseTime, 0.60)
	s.Remember(existing)

	incoming := record("0xbbb", models.KindSell, 1_000_000, baseTime.Add(4*time.Second), 0.92)
	res := s.Check(ctx, incoming)

	require.Equal(t, DecisionReplace, res.Decision)
	require.NotNil(t, res.Merged)
	// Higher-confidence data wins but the stored row keeps its identity
	require.Equal(t, "0xaaa", res.Merged.TxHash)
	require.Equal(t, models.KindSell, res.Merged.Classification)
	require.Equal(t, 0.92, res.Merged.Confidence)
	require.True(t, res.Merged.BlockTime.Equal(baseTime), "merged record must keep the earliest block time")
	require.Equal(t, "replaced_lower_confidence", res.Event.Reason)
}

func TestSuppressor_Safeguards(t *testing.T) {
	s := NewSuppressor(dedupCfg(), nil, nil)
	ctx := context.Background()

	t.Run("transfers above $5M are never suppressed", func(t *testing.T) {
		existing := record("0xaaa", models.KindBuy, 6_000_000, baseTime, 0.90)
		s.Remember(existing)

		incoming := record("0xbbb", models.KindSell, 6_000_000, baseTime.Add(2*time.Second), 0.50)
		res := s.Check(ctx, incoming)
		require.Equal(t, DecisionPass, res.Decision)
	})

	t.Run("protocol interactions are exempt", func(t *testing.T) {
		existing := record("0xccc", models.KindBuy, 500_000, baseTime, 0.90)
		s.Remember(existing)

		incoming := record("0xddd", models.KindStaking, 500_000, baseTime.Add(2*time.Second), 0.50)
		res := s.Check(ctx, incoming)
		require.Equal(t, DecisionPass, res.Decision)
	})

	t.Run("stored record above $5M shields the pair", func(t *testing.T) {
		fresh := NewSuppressor(dedupCfg(), nil, nil)
		fresh.Remember(record("0xeee", models.KindBuy, 5_000_001, baseTime, 0.90))

		// $4,996,000 sits within the 0.15% tolerance of $5,000,001, but
		// the stored side clears the safeguard so the pair stays distinct
		incoming := record("0xfff", models.KindSell, 4_996_000, baseTime.Add(2*time.Second), 0.50)
		res := fresh.Check(ctx, incoming)
		require.Equal(t, DecisionPass, res.Decision)
	})
}

func TestSuppressor_WindowAndTolerance(t *testing.T) {
	ctx := context.Background()

	t.Run("outside the time window", func(t *testing.T) {
		s := NewSuppressor(dedupCfg(), nil, nil)
		s.Remember(record("0xaaa", models.KindBuy, 1_000_000, baseTime, 0.90))

		incoming := record("0xbbb", models.KindSell, 1_000_000, baseTime.Add(15*time.Second), 0.50)
		require.Equal(t, DecisionPass, s.Check(ctx, incoming).Decision)
	})

	t.Run("relative tolerance on large values", func(t *testing.T) {
		s := NewSuppressor(dedupCfg(), nil, nil)
		s.Remember(record("0xaaa", models.KindBuy, 3_000_000, baseTime, 0.90))

		// $4k off $3M is 0.13%, within the 0.15% tolerance
		near := record("0xbbb", models.KindSell, 2_996_000, baseTime.Add(2*time.Second), 0.50)
		require.Equal(t, DecisionSuppress, s.Check(ctx, near).Decision)

		// $10k off $3M is 0.33%, a different event
		far := record("0xccc", models.KindSell, 2_990_000, baseTime.Add(2*time.Second), 0.50)
		require.Equal(t, DecisionPass, s.Check(ctx, far).Decision)
	})

	t.Run("same hash is never its own duplicate", func(t *testing.T) {
		s := NewSuppressor(dedupCfg(), nil, nil)
		s.Remember(record("0xaaa", models.KindBuy, 1_000_000, baseTime, 0.90))

		again := record("0xaaa", models.KindSell, 1_000_000, baseTime.Add(1*time.Second), 0.50)
		require.Equal(t, DecisionPass, s.Check(ctx, again).Decision)
	})
}

func TestSuppressor_Patterns(t *testing.T) {
	s := NewSuppressor(dedupCfg(), nil, nil)

	at := baseTime
	later := baseTime.Add(3 * time.Second)

	t.Run("shadow", func(t *testing.T) {
		a := record("0x1", models.KindTransfer, 800_000, at, 0.5)
		b := record("0x2", models.KindBuy, 800_000, later, 0.9)
		pattern, ok := s.Match(a, b)
		require.True(t, ok)
		require.Equal(t, PatternShadow, pattern)
	})

	t.Run("counterparty mismatch", func(t *testing.T) {
		a := record("0x1", models.KindBuy, 800_000, at, 0.9)
		b := record("0x2", models.KindBuy, 800_000, later, 0.8)
		b.CounterpartyKind = models.LabelUnknown
		pattern, ok := s.Match(a, b)
		require.True(t, ok)
		require.Equal(t, PatternCounterpartyMism, pattern)
	})

	t.Run("cex flag mismatch", func(t *testing.T) {
		a := record("0x1", models.KindBuy, 800_000, at, 0.9)
		b := record("0x2", models.KindBuy, 800_000, later, 0.8)
		b.IsCEXTransaction = false
		pattern, ok := s.Match(a, b)
		require.True(t, ok)
		require.Equal(t, PatternCEXFlagMism, pattern)
	})

	t.Run("moderate and strong verdicts share a direction", func(t *testing.T) {
		a := record("0x1", models.KindBuy, 800_000, at, 0.9)
		b := record("0x2", models.KindModerateBuy, 800_000, later, 0.8)
		b.CounterpartyKind = models.LabelUnknown
		pattern, ok := s.Match(a, b)
		require.True(t, ok)
		require.Equal(t, PatternCounterpartyMism, pattern)

		c := record("0x3", models.KindModerateSell, 800_000, at, 0.9)
		d := record("0x4", models.KindSell, 800_000, later, 0.8)
		d.IsCEXTransaction = false
		pattern, ok = s.Match(c, d)
		require.True(t, ok)
		require.Equal(t, PatternCEXFlagMism, pattern)
	})

	t.Run("identical verdicts with identical metadata are distinct events", func(t *testing.T) {
		a := record("0x1", models.KindBuy, 800_000, at, 0.9)
		b := record("0x2", models.KindBuy, 800_000, later, 0.8)
		_, ok := s.Match(a, b)
		require.False(t, ok)
	})
}

type fakeLookback struct {
	records []*models.WhaleRecord
	err     error
	calls   int
}

func (f *fakeLookback) RecentForKey(_ context.Context, _, _ string, _ time.Time, _ time.Duration, _ int) ([]*models.WhaleRecord, error) {
	f.calls++
	return f.records, f.err
}

func TestSuppressor_StorageLookback(t *testing.T) {
	ctx := context.Background()

	t.Run("storage hit suppresses", func(t *testing.T) {
		lb := &fakeLookback{
			records: []*models.WhaleRecord{
				record("0xstored", models.KindBuy, 1_000_000, baseTime, 0.90),
			},
		}
		s := NewSuppressor(dedupCfg(), lb, nil)

		incoming := record("0xnew", models.KindSell, 1_000_000, baseTime.Add(2*time.Second), 0.50)
		res := s.Check(ctx, incoming)
		require.Equal(t, DecisionSuppress, res.Decision)
		require.Equal(t, 1, lb.calls)
	})

	t.Run("lookback failure never blocks the pipeline", func(t *testing.T) {
		lb := &fakeLookback{err: errors.New("connection refused")}
		s := NewSuppressor(dedupCfg(), lb, nil)

		incoming := record("0xnew", models.KindSell, 1_000_000, baseTime, 0.50)
		require.Equal(t, DecisionPass, s.Check(ctx, incoming).Decision)
	})

	t.Run("exempt stored record never suppresses", func(t *testing.T) {
		lb := &fakeLookback{
			records: []*models.WhaleRecord{
				record("0xbig", models.KindBuy, 5_000_001, baseTime, 0.90),
			},
		}
		s := NewSuppressor(dedupCfg(), lb, nil)

		incoming := record("0xnew", models.KindSell, 4_996_000, baseTime.Add(2*time.Second), 0.50)
		require.Equal(t, DecisionPass, s.Check(ctx, incoming).Decision)
	})

	t.Run("memory hit skips storage", func(t *testing.T) {
		lb := &fakeLookback{}
		s := NewSuppressor(dedupCfg(), lb, nil)
		s.Remember(record("0xmem", models.KindBuy, 1_000_000, baseTime, 0.90))

		incoming := record("0xnew", models.KindSell, 1_000_000, baseTime.Add(1*time.Second), 0.50)
		require.Equal(t, DecisionSuppress, s.Check(ctx, incoming).Decision)
		require.Equal(t, 0, lb.calls)
	})
}

func TestSuppressor_EmitsAuditEvents(t *testing.T) {
	var events []*models.SuppressionEvent
	s := NewSuppressor(dedupCfg(), nil, func(ev *models.SuppressionEvent) {
		events = append(events, ev)
	})

	s.Remember(record("0xaaa", models.KindBuy, 1_000_000, baseTime, 0.90))
	s.Check(context.Background(), record("0xbbb", models.KindSell, 1_000_000, baseTime.Add(1*time.Second), 0.50))

	require.Len(t, events, 1)
	require.Equal(t, PatternMirror, events[0].Pattern)
	require.InDelta(t, 1.0, events[0].TimeDiff, 0.001)
}

func TestSuppressor_RingEviction(t *testing.T) {
	cfg := dedupCfg()
	cfg.MemoryRingSize = 3
	s := NewSuppressor(cfg, nil, nil)

	// Four distinct events push the first one out of the ring
	for i, usd := range []float64{100_000, 200_000, 300_000, 400_000} {
		s.Remember(record(
			hashFor(i), models.KindBuy, usd, baseTime.Add(time.Duration(i)*time.Second), 0.90,
		))
	}

	evicted := record("0xnew", models.KindSell, 100_000, baseTime.Add(2*time.Second), 0.50)
	require.Equal(t, DecisionPass, s.Check(context.Background(), evicted).Decision)
	require.Equal(t, 1, s.RingKeys())
}

func hashFor(i int) string {
	return string(rune('a'+i)) + "0xhash"
}
