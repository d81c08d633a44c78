package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/selivandex/whale-monitor/pkg/models"
)

var observeTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRegistry_ProvenTransition(t *testing.T) {
	r := New()

	// Four $70k trades: volume qualifies but trade count does not
	for i := 0; i < 4; i++ {
		r.Observe("0xwhale", models.KindBuy, models.NewDecimal(70_000), "WETH",
			observeTime.Add(time.Duration(i)*time.Minute))
	}

	stats, ok := r.Lookup("0xwhale")
	require.True(t, ok)
	require.False(t, stats.IsProven)
	require.Equal(t, 4, stats.TradeCount)

	// The fifth trade crosses both thresholds
	r.Observe("0xwhale", models.KindSell, models.NewDecimal(60_000), "WETH", observeTime.Add(5*time.Minute))

	stats, ok = r.Lookup("0xwhale")
	require.True(t, ok)
	require.True(t, stats.IsProven)
	require.Equal(t, 4, stats.BuyCount)
	require.Equal(t, 1, stats.SellCount)
	require.Equal(t, 1, r.ProvenCount())
}

func TestRegistry_SmartMoneyScore(t *testing.T) {
	r := New()

	r.Observe("0xsmall", models.KindBuy, models.NewDecimal(10_000), "WETH", observeTime)
	stats, _ := r.Lookup("0xsmall")
	require.InDelta(t, 0.5, stats.SmartMoneyScore, 0.0001)

	// 25 trades across 12 tokens totalling $2.5M hits every bonus
	tokens := []string{"WETH", "WBTC", "LINK", "UNI", "AAVE", "SOL",
		"ARB", "OP", "PEPE", "DOGE", "MATIC", "AVAX"}
	for i := 0; i < 25; i++ {
		r.Observe("0xbig", models.KindBuy, models.NewDecimal(100_000),
			tokens[i%len(tokens)], observeTime.Add(time.Duration(i)*time.Minute))
	}
	stats, _ = r.Lookup("0xbig")
	require.InDelta(t, 1.0, stats.SmartMoneyScore, 0.0001)
	require.Len(t, stats.Tokens, len(tokens))
}

func TestRegistry_TradeHistoryBounded(t *testing.T) {
	r := New()

	for i := 0; i < tradeHistoryLimit+10; i++ {
		r.Observe("0xwhale", models.KindBuy, models.NewDecimal(1000), "WETH",
			observeTime.Add(time.Duration(i)*time.Second))
	}

	stats, _ := r.Lookup("0xwhale")
	require.Len(t, stats.TradeHistory, tradeHistoryLimit)
	// The oldest entries fell off the front
	require.True(t, stats.TradeHistory[0].Timestamp.After(observeTime))
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := New()
	r.Observe("0xwhale", models.KindBuy, models.NewDecimal(1000), "WETH", observeTime)

	stats, _ := r.Lookup("0xwhale")
	stats.Tokens = append(stats.Tokens, "MUTATED")
	stats.TradeCount = 999

	fresh, _ := r.Lookup("0xwhale")
	require.Equal(t, 1, fresh.TradeCount)
	require.Equal(t, []string{"WETH"}, fresh.Tokens)
}

func TestRegistry_EmptyAddressIgnored(t *testing.T) {
	r := New()
	r.Observe("", models.KindBuy, models.NewDecimal(1000), "WETH", observeTime)
	require.Equal(t, 0, r.Size())
}

func TestRegistry_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	r := New()
	for i := 0; i < 6; i++ {
		r.Observe("0xwhale", models.KindBuy, models.NewDecimal(100_000), "WETH",
			observeTime.Add(time.Duration(i)*time.Minute))
	}
	r.Observe("0xother", models.KindSell, models.NewDecimal(50_000), "WBTC", observeTime)

	require.NoError(t, r.Snapshot(path))

	restored := New()
	require.NoError(t, restored.Rehydrate(path))

	require.Equal(t, 2, restored.Size())
	require.Equal(t, 1, restored.ProvenCount())

	stats, ok := restored.Lookup("0xwhale")
	require.True(t, ok)
	require.Equal(t, 6, stats.TradeCount)
	require.True(t, stats.IsProven)
}

func TestRegistry_RehydrateMissingFileStartsCold(t *testing.T) {
	r := New()
	require.NoError(t, r.Rehydrate(filepath.Join(t.TempDir(), "absent.json")))
	require.Equal(t, 0, r.Size())
}

func TestSnapshotWorker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	r := New()
	r.Observe("0xwhale", models.KindBuy, models.NewDecimal(1000), "WETH", observeTime)

	w := NewSnapshotWorker(r, path)
	require.Equal(t, "registry-snapshot", w.Name())
	require.NoError(t, w.Run(context.Background()))

	restored := New()
	require.NoError(t, restored.Rehydrate(path))
	require.Equal(t, 1, restored.Size())
}
