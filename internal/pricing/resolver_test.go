package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selivandex/whale-monitor/pkg/models"
)

type fakeFeed struct {
	prices map[string]float64
	err    error
	calls  int
}

func (f *fakeFeed) GetPrice(_ context.Context, symbol string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[symbol], nil
}

func TestResolver_Stablecoins(t *testing.T) {
	r := NewResolver(nil, 2*time.Minute)

	for _, symbol := range []string{"USDT", "USDC", "DAI"} {
		price, ok := r.Price(context.Background(), symbol, time.Now())
		if !ok {
			t.Fatalf("%s must always price", symbol)
		}
		if !price.Equal(decimal.NewFromInt(1)) {
			t.Errorf("%s expected $1, got %s", symbol, price)
		}
	}

	if IsStablecoin("WETH") {
		t.Error("WETH is not a stablecoin")
	}
}

func TestResolver_ObservedPriceWithinStaleness(t *testing.T) {
	r := NewResolver(nil, 2*time.Minute)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.Observe("WETH", at, models.NewDecimal(3000))

	price, ok := r.Price(context.Background(), "WETH", at.Add(time.Minute))
	if !ok {
		t.Fatal("Fresh observation must price")
	}
	if !price.Equal(models.NewDecimal(3000)) {
		t.Errorf("Expected 3000, got %s", price)
	}

	// Five minutes later the observation is stale
	if _, ok := r.Price(context.Background(), "WETH", at.Add(5*time.Minute)); ok {
		t.Error("Stale observation must not price")
	}
}

func TestResolver_ObserveKeepsNewest(t *testing.T) {
	r := NewResolver(nil, 2*time.Minute)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.Observe("WETH", at, models.NewDecimal(3000))
	r.Observe("WETH", at.Add(-time.Hour), models.NewDecimal(2500))

	price, _ := r.Price(context.Background(), "WETH", at)
	if !price.Equal(models.NewDecimal(3000)) {
		t.Errorf("Older observation must not overwrite the newer one, got %s", price)
	}
}

func TestResolver_FeedFallback(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{"WETH": 3150.5}}
	r := NewResolver(feed, 2*time.Minute)

	price, ok := r.Price(context.Background(), "WETH", time.Now().UTC())
	if !ok {
		t.Fatal("Feed price must apply to a current event")
	}
	if !price.Equal(decimal.NewFromFloat(3150.5)) {
		t.Errorf("Expected 3150.5, got %s", price)
	}
	if feed.calls != 1 {
		t.Errorf("Expected one feed call, got %d", feed.calls)
	}

	// The feed price is cached for the next event
	r.Price(context.Background(), "WETH", time.Now().UTC())
	if feed.calls != 1 {
		t.Errorf("Second lookup must reuse the cached price, got %d calls", feed.calls)
	}
}

func TestResolver_FeedFailureDegrades(t *testing.T) {
	feed := &fakeFeed{err: errors.New("upstream 429")}
	r := NewResolver(feed, 2*time.Minute)

	if _, ok := r.Price(context.Background(), "WETH", time.Now()); ok {
		t.Error("Feed failure must yield ok=false, not an error")
	}
}

func TestResolver_HistoricalEventRejectsCurrentFeedPrice(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{"WETH": 3150.5}}
	r := NewResolver(feed, 2*time.Minute)

	// An event from an hour ago cannot use a spot price fetched now
	if _, ok := r.Price(context.Background(), "WETH", time.Now().Add(-time.Hour)); ok {
		t.Error("Spot price must not apply outside the staleness budget")
	}
}
