package labels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/models"
)

func labelsCfg() *config.LabelsConfig {
	return &config.LabelsConfig{
		TTL:           config.Seconds(time.Hour),
		NegativeTTL:   time.Minute,
		LookupTimeout: time.Second,
		CacheSize:     1000,
		RemoteRPS:     100,
	}
}

type memoryStore struct {
	labels  map[string]*models.AddressLabel
	err     error
	upserts int
}

func (m *memoryStore) Get(_ context.Context, address string, chain models.Chain) (*models.AddressLabel, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.labels[string(chain)+":"+address], nil
}

func (m *memoryStore) Upsert(_ context.Context, label *models.AddressLabel) error {
	m.upserts++
	if m.labels == nil {
		m.labels = make(map[string]*models.AddressLabel)
	}
	m.labels[string(label.Chain)+":"+label.Address] = label
	return nil
}

type fakeRemote struct {
	label *models.AddressLabel
	err   error
	calls int
}

func (f *fakeRemote) FetchLabel(_ context.Context, _ string, _ models.Chain) (*models.AddressLabel, error) {
	f.calls++
	return f.label, f.err
}

func TestProvider_BuiltinRegistry(t *testing.T) {
	p := NewProvider(labelsCfg(), nil, nil)

	// Binance 14 hot wallet ships in the built-in registry
	label := p.Lookup(context.Background(), "0x28c6c06298d514db089934071355e5743bf21d60", models.ChainEthereum)
	if label.Kind != models.LabelCEX {
		t.Fatalf("Expected CEX, got %s", label.Kind)
	}
	if label.EntityName != "binance" {
		t.Errorf("Expected entity binance, got %s", label.EntityName)
	}
}

func TestProvider_NeverReturnsNil(t *testing.T) {
	p := NewProvider(labelsCfg(), &memoryStore{err: errors.New("db down")}, nil)

	label := p.Lookup(context.Background(), "0xdeadbeef", models.ChainEthereum)
	if label == nil {
		t.Fatal("Lookup must never return nil")
	}
	if label.Kind != models.LabelUnknown {
		t.Errorf("Store failure must degrade to UNKNOWN, got %s", label.Kind)
	}
}

func TestProvider_StorePrecedence(t *testing.T) {
	store := &memoryStore{labels: map[string]*models.AddressLabel{
		"ethereum:0xstored": {
			Address:    "0xstored",
			Chain:      models.ChainEthereum,
			Kind:       models.LabelDEX,
			EntityName: "sushiswap",
			Confidence: 0.9,
		},
	}}
	p := NewProvider(labelsCfg(), store, nil)

	label := p.Lookup(context.Background(), "0xstored", models.ChainEthereum)
	if label.Kind != models.LabelDEX || label.EntityName != "sushiswap" {
		t.Errorf("Expected stored label, got %+v", label)
	}
}

func TestProvider_RemoteFallbackAndPersistence(t *testing.T) {
	store := &memoryStore{}
	remote := &fakeRemote{label: &models.AddressLabel{
		Address:    "0xcontract",
		Chain:      models.ChainEthereum,
		Kind:       models.LabelDEX,
		EntityName: "uniswap",
		Confidence: 0.95,
	}}
	p := NewProvider(labelsCfg(), store, remote)

	label := p.Lookup(context.Background(), "0xcontract", models.ChainEthereum)
	if label.Kind != models.LabelDEX {
		t.Fatalf("Expected remote label, got %s", label.Kind)
	}
	if remote.calls != 1 {
		t.Errorf("Expected one remote call, got %d", remote.calls)
	}
	if store.upserts != 1 {
		t.Errorf("Remote hit must be persisted, got %d upserts", store.upserts)
	}

	// Second lookup is served from the process cache
	p.Lookup(context.Background(), "0xcontract", models.ChainEthereum)
	if remote.calls != 1 {
		t.Errorf("Cached lookup must not call remote again, got %d", remote.calls)
	}
}

func TestProvider_NegativeCache(t *testing.T) {
	remote := &fakeRemote{err: errors.New("rate limited upstream")}
	p := NewProvider(labelsCfg(), nil, remote)
	ctx := context.Background()

	first := p.Lookup(ctx, "0xunlabeled", models.ChainEthereum)
	if first.Kind != models.LabelUnknown {
		t.Fatalf("Expected UNKNOWN, got %s", first.Kind)
	}
	if remote.calls != 1 {
		t.Fatalf("Expected one remote call, got %d", remote.calls)
	}

	// The UNKNOWN result is positively cached, so drop it to prove the
	// negative cache alone stops the second remote call
	p.cache.Purge()
	p.Lookup(ctx, "0xunlabeled", models.ChainEthereum)
	if remote.calls != 1 {
		t.Errorf("Negative cache must swallow repeat failures, got %d calls", remote.calls)
	}
}

func TestPickBetter(t *testing.T) {
	older := &models.AddressLabel{Confidence: 0.8, UpdatedAt: time.Now().Add(-time.Hour)}
	newer := &models.AddressLabel{Confidence: 0.8, UpdatedAt: time.Now()}
	strong := &models.AddressLabel{Confidence: 0.95, UpdatedAt: time.Now().Add(-24 * time.Hour)}

	if pickBetter(older, strong) != strong {
		t.Error("Higher confidence must win")
	}
	if pickBetter(older, newer) != newer {
		t.Error("Freshness must break confidence ties")
	}
	if pickBetter(nil, older) != older || pickBetter(older, nil) != older {
		t.Error("Nil candidates must lose")
	}
}
