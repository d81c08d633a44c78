package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// whaleAlertResponse builds a poll payload with timestamps inside the
// one-hour lookback floor so the watermark can advance
func whaleAlertResponse(older, newer int64) string {
	return fmt.Sprintf(`{
	"result": "success",
	"transactions": [
		{
			"blockchain": "ethereum",
			"symbol": "usdt",
			"hash": "0xABCDEF1234",
			"from": {"address": "0xFromAddr", "owner": "binance"},
			"to": {"address": "0xToAddr", "owner": ""},
			"amount": 2500000,
			"amount_usd": 2500000,
			"timestamp": %d
		},
		{
			"blockchain": "ripple",
			"symbol": "XRP",
			"hash": "RIPPLEHASH",
			"from": {"address": "rFromAddr", "owner": ""},
			"to": {"address": "rToAddr", "owner": ""},
			"amount": 10000000,
			"amount_usd": 5000000,
			"timestamp": %d
		},
		{
			"blockchain": "unsupported-chain",
			"symbol": "XYZ",
			"hash": "IGNORED",
			"from": {"address": "a"}, "to": {"address": "b"},
			"amount": 1, "amount_usd": 1, "timestamp": %d
		}
	]
}`, older, newer, newer)
}

func collectEmit(out *[]*models.RawTransfer) Emit {
	return func(_ context.Context, t *models.RawTransfer) error {
		*out = append(*out, t)
		return nil
	}
}

func TestWhaleAlertSource_Poll(t *testing.T) {
	older := time.Now().Add(-10 * time.Minute).Unix()
	newer := time.Now().Add(-5 * time.Minute).Unix()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(whaleAlertResponse(older, newer)))
	}))
	defer server.Close()

	marks, err := NewWatermarkStore(filepath.Join(t.TempDir(), "marks.json"))
	if err != nil {
		t.Fatal(err)
	}

	src := NewWhaleAlertSource("test-key", 500_000, time.Minute, marks)
	src.baseURL = server.URL

	var emitted []*models.RawTransfer
	if err := src.poll(context.Background(), collectEmit(&emitted)); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	if len(emitted) != 2 {
		t.Fatalf("Expected 2 transfers (unsupported chain dropped), got %d", len(emitted))
	}

	eth := emitted[0]
	if eth.Chain != models.ChainEthereum {
		t.Errorf("Expected ethereum, got %s", eth.Chain)
	}
	// Normalize lowercases EVM identifiers and uppercases the symbol
	if eth.TxHash != "0xabcdef1234" || eth.FromAddr != "0xfromaddr" {
		t.Errorf("Identifiers not normalized: %s / %s", eth.TxHash, eth.FromAddr)
	}
	if eth.Symbol != "USDT" {
		t.Errorf("Expected USDT, got %s", eth.Symbol)
	}
	// The reported USD valuation rides along for enrichment
	if !eth.NativeValue.Equal(models.NewDecimal(2_500_000)) {
		t.Errorf("Expected $2.5M native value, got %s", eth.NativeValue)
	}
	if eth.SourceID != "whale-alert" {
		t.Errorf("Expected source whale-alert, got %s", eth.SourceID)
	}

	// XRP addresses are case-sensitive and must survive untouched
	xrp := emitted[1]
	if xrp.Chain != models.ChainXRP || xrp.FromAddr != "rFromAddr" {
		t.Errorf("XRP identity mangled: %s / %s", xrp.Chain, xrp.FromAddr)
	}

	// The watermark advances to the newest emitted transaction
	mark, ok := marks.Get("whale-alert")
	if !ok {
		t.Fatal("Watermark not persisted")
	}
	if !mark.LastTime.Equal(time.Unix(newer, 0).UTC()) {
		t.Errorf("Unexpected watermark: %v", mark.LastTime)
	}
}

func TestWhaleAlertSource_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"result":"error","message":"invalid api key"}`))
	}))
	defer server.Close()

	marks, err := NewWatermarkStore(filepath.Join(t.TempDir(), "marks.json"))
	if err != nil {
		t.Fatal(err)
	}

	src := NewWhaleAlertSource("bad-key", 500_000, time.Minute, marks)
	src.baseURL = server.URL

	err = src.poll(context.Background(), collectEmit(&[]*models.RawTransfer{}))
	if err == nil {
		t.Fatal("Auth rejection must surface as an error")
	}
	if !strings.Contains(err.Error(), "auth rejected") {
		t.Errorf("Expected an auth error, got: %v", err)
	}
}
