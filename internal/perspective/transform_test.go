package perspective

import (
	"testing"
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

func label(kind models.LabelKind, entity string) *models.AddressLabel {
	return &models.AddressLabel{Kind: kind, EntityName: entity, Confidence: 0.9}
}

func classified(kind models.ClassificationKind) *models.Classification {
	return &models.Classification{Kind: kind, Confidence: 0.9}
}

func transfer(from, to *models.AddressLabel) *models.EnrichedTransfer {
	return &models.EnrichedTransfer{
		RawTransfer: models.RawTransfer{
			Chain:     models.ChainEthereum,
			TxHash:    "0xhash",
			FromAddr:  "0xaaa",
			ToAddr:    "0xbbb",
			Symbol:    "WETH",
			SourceID:  "test-source",
			BlockTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		USDValue:  models.NewDecimal(750_000),
		FromLabel: from,
		ToLabel:   to,
	}
}

func TestTransform_DropsSkippedAndInternalMoves(t *testing.T) {
	now := time.Now().UTC()

	t.Run("skip verdict", func(t *testing.T) {
		c := classified(models.KindTransfer)
		c.Skip = true
		if _, ok := Transform(transfer(nil, nil), c, now); ok {
			t.Fatal("Skip verdict must be dropped")
		}
	})

	t.Run("both sides exchanges", func(t *testing.T) {
		tr := transfer(label(models.LabelCEX, "binance"), label(models.LabelCEX, "coinbase"))
		if _, ok := Transform(tr, classified(models.KindTransfer), now); ok {
			t.Fatal("CEX-to-CEX move must be dropped")
		}
	})
}

func TestTransform_PickSides(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		from      *models.AddressLabel
		to        *models.AddressLabel
		kind      models.ClassificationKind
		wantWhale string
		wantCEX   bool
	}{
		{"cex withdrawal: receiver is the whale", label(models.LabelCEX, "binance"), nil, models.KindBuy, "0xbbb", true},
		{"cex deposit: sender is the whale", nil, label(models.LabelCEX, "kraken"), models.KindSell, "0xaaa", true},
		{"dex buy: receiver is the whale", label(models.LabelDEX, "uniswap"), nil, models.KindModerateBuy, "0xbbb", false},
		{"dex sell: sender is the whale", nil, label(models.LabelDEX, "uniswap"), models.KindSell, "0xaaa", false},
		{"wallet to wallet: sender perspective", nil, nil, models.KindTransfer, "0xaaa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Transform(transfer(tt.from, tt.to), classified(tt.kind), now)
			if !ok {
				t.Fatal("Record unexpectedly dropped")
			}
			if rec.WhaleAddress != tt.wantWhale {
				t.Errorf("Expected whale %s, got %s", tt.wantWhale, rec.WhaleAddress)
			}
			if rec.IsCEXTransaction != tt.wantCEX {
				t.Errorf("Expected is_cex=%v, got %v", tt.wantCEX, rec.IsCEXTransaction)
			}
			// The whale is always the non-institutional side
			if rec.CounterpartyKind == models.LabelCEX && rec.WhaleAddress == rec.CounterpartyAddress {
				t.Error("Whale and counterparty collapsed onto the same address")
			}
		})
	}
}

func TestTransform_RecordFields(t *testing.T) {
	now := time.Now().UTC()

	tr := transfer(label(models.LabelCEX, "binance"), nil)
	c := classified(models.KindBuy)
	c.Evidence = []string{"CEX withdrawal from Binance"}

	rec, ok := Transform(tr, c, now)
	if !ok {
		t.Fatal("Record unexpectedly dropped")
	}

	if rec.Chain != models.ChainEthereum || rec.TxHash != "0xhash" {
		t.Errorf("Identity fields lost: %s/%s", rec.Chain, rec.TxHash)
	}
	if rec.CounterpartyAddress != "0xaaa" {
		t.Errorf("Expected counterparty 0xaaa, got %s", rec.CounterpartyAddress)
	}
	if rec.CounterpartyKind != models.LabelCEX {
		t.Errorf("Expected CEX counterparty, got %s", rec.CounterpartyKind)
	}
	if rec.FromLabel != "binance" {
		t.Errorf("Expected from_label binance, got %q", rec.FromLabel)
	}
	if rec.ToLabel != "" {
		t.Errorf("Unknown side must have an empty label, got %q", rec.ToLabel)
	}
	if rec.IngestedAt != now {
		t.Error("IngestedAt must be the transform time")
	}
	// $750k is below the $1M impact step
	if rec.ImpactScore != 5 {
		t.Errorf("Expected impact score 5, got %d", rec.ImpactScore)
	}
	if len(rec.Evidence) != 1 {
		t.Errorf("Evidence not carried over: %v", rec.Evidence)
	}
}

func TestTransform_ImpactScore(t *testing.T) {
	now := time.Now().UTC()
	tr := transfer(nil, nil)
	tr.USDValue = models.NewDecimal(6_000_000)

	rec, ok := Transform(tr, classified(models.KindTransfer), now)
	if !ok {
		t.Fatal("Record unexpectedly dropped")
	}
	if rec.ImpactScore != 7 {
		t.Errorf("Expected impact score 7 for $6M, got %d", rec.ImpactScore)
	}
}
