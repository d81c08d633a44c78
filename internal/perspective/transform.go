package perspective

import (
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Transform collapses the (from, to) pair of a classified transfer into the
// whale-centric storage shape. Returns false when the record must be
// dropped (internal exchange moves).
func Transform(t *models.EnrichedTransfer, c *models.Classification, now time.Time) (*models.WhaleRecord, bool) {
	if c.Skip {
		return nil, false
	}

	if t.FromLabel.IsCEX() && t.ToLabel.IsCEX() {
		return nil, false
	}

	whale, counterparty, cpLabel := pickSides(t, c)

	rec := &models.WhaleRecord{
		Chain:               t.Chain,
		TxHash:              t.TxHash,
		BlockTime:           t.BlockTime,
		IngestedAt:          now,
		WhaleAddress:        whale,
		CounterpartyAddress: counterparty,
		CounterpartyKind:    labelKind(cpLabel),
		Classification:      c.Kind,
		Confidence:          c.Confidence,
		TokenSymbol:         t.Symbol,
		USDValue:            t.USDValue,
		FromLabel:           labelText(t.FromLabel),
		ToLabel:             labelText(t.ToLabel),
		Evidence:            c.Evidence,
		SourceID:            t.SourceID,
		IsCEXTransaction:    labelKind(cpLabel) == models.LabelCEX,
		ImpactScore:         models.ImpactScoreFor(t.USDValue),
	}
	return rec, true
}

// pickSides resolves which party is the whale. Custody determines it for
// exchange flows, classification direction for router flows, and the
// sender is the default perspective for wallet-to-wallet moves.
func pickSides(t *models.EnrichedTransfer, c *models.Classification) (whale, counterparty string, cpLabel *models.AddressLabel) {
	fromKind := labelKind(t.FromLabel)
	toKind := labelKind(t.ToLabel)

	switch {
	case fromKind == models.LabelCEX:
		return t.ToAddr, t.FromAddr, t.FromLabel

	case toKind == models.LabelCEX:
		return t.FromAddr, t.ToAddr, t.ToLabel

	case fromKind == models.LabelDEX && c.Kind.IsBuySide():
		return t.ToAddr, t.FromAddr, t.FromLabel

	case toKind == models.LabelDEX && c.Kind.IsSellSide():
		return t.FromAddr, t.ToAddr, t.ToLabel

	case fromKind == models.LabelDEX:
		// Router on the from side without a buy verdict: the receiver is
		// still the acting wallet
		return t.ToAddr, t.FromAddr, t.FromLabel

	case toKind == models.LabelDEX:
		return t.FromAddr, t.ToAddr, t.ToLabel

	default:
		return t.FromAddr, t.ToAddr, t.ToLabel
	}
}

func labelKind(l *models.AddressLabel) models.LabelKind {
	if l == nil {
		return models.LabelUnknown
	}
	return l.Kind
}

func labelText(l *models.AddressLabel) string {
	if l == nil || l.Kind == models.LabelUnknown {
		return ""
	}
	return l.Entity()
}
