package models

// ClassificationKind is the final verdict for a transfer
type ClassificationKind string

const (
	KindBuy          ClassificationKind = "BUY"
	KindSell         ClassificationKind = "SELL"
	KindTransfer     ClassificationKind = "TRANSFER"
	KindModerateBuy  ClassificationKind = "MODERATE_BUY"
	KindModerateSell ClassificationKind = "MODERATE_SELL"
	KindStaking      ClassificationKind = "STAKING"
	KindDefi         ClassificationKind = "DEFI"
	KindBridge       ClassificationKind = "BRIDGE"
	KindLiquidity    ClassificationKind = "LIQUIDITY"
	KindUnclassified ClassificationKind = "UNKNOWN"
)

// IsBuySide reports whether the kind votes the buy direction
func (k ClassificationKind) IsBuySide() bool {
	return k == KindBuy || k == KindModerateBuy
}

// IsSellSide reports whether the kind votes the sell direction
func (k ClassificationKind) IsSellSide() bool {
	return k == KindSell || k == KindModerateSell
}

// IsDirectional reports whether the kind expresses a market direction
func (k ClassificationKind) IsDirectional() bool {
	return k.IsBuySide() || k.IsSellSide()
}

// IsProtocol reports whether the kind is a protocol interaction. Protocol
// interactions are exempt from near-duplicate suppression.
func (k ClassificationKind) IsProtocol() bool {
	switch k {
	case KindDefi, KindLiquidity, KindBridge, KindStaking:
		return true
	}
	return false
}

// Classification is the aggregated output of the classification engine
type Classification struct {
	Kind        ClassificationKind `json:"kind"`
	Evidence    []string           `json:"evidence"`
	Tags        []string           `json:"tags,omitempty"`
	Confidence  float64            `json:"confidence"`
	ShouldAlert bool               `json:"should_alert"`
	// Skip marks CEX-internal moves that must not be stored
	Skip bool `json:"skip,omitempty"`
}

// AddEvidence appends a human-readable evidence line
func (c *Classification) AddEvidence(line string) {
	if line != "" {
		c.Evidence = append(c.Evidence, line)
	}
}

// HasTag reports whether the classification carries the given tag
func (c *Classification) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
