package models

import "time"

// LabelKind categorizes what an address belongs to
type LabelKind string

const (
	LabelCEX     LabelKind = "CEX"
	LabelDEX     LabelKind = "DEX"
	LabelBridge  LabelKind = "BRIDGE"
	LabelLending LabelKind = "LENDING"
	LabelStaking LabelKind = "STAKING"
	LabelYield   LabelKind = "YIELD"
	LabelMEV     LabelKind = "MEV"
	LabelMixer   LabelKind = "MIXER"
	LabelWhale   LabelKind = "WHALE"
	LabelEOA     LabelKind = "EOA"
	LabelUnknown LabelKind = "UNKNOWN"
)

// AddressLabel classifies an on-chain address
type AddressLabel struct {
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	Address    string    `json:"address" db:"address"`
	Chain      Chain     `json:"chain" db:"chain"`
	Kind       LabelKind `json:"kind" db:"kind"`
	EntityName string    `json:"entity_name,omitempty" db:"entity_name"`
	Confidence float64   `json:"confidence" db:"confidence"`
}

// IsCEX reports whether the label marks an exchange hot wallet
func (l *AddressLabel) IsCEX() bool {
	return l != nil && l.Kind == LabelCEX
}

// IsPlainWallet reports whether the address is an ordinary or unknown wallet,
// i.e. a candidate for the whale role
func (l *AddressLabel) IsPlainWallet() bool {
	if l == nil {
		return true
	}
	return l.Kind == LabelEOA || l.Kind == LabelUnknown || l.Kind == LabelWhale
}

// Entity returns the entity name, falling back to the kind
func (l *AddressLabel) Entity() string {
	if l == nil {
		return string(LabelUnknown)
	}
	if l.EntityName != "" {
		return l.EntityName
	}
	return string(l.Kind)
}

// UnknownLabel is the failure-policy label: lookups never error, they degrade
func UnknownLabel(address string, chain Chain) *AddressLabel {
	return &AddressLabel{
		Address:    address,
		Chain:      chain,
		Kind:       LabelUnknown,
		Confidence: 0,
		UpdatedAt:  time.Now().UTC(),
	}
}
