package models

import "testing"

func TestClassificationKind_ProtocolKinds(t *testing.T) {
	for _, k := range []ClassificationKind{KindDefi, KindLiquidity, KindBridge, KindStaking} {
		if !k.IsProtocol() {
			t.Errorf("%s must be a protocol kind", k)
		}
		if k.IsDirectional() {
			t.Errorf("%s must not be directional", k)
		}
	}
	if KindBuy.IsProtocol() || KindSell.IsProtocol() {
		t.Error("Directional kinds are not protocol kinds")
	}
}

func TestLabelKind_WalletRoles(t *testing.T) {
	// The label taxonomy is separate from the classification taxonomy:
	// a STAKING label marks a contract address, a STAKING classification
	// marks a transfer.
	staking := &AddressLabel{Kind: LabelStaking}
	if staking.IsCEX() {
		t.Error("Staking contract must not read as a CEX")
	}
	if staking.IsPlainWallet() {
		t.Error("Staking contract is not a whale candidate")
	}

	bridge := &AddressLabel{Kind: LabelBridge}
	if bridge.IsPlainWallet() {
		t.Error("Bridge contract is not a whale candidate")
	}

	for _, k := range []LabelKind{LabelEOA, LabelUnknown, LabelWhale} {
		l := &AddressLabel{Kind: k}
		if !l.IsPlainWallet() {
			t.Errorf("%s must be a whale candidate", k)
		}
	}
}
