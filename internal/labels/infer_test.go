package labels

import (
	"testing"

	"github.com/selivandex/whale-monitor/pkg/models"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		label   string
		kind    models.LabelKind
		minConf float64
	}{
		{"Binance 14", models.LabelCEX, 0.95},
		{"Coinbase", models.LabelCEX, 0.95},
		{"OKX Deposit Wallet", models.LabelCEX, 0.95},
		{"Some Exchange Hot Wallet", models.LabelCEX, 0.80},
		{"Uniswap V3: Router", models.LabelDEX, 0.95},
		{"1inch Aggregator", models.LabelDEX, 0.80},
		{"Tornado Cash: 10 ETH", models.LabelMixer, 0.95},
		{"Wintermute Trading", models.LabelMEV, 0.95},
		{"Stargate: Bridge", models.LabelBridge, 0.95},
		{"Lido: stETH", models.LabelStaking, 0.95},
		{"Aave V3: Pool", models.LabelLending, 0.95},
		{"Yearn Vault", models.LabelYield, 0.95},
		{"", models.LabelUnknown, 0},
		{"Random Wallet Name", models.LabelUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			kind, conf := InferKind(tt.label)
			if kind != tt.kind {
				t.Errorf("InferKind(%q) = %s, want %s", tt.label, kind, tt.kind)
			}
			if conf < tt.minConf {
				t.Errorf("InferKind(%q) confidence %.2f, want >= %.2f", tt.label, conf, tt.minConf)
			}
		})
	}
}

func TestInferKind_MixerBeatsDEXKeywords(t *testing.T) {
	// "Tornado Cash Router" contains a DEX keyword but the mixer entity
	// must win
	kind, _ := InferKind("Tornado Cash Router")
	if kind != models.LabelMixer {
		t.Errorf("Expected MIXER, got %s", kind)
	}
}

func TestEntityFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Binance 14", "binance"},
		{"binance_hot_wallet", "binance"},
		{"Uniswap V3: Router 2", "uniswap"},
		{"Gate.io Deposit", "gate.io"},
		{"SomeProtocol: Vault", "someprotocol"},
		{"plainname", "plainname"},
	}

	for _, tt := range tests {
		if got := EntityFromLabel(tt.label); got != tt.want {
			t.Errorf("EntityFromLabel(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
