package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction of a transfer from the whale's point of view
type Direction string

const (
	DirectionBuy      Direction = "BUY"
	DirectionSell     Direction = "SELL"
	DirectionTransfer Direction = "TRANSFER"
)

// WhaleRecord is the stored, whale-perspective result of the pipeline.
// (Chain, TxHash) is the primary key.
type WhaleRecord struct {
	BlockTime           time.Time          `json:"block_time" db:"block_time"`
	IngestedAt          time.Time          `json:"ingested_at" db:"ingested_at"`
	Chain               Chain              `json:"chain" db:"chain"`
	TxHash              string             `json:"tx_hash" db:"tx_hash"`
	WhaleAddress        string             `json:"whale_address,omitempty" db:"whale_address"`
	CounterpartyAddress string             `json:"counterparty_address,omitempty" db:"counterparty_address"`
	CounterpartyKind    LabelKind          `json:"counterparty_kind" db:"counterparty_kind"`
	Classification      ClassificationKind `json:"classification" db:"classification"`
	TokenSymbol         string             `json:"token_symbol" db:"token_symbol"`
	FromLabel           string             `json:"from_label,omitempty" db:"from_label"`
	ToLabel             string             `json:"to_label,omitempty" db:"to_label"`
	Evidence            []string           `json:"evidence" db:"-"`
	SourceID            string             `json:"source_id" db:"source_id"`
	USDValue            decimal.Decimal    `json:"usd_value" db:"usd_value"`
	Confidence          float64            `json:"confidence" db:"confidence"`
	ImpactScore         int                `json:"impact_score" db:"impact_score"`
	IsCEXTransaction    bool               `json:"is_cex_transaction" db:"is_cex_transaction"`
}

// DedupKey groups records that can shadow each other
func (r *WhaleRecord) DedupKey() string {
	return r.WhaleAddress + "/" + r.TokenSymbol
}

// TradeEntry is one entry of a whale's bounded trade history
type TradeEntry struct {
	Timestamp      time.Time          `json:"timestamp"`
	Classification ClassificationKind `json:"classification"`
	Token          string             `json:"token"`
	USDValue       decimal.Decimal    `json:"usd_value"`
	Confidence     float64            `json:"confidence"`
}

// WhaleStats tracks cumulative behavior of a single wallet
type WhaleStats struct {
	FirstSeen       time.Time       `json:"first_seen"`
	LastSeen        time.Time       `json:"last_seen"`
	Address         string          `json:"address"`
	Tokens          []string        `json:"tokens"`
	TradeHistory    []TradeEntry    `json:"trade_history,omitempty"`
	TotalUSD        decimal.Decimal `json:"total_usd"`
	TradeCount      int             `json:"trade_count"`
	BuyCount        int             `json:"buy_count"`
	SellCount       int             `json:"sell_count"`
	SmartMoneyScore float64         `json:"smart_money_score"`
	IsProven        bool            `json:"is_proven"`
}

// HasToken reports whether the wallet traded the token before
func (s *WhaleStats) HasToken(symbol string) bool {
	for _, t := range s.Tokens {
		if t == symbol {
			return true
		}
	}
	return false
}

// SuppressionEvent documents a near-duplicate decision for the audit trail
type SuppressionEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	IncomingHash string    `json:"incoming_hash"`
	ExistingHash string    `json:"existing_hash"`
	Reason       string    `json:"reason"`
	Pattern      string    `json:"pattern"`
	TimeDiff     float64   `json:"time_diff_seconds"`
	USDDiff      float64   `json:"usd_diff"`
}

// ImpactScoreFor grades a transfer 1-10 by USD size
func ImpactScoreFor(usd decimal.Decimal) int {
	v := ToFloat64(usd)
	switch {
	case v >= 100_000_000:
		return 10
	case v >= 50_000_000:
		return 9
	case v >= 10_000_000:
		return 8
	case v >= 5_000_000:
		return 7
	case v >= 1_000_000:
		return 6
	default:
		return 5
	}
}
