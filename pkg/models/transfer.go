package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Chain identifies a supported blockchain
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainPolygon  Chain = "polygon"
	ChainBSC      Chain = "bsc"
	ChainSolana   Chain = "solana"
	ChainBitcoin  Chain = "bitcoin"
	ChainXRP      Chain = "xrp"
	ChainTron     Chain = "tron"
)

// RawTransfer is a normalized transfer event as emitted by an ingestion source.
// It is immutable after emission; (Chain, TxHash, LogIndex) identifies the
// event across sources.
type RawTransfer struct {
	BlockTime    time.Time       `json:"block_time"`
	SourceID     string          `json:"source_id"`
	Chain        Chain           `json:"chain"`
	TxHash       string          `json:"tx_hash"`
	FromAddr     string          `json:"from_addr"`
	ToAddr       string          `json:"to_addr"`
	TokenAddr    string          `json:"token_addr,omitempty"`
	Symbol       string          `json:"symbol,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	NativeValue  decimal.Decimal `json:"native_value,omitempty"`
	GasPriceGwei float64         `json:"gas_price_gwei,omitempty"`
	LogIndex     int             `json:"log_index,omitempty"`
	Decimals     int             `json:"decimals,omitempty"`
}

// Key returns the cross-source identity of the event
func (t *RawTransfer) Key() string {
	return fmt.Sprintf("%s:%s:%d", t.Chain, strings.ToLower(t.TxHash), t.LogIndex)
}

// Normalize lowercases addresses and the hash so all sources agree on identity
func (t *RawTransfer) Normalize() {
	t.TxHash = strings.ToLower(strings.TrimSpace(t.TxHash))
	t.FromAddr = normalizeAddress(t.FromAddr, t.Chain)
	t.ToAddr = normalizeAddress(t.ToAddr, t.Chain)
	t.TokenAddr = normalizeAddress(t.TokenAddr, t.Chain)
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
}

// Solana and XRP addresses are case-sensitive, EVM and the rest are not
func normalizeAddress(addr string, chain Chain) string {
	addr = strings.TrimSpace(addr)
	switch chain {
	case ChainSolana, ChainXRP:
		return addr
	default:
		return strings.ToLower(addr)
	}
}

// EnrichedTransfer is a RawTransfer plus USD valuation and address labels
type EnrichedTransfer struct {
	RawTransfer

	USDValue     decimal.Decimal `json:"usd_value"`
	FromLabel    *AddressLabel   `json:"from_label,omitempty"`
	ToLabel      *AddressLabel   `json:"to_label,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	TokenAgeDays int             `json:"token_age_days,omitempty"`
	PriceMissing bool            `json:"price_missing,omitempty"`
}

// HasTag reports whether the record carries the given tag
func (e *EnrichedTransfer) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag once
func (e *EnrichedTransfer) AddTag(tag string) {
	if !e.HasTag(tag) {
		e.Tags = append(e.Tags, tag)
	}
}
