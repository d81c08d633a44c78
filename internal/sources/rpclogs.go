package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// Event signatures (topic0) the parser recognizes
const (
	topicTransfer = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	topicSwapV2   = "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822"
	topicSwapV3   = "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"
)

const (
	blockTimeCacheSize = 4096
	blockTimeCacheTTL  = time.Hour
)

// RPCLogSource decodes receipts for supplied transaction hashes over
// JSON-RPC and emits one transfer per interesting log. Hashes arrive on a
// channel fed by the chain stream's hash-only notifications.
type RPCLogSource struct {
	client  *http.Client
	hashes  <-chan string
	rpcURL  string
	timeout time.Duration

	// blockTimes caches header timestamps; one block covers many receipts
	blockTimes *expirable.LRU[string, time.Time]
}

// NewRPCLogSource creates the parser source
func NewRPCLogSource(rpcURL string, hashes <-chan string, timeout time.Duration) *RPCLogSource {
	return &RPCLogSource{
		rpcURL:     rpcURL,
		hashes:     hashes,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
		blockTimes: expirable.NewLRU[string, time.Time](blockTimeCacheSize, nil, blockTimeCacheTTL),
	}
}

// ID returns the stream identifier
func (s *RPCLogSource) ID() string {
	return "rpc-log-parser"
}

// Run consumes hashes until the context is cancelled
func (s *RPCLogSource) Run(ctx context.Context, emit Emit) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case hash, ok := <-s.hashes:
			if !ok {
				return nil
			}
			if err := s.decodeTx(ctx, emit, hash); err != nil {
				// One undecodable transaction never stops the stream
				logger.Debug("receipt decode failed, dropping event",
					zap.String("tx_hash", hash),
					zap.Error(err),
				)
			}
		}
	}
}

type rpcLog struct {
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
	LogIndex string   `json:"logIndex"`
}

type rpcReceipt struct {
	Status            string   `json:"status"`
	BlockNumber       string   `json:"blockNumber"`
	EffectiveGasPrice string   `json:"effectiveGasPrice"`
	Logs              []rpcLog `json:"logs"`
}

func (s *RPCLogSource) decodeTx(ctx context.Context, emit Emit, hash string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var receipt rpcReceipt
	if err := s.call(callCtx, "eth_getTransactionReceipt", []interface{}{hash}, &receipt); err != nil {
		return err
	}
	if receipt.Status != "0x1" {
		return nil
	}

	// Records carry the block timestamp, not the observation time; dedup
	// windows and per-whale ordering depend on it
	blockAt, err := s.blockTime(callCtx, receipt.BlockNumber)
	if err != nil {
		logger.Debug("block timestamp unavailable, falling back to wall clock",
			zap.String("block", receipt.BlockNumber),
			zap.Error(err),
		)
		blockAt = time.Now().UTC()
	}

	gasGwei := hexToFloat(receipt.EffectiveGasPrice) / 1e9

	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 {
			continue
		}

		switch strings.ToLower(lg.Topics[0]) {
		case topicTransfer:
			if len(lg.Topics) < 3 {
				continue
			}
			logIndex, _ := strconv.ParseInt(strings.TrimPrefix(lg.LogIndex, "0x"), 16, 64)
			t := &models.RawTransfer{
				SourceID:     s.ID(),
				Chain:        models.ChainEthereum,
				TxHash:       hash,
				LogIndex:     int(logIndex),
				BlockTime:    blockAt,
				FromAddr:     topicToAddress(lg.Topics[1]),
				ToAddr:       topicToAddress(lg.Topics[2]),
				TokenAddr:    lg.Address,
				Amount:       hexToDecimal(lg.Data, 18),
				GasPriceGwei: gasGwei,
			}
			t.Normalize()
			if err := emit(ctx, t); err != nil {
				return err
			}

		case topicSwapV2, topicSwapV3:
			// Swap legs carry no wallet pair on their own; the matching
			// Transfer logs in the same receipt already cover the movement
			continue
		}
	}
	return nil
}

// blockTime resolves a block number to its header timestamp
func (s *RPCLogSource) blockTime(ctx context.Context, blockNumber string) (time.Time, error) {
	if blockNumber == "" {
		return time.Time{}, fmt.Errorf("receipt carries no block number")
	}
	if at, ok := s.blockTimes.Get(blockNumber); ok {
		return at, nil
	}

	var block struct {
		Timestamp string `json:"timestamp"`
	}
	if err := s.call(ctx, "eth_getBlockByNumber", []interface{}{blockNumber, false}, &block); err != nil {
		return time.Time{}, err
	}

	unix, err := strconv.ParseInt(strings.TrimPrefix(block.Timestamp, "0x"), 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad block timestamp %q: %w", block.Timestamp, err)
	}

	at := time.Unix(unix, 0).UTC()
	s.blockTimes.Add(blockNumber, at)
	return at, nil
}

// call performs one JSON-RPC request and unmarshals the result
func (s *RPCLogSource) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc error %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc returned error: %s", rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%s returned no result", method)
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// topicToAddress extracts the 20-byte address from a 32-byte topic
func topicToAddress(topic string) string {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) < 40 {
		return "0x" + topic
	}
	return "0x" + topic[len(topic)-40:]
}

func hexToFloat(hex string) float64 {
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return 0
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func hexToDecimal(hex string, decimals int) decimal.Decimal {
	raw := hexToFloat(hex)
	return models.NewDecimal(raw / math.Pow10(decimals))
}
