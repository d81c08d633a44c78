package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

const etherscanAPIURL = "https://api.etherscan.io/api"

// Token contracts the poller watches by symbol
var etherscanTokenContracts = map[string]struct {
	Address  string
	Decimals int
}{
	"USDT": {"0xdac17f958d2ee523a2206206994597c13d831ec7", 6},
	"USDC": {"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", 6},
	"WETH": {"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", 18},
	"WBTC": {"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", 8},
}

// EtherscanSource polls the block explorer for confirmed transfers of the
// watched token list. The last processed block per contract is kept in
// the watermark store so restarts resume instead of re-reading.
type EtherscanSource struct {
	client     *http.Client
	watermarks *WatermarkStore
	apiKey     string
	tokens     []string
	interval   time.Duration
}

// NewEtherscanSource creates the explorer polling source
func NewEtherscanSource(apiKey string, tokens []string, interval time.Duration, watermarks *WatermarkStore) *EtherscanSource {
	return &EtherscanSource{
		apiKey:     apiKey,
		tokens:     tokens,
		interval:   interval,
		watermarks: watermarks,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// ID returns the stream identifier
func (s *EtherscanSource) ID() string {
	return "etherscan-poller"
}

// Run polls every watched token each interval
func (s *EtherscanSource) Run(ctx context.Context, emit Emit) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		for _, symbol := range s.tokens {
			token, ok := etherscanTokenContracts[symbol]
			if !ok {
				continue
			}
			if err := s.pollToken(ctx, emit, symbol, token.Address, token.Decimals); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *EtherscanSource) pollToken(ctx context.Context, emit Emit, symbol, contract string, decimals int) error {
	markKey := s.ID() + "/" + symbol
	var startBlock int64
	if w, ok := s.watermarks.Get(markKey); ok {
		startBlock = w.LastBlock + 1
	}

	url := fmt.Sprintf("%s?module=account&action=tokentx&contractaddress=%s&startblock=%d&sort=asc&apikey=%s",
		etherscanAPIURL, contract, startBlock, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  []struct {
			Hash        string `json:"hash"`
			From        string `json:"from"`
			To          string `json:"to"`
			Value       string `json:"value"`
			BlockNumber string `json:"blockNumber"`
			TimeStamp   string `json:"timeStamp"`
			GasPrice    string `json:"gasPrice"`
			LogIndex    string `json:"logIndex"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	// Status "0" with "No transactions found" is an empty page, not an error
	if result.Status != "1" && len(result.Result) > 0 {
		return fmt.Errorf("explorer returned error: %s", result.Message)
	}

	lastBlock := startBlock - 1
	emitted := 0
	for _, tx := range result.Result {
		raw, err := strconv.ParseFloat(tx.Value, 64)
		if err != nil {
			logger.Debug("undecodable transfer value, dropping event",
				zap.String("tx_hash", tx.Hash),
				zap.String("value", tx.Value),
			)
			continue
		}
		amount := raw / math.Pow10(decimals)

		ts, _ := strconv.ParseInt(tx.TimeStamp, 10, 64)
		block, _ := strconv.ParseInt(tx.BlockNumber, 10, 64)
		logIndex, _ := strconv.Atoi(tx.LogIndex)
		gasWei, _ := strconv.ParseFloat(tx.GasPrice, 64)

		t := &models.RawTransfer{
			SourceID:     s.ID(),
			Chain:        models.ChainEthereum,
			TxHash:       tx.Hash,
			LogIndex:     logIndex,
			BlockTime:    time.Unix(ts, 0).UTC(),
			FromAddr:     tx.From,
			ToAddr:       tx.To,
			TokenAddr:    contract,
			Symbol:       symbol,
			Amount:       models.NewDecimal(amount),
			Decimals:     decimals,
			GasPriceGwei: gasWei / 1e9,
		}
		t.Normalize()

		if err := emit(ctx, t); err != nil {
			return err
		}
		emitted++
		if block > lastBlock {
			lastBlock = block
		}
	}

	if lastBlock >= startBlock {
		if err := s.watermarks.Set(markKey, Watermark{LastBlock: lastBlock, LastTime: time.Now().UTC()}); err != nil {
			logger.Warn("failed to persist explorer watermark",
				zap.String("token", symbol),
				zap.Error(err),
			)
		}
	}

	logger.Debug("explorer poll complete",
		zap.String("token", symbol),
		zap.Int("emitted", emitted),
		zap.Int64("last_block", lastBlock),
	)
	return nil
}
