package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

const whaleAlertAPIURL = "https://api.whale-alert.io/v1/transactions"

// WhaleAlertSource polls the Whale Alert firehose of pre-filtered large
// transactions. The reported USD amount travels in NativeValue so
// enrichment can fall back to it when no fresher price exists.
type WhaleAlertSource struct {
	client      *http.Client
	watermarks  *WatermarkStore
	baseURL     string
	apiKey      string
	minValueUSD int
	interval    time.Duration
}

// NewWhaleAlertSource creates the whale-alert polling source
func NewWhaleAlertSource(apiKey string, minValueUSD int, interval time.Duration, watermarks *WatermarkStore) *WhaleAlertSource {
	return &WhaleAlertSource{
		apiKey:      apiKey,
		minValueUSD: minValueUSD,
		interval:    interval,
		watermarks:  watermarks,
		baseURL:     whaleAlertAPIURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// ID returns the stream identifier
func (s *WhaleAlertSource) ID() string {
	return "whale-alert"
}

var chainAliases = map[string]models.Chain{
	"ethereum":            models.ChainEthereum,
	"polygon":             models.ChainPolygon,
	"binance-smart-chain": models.ChainBSC,
	"solana":              models.ChainSolana,
	"bitcoin":             models.ChainBitcoin,
	"ripple":              models.ChainXRP,
	"tron":                models.ChainTron,
}

// Run polls the API until the context is cancelled
func (s *WhaleAlertSource) Run(ctx context.Context, emit Emit) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx, emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *WhaleAlertSource) poll(ctx context.Context, emit Emit) error {
	since := time.Now().Add(-1 * time.Hour)
	if w, ok := s.watermarks.Get(s.ID()); ok && w.LastTime.After(since) {
		since = w.LastTime
	}

	url := fmt.Sprintf("%s?api_key=%s&start=%d&min_value=%d",
		s.baseURL, s.apiKey, since.Unix(), s.minValueUSD)

	req, err := http.NewRequestWithContext(ctx, "GET", url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Misconfigured key; restarting will not help
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whale-alert auth rejected (%d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Result       string `json:"result"`
		Transactions []struct {
			From struct {
				Address string `json:"address"`
				Owner   string `json:"owner"`
			} `json:"from"`
			To struct {
				Address string `json:"address"`
				Owner   string `json:"owner"`
			} `json:"to"`
			Blockchain string  `json:"blockchain"`
			Symbol     string  `json:"symbol"`
			Hash       string  `json:"hash"`
			Amount     float64 `json:"amount"`
			AmountUSD  float64 `json:"amount_usd"`
			Timestamp  int64   `json:"timestamp"`
		} `json:"transactions"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	newest := since
	emitted := 0
	for _, tx := range result.Transactions {
		chain, ok := chainAliases[tx.Blockchain]
		if !ok {
			continue
		}

		blockTime := time.Unix(tx.Timestamp, 0).UTC()
		t := &models.RawTransfer{
			SourceID:    s.ID(),
			Chain:       chain,
			TxHash:      tx.Hash,
			BlockTime:   blockTime,
			FromAddr:    tx.From.Address,
			ToAddr:      tx.To.Address,
			Symbol:      tx.Symbol,
			Amount:      models.NewDecimal(tx.Amount),
			NativeValue: models.NewDecimal(tx.AmountUSD),
		}
		t.Normalize()

		if err := emit(ctx, t); err != nil {
			return err
		}
		emitted++
		if blockTime.After(newest) {
			newest = blockTime
		}
	}

	if newest.After(since) {
		if err := s.watermarks.Set(s.ID(), Watermark{LastTime: newest}); err != nil {
			logger.Warn("failed to persist whale-alert watermark", zap.Error(err))
		}
	}

	logger.Debug("whale-alert poll complete",
		zap.Int("emitted", emitted),
		zap.Time("since", since),
	)
	return nil
}
