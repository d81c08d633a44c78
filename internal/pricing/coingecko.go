package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const coingeckoAPIURL = "https://api.coingecko.com/api/v3"

// CoinGeckoFeed implements Feed using the CoinGecko API (free, no API key)
type CoinGeckoFeed struct {
	client *http.Client
}

// NewCoinGeckoFeed creates a CoinGecko price feed
func NewCoinGeckoFeed() *CoinGeckoFeed {
	return &CoinGeckoFeed{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetPrice returns the current USD price for a symbol
func (cg *CoinGeckoFeed) GetPrice(ctx context.Context, symbol string) (float64, error) {
	coinID := mapSymbolToCoinGeckoID(symbol)

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", coingeckoAPIURL, coinID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := cg.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]struct {
		USD float64 `json:"usd"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	priceData, ok := result[coinID]
	if !ok {
		return 0, fmt.Errorf("price not found for %s", symbol)
	}

	return priceData.USD, nil
}

// mapSymbolToCoinGeckoID converts a ticker to the CoinGecko coin id
func mapSymbolToCoinGeckoID(symbol string) string {
	known := map[string]string{
		"BTC":  "bitcoin",
		"WBTC": "wrapped-bitcoin",
		"ETH":  "ethereum",
		"WETH": "weth",
		"SOL":  "solana",
		"XRP":  "ripple",
		"BNB":  "binancecoin",
		"MATIC": "matic-network",
		"LINK": "chainlink",
		"UNI":  "uniswap",
		"AAVE": "aave",
		"TRX":  "tron",
	}

	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := known[upper]; ok {
		return id
	}
	return strings.ToLower(upper)
}
