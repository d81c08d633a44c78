package explorer

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strings"

	"github.com/selivandex/whale-monitor/internal/classify"
	"github.com/selivandex/whale-monitor/pkg/models"
)

const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// Method selectors recognized on router calls
var methodSelectors = map[string]string{
	"0x38ed1739": "swapExactTokensForTokens",
	"0x8803dbee": "swapTokensForExactTokens",
	"0x7ff36ab5": "swapExactETHForTokens",
	"0x18cbafe5": "swapExactTokensForETH",
	"0x5ae401dc": "multicall",
	"0xe8e33700": "addLiquidity",
	"0xf305d719": "addLiquidityETH",
	"0xbaa2abde": "removeLiquidity",
	"0x02751cec": "removeLiquidityETH",
	"0xa694fc3a": "stake",
}

// Router addresses mapped to protocol names for evidence lines
var routerProtocols = map[string]string{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "uniswap_v2",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "uniswap_v3",
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "uniswap_v3",
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "sushiswap",
	"0x1111111254eeb25477b68fb85ed929f73a960582": "1inch",
}

// Well-known token contracts for symbol resolution on decoded legs
var tokenSymbols = map[string]struct {
	Symbol   string
	Decimals int
}{
	"0xdac17f958d2ee523a2206206994597c13d831ec7": {"USDT", 6},
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {"USDC", 6},
	"0x6b175474e89094c44da98b954eedeac495271d0f": {"DAI", 18},
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {"WETH", 18},
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": {"WBTC", 8},
	"0x514910771af9ca656af840dff83e8264ecf986ca": {"LINK", 18},
	"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984": {"UNI", 18},
}

// ReceiptSource decodes transaction receipts from the explorer into the
// swap facts the classification phases consume
type ReceiptSource struct {
	client *Client
}

// NewReceiptSource creates the receipt decoder
func NewReceiptSource(client *Client) *ReceiptSource {
	return &ReceiptSource{client: client}
}

// FetchFacts decodes the receipt for the transfer's transaction. Only
// Ethereum receipts are decodable; other chains report undecoded facts.
func (s *ReceiptSource) FetchFacts(ctx context.Context, t *models.EnrichedTransfer) (*classify.SwapFacts, error) {
	if t.Chain != models.ChainEthereum {
		return &classify.SwapFacts{}, nil
	}

	receipt, err := s.fetchReceipt(ctx, t.TxHash)
	if err != nil {
		return nil, err
	}

	facts := &classify.SwapFacts{
		Decoded: true,
		Success: receipt.Status == "0x1",
	}
	if !facts.Success {
		return facts, nil
	}

	tx, err := s.fetchTransaction(ctx, t.TxHash)
	if err == nil && tx != nil {
		if len(tx.Input) >= 10 {
			facts.Method = methodSelectors[strings.ToLower(tx.Input[:10])]
		}
		facts.Protocol = routerProtocols[strings.ToLower(tx.To)]

		// The wallet that signed the transaction is the perspective for
		// token flow direction
		wallet := strings.ToLower(tx.From)
		s.collectLegs(facts, receipt.Logs, wallet)
	}

	return facts, nil
}

// collectLegs splits Transfer logs into inbound and outbound legs for the
// originating wallet
func (s *ReceiptSource) collectLegs(facts *classify.SwapFacts, logs []proxyLog, wallet string) {
	for _, lg := range logs {
		if len(lg.Topics) < 3 || strings.ToLower(lg.Topics[0]) != transferTopic {
			continue
		}

		from := topicAddress(lg.Topics[1])
		to := topicAddress(lg.Topics[2])
		leg := s.tokenLeg(lg.Address, lg.Data)

		switch wallet {
		case to:
			facts.TokensIn = append(facts.TokensIn, leg)
		case from:
			facts.TokensOut = append(facts.TokensOut, leg)
		}
	}
}

func (s *ReceiptSource) tokenLeg(tokenAddr, data string) classify.TokenAmount {
	addr := strings.ToLower(tokenAddr)
	symbol := ""
	decimals := 18
	if known, ok := tokenSymbols[addr]; ok {
		symbol = known.Symbol
		decimals = known.Decimals
	}

	return classify.TokenAmount{
		Symbol: symbol,
		Addr:   addr,
		Amount: models.NewDecimal(hexToUnits(data, decimals)),
	}
}

type proxyLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type proxyReceipt struct {
	Status string     `json:"status"`
	Logs   []proxyLog `json:"logs"`
}

func (s *ReceiptSource) fetchReceipt(ctx context.Context, txHash string) (*proxyReceipt, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionReceipt")
	params.Set("txhash", txHash)

	var resp struct {
		Result *proxyReceipt `json:"result"`
	}
	if err := s.client.call(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("receipt not found for %s", txHash)
	}
	return resp.Result, nil
}

type proxyTransaction struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
}

func (s *ReceiptSource) fetchTransaction(ctx context.Context, txHash string) (*proxyTransaction, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", txHash)

	var resp struct {
		Result *proxyTransaction `json:"result"`
	}
	if err := s.client.call(ctx, params, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// topicAddress extracts the 20-byte address from a 32-byte topic
func topicAddress(topic string) string {
	topic = strings.ToLower(strings.TrimPrefix(topic, "0x"))
	if len(topic) < 40 {
		return "0x" + topic
	}
	return "0x" + topic[len(topic)-40:]
}

func hexToUnits(hex string, decimals int) float64 {
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return 0
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f / math.Pow10(decimals)
}
