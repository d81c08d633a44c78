package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

const (
	streamReadTimeout  = 90 * time.Second
	streamPingInterval = 30 * time.Second
)

// ChainStreamSource subscribes to a push feed of transfer and swap events
// over a websocket. Fully decoded events become transfers directly;
// hash-only notifications are handed to the RPC log parser.
type ChainStreamSource struct {
	url      string
	hashSink chan<- string
}

// NewChainStreamSource creates the stream source. hashSink may be nil to
// drop hash-only notifications.
func NewChainStreamSource(url string, hashSink chan<- string) *ChainStreamSource {
	return &ChainStreamSource{url: url, hashSink: hashSink}
}

// ID returns the stream identifier
func (s *ChainStreamSource) ID() string {
	return "chain-stream"
}

// streamMessage is the wire shape of one feed event
type streamMessage struct {
	Type         string  `json:"type"`
	Chain        string  `json:"chain"`
	TxHash       string  `json:"tx_hash"`
	LogIndex     int     `json:"log_index"`
	BlockTime    int64   `json:"block_time"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	TokenAddr    string  `json:"token_addr"`
	Symbol       string  `json:"symbol"`
	Amount       string  `json:"amount"`
	Decimals     int     `json:"decimals"`
	GasPriceGwei float64 `json:"gas_price_gwei"`
}

// Run connects and pumps events until the context is cancelled. Any
// connection error returns to the supervisor for a backoff restart.
func (s *ChainStreamSource) Run(ctx context.Context, emit Emit) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial stream %s: %w", s.url, err)
	}
	defer conn.Close()

	logger.Info("🔌 Chain stream connected",
		zap.String("url", s.url),
	)

	// Close the socket when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go s.keepAlive(ctx, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("undecodable stream message, dropping event", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "transfer", "swap":
			t, err := s.toTransfer(&msg)
			if err != nil {
				logger.Debug("undecodable stream event, dropping",
					zap.String("tx_hash", msg.TxHash),
					zap.Error(err),
				)
				continue
			}
			if err := emit(ctx, t); err != nil {
				return err
			}

		case "tx":
			// Hash-only notification; the RPC parser decodes the logs
			if s.hashSink != nil {
				select {
				case s.hashSink <- msg.TxHash:
				default:
					logger.Debug("rpc hash queue full, dropping notification",
						zap.String("tx_hash", msg.TxHash),
					)
				}
			}
		}
	}
}

func (s *ChainStreamSource) toTransfer(msg *streamMessage) (*models.RawTransfer, error) {
	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", msg.Amount, err)
	}

	t := &models.RawTransfer{
		SourceID:     s.ID(),
		Chain:        models.Chain(msg.Chain),
		TxHash:       msg.TxHash,
		LogIndex:     msg.LogIndex,
		BlockTime:    time.Unix(msg.BlockTime, 0).UTC(),
		FromAddr:     msg.From,
		ToAddr:       msg.To,
		TokenAddr:    msg.TokenAddr,
		Symbol:       msg.Symbol,
		Amount:       amount,
		Decimals:     msg.Decimals,
		GasPriceGwei: msg.GasPriceGwei,
	}
	t.Normalize()
	return t, nil
}

func (s *ChainStreamSource) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
