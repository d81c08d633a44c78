package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/selivandex/whale-monitor/pkg/models"
)

const (
	testFromTopic = "0x000000000000000000000000a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0"
	testToTopic   = "0x000000000000000000000000ffeeddccbbaa99887766554433221100ffeeddcc"
)

// rpcStub answers eth_getTransactionReceipt and eth_getBlockByNumber and
// counts block header lookups
type rpcStub struct {
	blockUnix  int64
	blockCalls int
}

func (s *rpcStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch req.Method {
		case "eth_getTransactionReceipt":
			fmt.Fprintf(w, `{"result": {
				"status": "0x1",
				"blockNumber": "0x151f2a",
				"effectiveGasPrice": "0x77359400",
				"logs": [{
					"address": "0xdac17f958d2ee523a2206206994597c13d831ec7",
					"topics": ["%s", "%s", "%s"],
					"data": "0x00000000000000000000000000000000000000000000003635c9adc5dea00000",
					"logIndex": "0x2"
				}]
			}}`, topicTransfer, testFromTopic, testToTopic)

		case "eth_getBlockByNumber":
			s.blockCalls++
			fmt.Fprintf(w, `{"result": {"timestamp": "0x%x"}}`, s.blockUnix)

		default:
			fmt.Fprint(w, `{"error": {"message": "unknown method"}}`)
		}
	}
}

func TestRPCLogSource_UsesBlockTimestamp(t *testing.T) {
	blockAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := &rpcStub{blockUnix: blockAt.Unix()}

	server := httptest.NewServer(stub.handler())
	defer server.Close()

	src := NewRPCLogSource(server.URL, nil, 2*time.Second)

	var emitted []*models.RawTransfer
	if err := src.decodeTx(context.Background(), collectEmit(&emitted), "0xdeadbeef"); err != nil {
		t.Fatalf("decodeTx failed: %v", err)
	}

	if len(emitted) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(emitted))
	}
	tr := emitted[0]
	if !tr.BlockTime.Equal(blockAt) {
		t.Errorf("Expected block timestamp %v, got %v", blockAt, tr.BlockTime)
	}
	if tr.FromAddr != "0xa1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0" {
		t.Errorf("Sender not extracted from topic: %s", tr.FromAddr)
	}
	if tr.LogIndex != 2 {
		t.Errorf("Expected log index 2, got %d", tr.LogIndex)
	}

	// A second receipt in the same block hits the header cache
	if err := src.decodeTx(context.Background(), collectEmit(&emitted), "0xcafebabe"); err != nil {
		t.Fatalf("decodeTx failed: %v", err)
	}
	if stub.blockCalls != 1 {
		t.Errorf("Expected 1 header lookup for 2 receipts, got %d", stub.blockCalls)
	}
	if !emitted[1].BlockTime.Equal(blockAt) {
		t.Errorf("Cached timestamp mismatch: %v", emitted[1].BlockTime)
	}
}
