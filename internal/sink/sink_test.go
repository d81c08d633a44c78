package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/selivandex/whale-monitor/pkg/models"
)

type flakyStorage struct {
	failures int
	calls    int
}

func (f *flakyStorage) Upsert(_ context.Context, _ *models.WhaleRecord) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func testRecord(kind models.ClassificationKind) *models.WhaleRecord {
	return &models.WhaleRecord{
		Chain:          models.ChainEthereum,
		TxHash:         "0xsink",
		BlockTime:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WhaleAddress:   "0xwhale",
		TokenSymbol:    "WETH",
		Classification: kind,
		USDValue:       models.NewDecimal(1_000_000),
		Confidence:     0.9,
	}
}

func TestSink_StoreFirstTry(t *testing.T) {
	storage := &flakyStorage{}
	s := New(storage, nil, nil)

	require.NoError(t, s.Store(context.Background(), testRecord(models.KindBuy)))
	require.Equal(t, 1, storage.calls)

	stats := s.Stats()
	require.Equal(t, int64(1), stats["stored"])
	require.Equal(t, int64(1), stats["buys"])
	require.Equal(t, int64(0), stats["dead_letter"])
}

func TestSink_RetriesTransientFailures(t *testing.T) {
	storage := &flakyStorage{failures: 2}
	s := New(storage, nil, nil)

	require.NoError(t, s.Store(context.Background(), testRecord(models.KindSell)))
	require.Equal(t, 3, storage.calls)
	require.Equal(t, int64(1), s.Stats()["sells"])
}

func TestSink_DeadLettersAfterExhaustion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead_letter.ndjson")
	dl, err := NewDeadLetter(path)
	require.NoError(t, err)

	storage := &flakyStorage{failures: maxAttempts + 1}
	s := New(storage, dl, nil)

	// Cancel during the first backoff so the test does not sit out the
	// full retry schedule
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Store(ctx, testRecord(models.KindBuy))
	require.Error(t, err)
	require.Equal(t, int64(1), s.Stats()["dead_letter"])
	require.Equal(t, int64(0), s.Stats()["stored"])

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "dead-letter file must contain the record")

	var entry struct {
		Error  string              `json:"error"`
		Record *models.WhaleRecord `json:"record"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	require.NotEmpty(t, entry.Error)
	require.Equal(t, "0xsink", entry.Record.TxHash)
}

func TestSink_SentimentCounters(t *testing.T) {
	storage := &flakyStorage{}
	s := New(storage, nil, nil)
	ctx := context.Background()

	for _, kind := range []models.ClassificationKind{
		models.KindBuy, models.KindModerateBuy,
		models.KindSell, models.KindTransfer,
	} {
		require.NoError(t, s.Store(ctx, testRecord(kind)))
	}

	stats := s.Stats()
	require.Equal(t, int64(4), stats["stored"])
	require.Equal(t, int64(2), stats["buys"])
	require.Equal(t, int64(1), stats["sells"])
	require.Equal(t, int64(1), stats["transfers"])
}
