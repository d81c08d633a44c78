package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/selivandex/whale-monitor/pkg/models"
)

type fakeCleanupStore struct {
	rows    []*models.WhaleRecord
	deleted map[models.Chain][]string
}

func (f *fakeCleanupStore) FetchWindow(_ context.Context, _ time.Time, limit, offset int) ([]*models.WhaleRecord, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func (f *fakeCleanupStore) DeleteByHashes(_ context.Context, chain models.Chain, hashes []string) (int64, error) {
	if f.deleted == nil {
		f.deleted = make(map[models.Chain][]string)
	}
	f.deleted[chain] = append(f.deleted[chain], hashes...)
	return int64(len(hashes)), nil
}

// rows ordered by (whale, token, block_time) the way the store query
// returns them
func cleanupRows() []*models.WhaleRecord {
	mirrorA := record("0xkeep", models.KindBuy, 1_000_000, baseTime, 0.90)
	mirrorB := record("0xdupe", models.KindSell, 1_000_000, baseTime.Add(3*time.Second), 0.70)

	unique := record("0xunique", models.KindBuy, 2_000_000, baseTime.Add(time.Hour), 0.85)

	other := record("0xother", models.KindSell, 900_000, baseTime, 0.80)
	other.WhaleAddress = "0xanother"

	return []*models.WhaleRecord{mirrorA, mirrorB, unique, other}
}

func TestCleaner_DryRun(t *testing.T) {
	store := &fakeCleanupStore{rows: cleanupRows()}
	cleaner := NewCleaner(dedupCfg(), store, true)

	report, err := cleaner.Run(context.Background(), baseTime.Add(-time.Hour))
	require.NoError(t, err)

	require.Equal(t, 4, report.Scanned)
	require.Equal(t, 1, report.Duplicates)
	require.Equal(t, int64(0), report.Deleted)
	require.True(t, report.DryRun)
	require.Empty(t, store.deleted, "dry run must not delete anything")
}

func TestCleaner_Live(t *testing.T) {
	store := &fakeCleanupStore{rows: cleanupRows()}
	cleaner := NewCleaner(dedupCfg(), store, false)

	report, err := cleaner.Run(context.Background(), baseTime.Add(-time.Hour))
	require.NoError(t, err)

	require.Equal(t, 1, report.Duplicates)
	require.Equal(t, int64(1), report.Deleted)
	// The lower-confidence side of the mirror pair loses
	require.Equal(t, []string{"0xdupe"}, store.deleted[models.ChainEthereum])
}

func TestCleaner_SafeguardedRowsSurvive(t *testing.T) {
	big := record("0xbig1", models.KindBuy, 6_000_000, baseTime, 0.90)
	bigMirror := record("0xbig2", models.KindSell, 6_000_000, baseTime.Add(2*time.Second), 0.50)

	store := &fakeCleanupStore{rows: []*models.WhaleRecord{big, bigMirror}}
	cleaner := NewCleaner(dedupCfg(), store, false)

	report, err := cleaner.Run(context.Background(), baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, report.Duplicates)
	require.Empty(t, store.deleted)
}

func TestPickLoser(t *testing.T) {
	lowConf := record("0xlow", models.KindBuy, 1_000_000, baseTime, 0.60)
	highConf := record("0xhigh", models.KindBuy, 1_000_000, baseTime.Add(time.Second), 0.90)
	require.Equal(t, lowConf, pickLoser(lowConf, highConf))

	early := record("0xearly", models.KindBuy, 1_000_000, baseTime, 0.80)
	late := record("0xlate", models.KindBuy, 1_000_000, baseTime.Add(time.Second), 0.80)
	require.Equal(t, late, pickLoser(early, late))
}
