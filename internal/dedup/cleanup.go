package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

const cleanupPageSize = 5000

// CleanupStore is the storage surface the offline cleaner needs
type CleanupStore interface {
	FetchWindow(ctx context.Context, since time.Time, limit, offset int) ([]*models.WhaleRecord, error)
	DeleteByHashes(ctx context.Context, chain models.Chain, hashes []string) (int64, error)
}

// CleanupReport summarizes one cleaner run
type CleanupReport struct {
	Scanned    int   `json:"scanned"`
	Duplicates int   `json:"duplicates"`
	Deleted    int64 `json:"deleted"`
	DryRun     bool  `json:"dry_run"`
}

// Cleaner removes near-duplicate rows that slipped into storage before
// the online suppressor saw both sides. Dry-run is the default: nothing
// is deleted unless explicitly asked.
type Cleaner struct {
	store     CleanupStore
	predicate *Suppressor
	dryRun    bool
}

// NewCleaner creates the offline duplicate cleaner
func NewCleaner(cfg *config.DedupConfig, store CleanupStore, dryRun bool) *Cleaner {
	return &Cleaner{
		store:     store,
		predicate: NewSuppressor(cfg, nil, nil),
		dryRun:    dryRun,
	}
}

// Run scans records since the given time and removes the losing side of
// every duplicate pair. The survivor keeps the higher confidence; ties go
// to the earlier block time.
func (c *Cleaner) Run(ctx context.Context, since time.Time) (*CleanupReport, error) {
	report := &CleanupReport{DryRun: c.dryRun}
	doomed := make(map[models.Chain][]string)

	offset := 0
	var group []*models.WhaleRecord
	groupKey := ""

	flushGroup := func() {
		c.markGroupDuplicates(group, report, doomed)
		group = group[:0]
	}

	for {
		page, err := c.store.FetchWindow(ctx, since, cleanupPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			report.Scanned++
			key := rec.DedupKey()
			if key != groupKey {
				flushGroup()
				groupKey = key
			}
			group = append(group, rec)
		}
		offset += len(page)

		if len(page) < cleanupPageSize {
			break
		}
	}
	flushGroup()

	if !c.dryRun {
		for chain, hashes := range doomed {
			deleted, err := c.store.DeleteByHashes(ctx, chain, hashes)
			if err != nil {
				return report, err
			}
			report.Deleted += deleted
		}
	}

	logger.Info("🧹 Duplicate cleanup finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("duplicates", report.Duplicates),
		zap.Int64("deleted", report.Deleted),
		zap.Bool("dry_run", report.DryRun),
	)
	return report, nil
}

// markGroupDuplicates finds losing records within one (whale, token)
// group. Rows arrive in block-time order.
func (c *Cleaner) markGroupDuplicates(group []*models.WhaleRecord, report *CleanupReport, doomed map[models.Chain][]string) {
	removed := make(map[string]bool)

	for i := 0; i < len(group); i++ {
		if removed[group[i].TxHash] {
			continue
		}
		for j := i + 1; j < len(group); j++ {
			if removed[group[j].TxHash] {
				continue
			}

			a, b := group[i], group[j]
			if c.predicate.Exempt(a) || c.predicate.Exempt(b) {
				continue
			}
			pattern, ok := c.predicate.Match(a, b)
			if !ok {
				continue
			}

			loser := pickLoser(a, b)
			removed[loser.TxHash] = true
			report.Duplicates++
			doomed[loser.Chain] = append(doomed[loser.Chain], loser.TxHash)

			logger.Debug("duplicate row found",
				zap.String("pattern", pattern),
				zap.String("keep", winnerOf(a, b, loser).TxHash),
				zap.String("remove", loser.TxHash),
			)
		}
	}
}

// pickLoser returns the record to delete: lower confidence, ties broken
// by the later block time
func pickLoser(a, b *models.WhaleRecord) *models.WhaleRecord {
	if a.Confidence != b.Confidence {
		if a.Confidence < b.Confidence {
			return a
		}
		return b
	}
	if a.BlockTime.After(b.BlockTime) {
		return a
	}
	return b
}

func winnerOf(a, b, loser *models.WhaleRecord) *models.WhaleRecord {
	if loser == a {
		return b
	}
	return a
}
