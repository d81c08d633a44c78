package metrics

import "time"

// TransferHistoryMetric is one stored whale record mirrored into the
// analytical transfer_history table. Column order matches the schema the
// mega-whale volume query reads.
type TransferHistoryMetric struct {
	BlockTime   time.Time
	Chain       string
	TxHash      string
	FromAddr    string
	ToAddr      string
	TokenSymbol string
	USDValue    float64
}

func (m *TransferHistoryMetric) TableName() string {
	return "transfer_history"
}

func (m *TransferHistoryMetric) Values() []interface{} {
	return []interface{}{
		m.Chain,
		m.TxHash,
		m.BlockTime,
		m.FromAddr,
		m.ToAddr,
		m.TokenSymbol,
		m.USDValue,
	}
}

// PipelineTickMetric is a periodic snapshot of the per-stage pipeline
// counters, kept for throughput and drop-rate dashboards
type PipelineTickMetric struct {
	Timestamp  time.Time
	Received   int64
	Duplicates int64
	Enriched   int64
	Classified int64
	Skipped    int64
	Suppressed int64
	Stored     int64
	Errors     int64
}

func (m *PipelineTickMetric) TableName() string {
	return "pipeline_ticks"
}

func (m *PipelineTickMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.Received,
		m.Duplicates,
		m.Enriched,
		m.Classified,
		m.Skipped,
		m.Suppressed,
		m.Stored,
		m.Errors,
	}
}
