package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/metrics"
)

// ClickHouseWriter batch-inserts metric rows into ClickHouse
type ClickHouseWriter struct {
	db *sqlx.DB
}

// NewClickHouseWriter creates the writer; the connection is managed by the
// caller
func NewClickHouseWriter(db *sqlx.DB) *ClickHouseWriter {
	return &ClickHouseWriter{db: db}
}

// Write inserts one batch into the given table
func (w *ClickHouseWriter) Write(ctx context.Context, tableName string, rows []metrics.Metric) error {
	if len(rows) == 0 {
		return nil
	}

	columnCount := len(rows[0].Values())
	if columnCount == 0 {
		return fmt.Errorf("metric %s has no columns", tableName)
	}

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", columnCount), ", ") + ")"
	placeholders := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*columnCount)

	for i, row := range rows {
		values := row.Values()
		if len(values) != columnCount {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(values), columnCount)
		}
		placeholders[i] = rowPlaceholder
		args = append(args, values...)
	}

	query := fmt.Sprintf("INSERT INTO %s VALUES %s", tableName, strings.Join(placeholders, ", "))
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clickhouse insert into %s failed: %w", tableName, err)
	}

	logger.Debug("clickhouse batch inserted",
		zap.String("table", tableName),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// Close is a no-op; the connection is shared with the analytics repository
func (w *ClickHouseWriter) Close() error {
	return nil
}
