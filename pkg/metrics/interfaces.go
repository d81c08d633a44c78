package metrics

import "context"

// Metric is a single row bound for an analytical table
type Metric interface {
	// TableName returns the destination table
	TableName() string
	// Values returns the row values in column order
	Values() []interface{}
}

// Writer persists batches of metrics grouped by table
type Writer interface {
	Write(ctx context.Context, tableName string, metrics []Metric) error
	Close() error
}
