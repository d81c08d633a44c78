package sources

import (
	"context"

	"github.com/selivandex/whale-monitor/pkg/models"
)

// Emit delivers one normalized transfer into the fan-in queue. It blocks
// while the queue is full and returns the context error on shutdown.
type Emit func(ctx context.Context, t *models.RawTransfer) error

// Source is one independent ingestion stream. Run blocks until the stream
// ends or the context is cancelled; returning an error asks the
// supervisor for a restart with backoff.
type Source interface {
	// ID identifies the stream in records and logs
	ID() string
	// Run pumps normalized transfers through emit until ctx is done
	Run(ctx context.Context, emit Emit) error
}
