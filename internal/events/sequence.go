package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Executor represents the subset of pgx methods the event repositories need.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SequenceRepository hands out producer-side sequence numbers per partition.
type SequenceRepository struct {
	executor Executor
}

func NewSequenceRepository(exec Executor) *SequenceRepository {
	return &SequenceRepository{executor: exec}
}

// NextSequence atomically increments and returns the sequence for partitionKey,
// starting at 1.
func (r *SequenceRepository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	var seq int64
	if err := r.executor.QueryRow(ctx, `
		INSERT INTO event_sequence (partition_key, last_sequence, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = NOW()
		RETURNING last_sequence
	`, partitionKey).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
