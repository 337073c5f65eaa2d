package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DedupRepository stores consumer-side checkpoints: the highest sequence a
// consumer has applied for each partition.
type DedupRepository struct {
	executor Executor
}

func NewDedupRepository(exec Executor) *DedupRepository {
	return &DedupRepository{executor: exec}
}

// WithExecutor returns a shallow copy using the provided executor (e.g., a transaction).
func (r *DedupRepository) WithExecutor(exec Executor) *DedupRepository {
	return &DedupRepository{executor: exec}
}

// LastSequence returns the last applied sequence. The boolean reports whether
// a checkpoint existed.
func (r *DedupRepository) LastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error) {
	var last int64
	if err := r.executor.QueryRow(ctx, `
		SELECT last_sequence
		FROM event_dedup_checkpoint
		WHERE consumer_name=$1 AND partition_key=$2
	`, consumerName, partitionKey).Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select checkpoint: %w", err)
	}
	return last, true, nil
}

// Advance moves the checkpoint forward. It never moves it back, even when two
// consumers race on the same partition.
func (r *DedupRepository) Advance(ctx context.Context, consumerName, partitionKey string, seq int64) error {
	_, err := r.executor.Exec(ctx, `
		INSERT INTO event_dedup_checkpoint (consumer_name, partition_key, last_sequence, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (consumer_name, partition_key)
		DO UPDATE SET
			last_sequence = GREATEST(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence),
			updated_at = NOW()
	`, consumerName, partitionKey, seq)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}
