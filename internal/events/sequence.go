package events

import (
	"context"
	"database/sql"
	"fmt"
)

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SequenceRepository keeps a monotonic counter per partition key in the
// event_sequences table.
type SequenceRepository struct {
	db rowQuerier
}

func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

const nextSequenceQuery = `
INSERT INTO event_sequences (partition_key, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (partition_key) DO UPDATE
SET last_sequence = event_sequences.last_sequence + 1,
    updated_at = NOW()
RETURNING last_sequence
`

// NextSequence increments and returns the partition's counter. The upsert is
// one statement, so concurrent callers never observe the same value.
func (r *SequenceRepository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, fmt.Errorf("partition key is required")
	}

	var next int64
	if err := r.db.QueryRowContext(ctx, nextSequenceQuery, partitionKey).Scan(&next); err != nil {
		return 0, fmt.Errorf("increment sequence: %w", err)
	}
	return next, nil
}
