package store

import (
	"context"
	"errors"
)

// ErrStoreUnavailable means the underlying storage cannot be opened, read or
// written. It is fatal to the pipeline that hits it; retrying writes against
// a broken store risks partial corruption.
var ErrStoreUnavailable = errors.New("document store unavailable")

type Store interface {
	// Upsert inserts or replaces by Passage.ID. Calling it twice with the
	// same record leaves one row behind, not two.
	Upsert(ctx context.Context, p Passage) error

	// UpsertBatch applies Upsert per record. The batch is not transactional
	// as a whole, but each record lands atomically.
	UpsertBatch(ctx context.Context, ps []Passage) error

	// Scan streams every passage matching the filters to fn in unspecified
	// order. A non-nil error from fn stops the scan and is returned.
	Scan(ctx context.Context, f Filters, fn func(Passage) error) error

	Count(ctx context.Context, f Filters) (int, error)

	Has(ctx context.Context, id string) (bool, error)

	// Dimension reports the embedding dimension stamped into the store.
	Dimension() int

	Close() error
}
