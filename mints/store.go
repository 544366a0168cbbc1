package mints

import "context"

// Store persists mint configurations.
//
// Implementations must make UpsertMint idempotent: concurrent or retried
// detection runs for the same (collection, stage) converge to one record.
type Store interface {
	// UpsertMint inserts m, replacing any existing configuration with the
	// same (collection, stage). The replacement is whole-record; callers
	// never rely on surviving fields.
	UpsertMint(ctx context.Context, m *CollectionMint) error

	// GetMint returns the configuration for (collection, stage), or
	// indexer.ErrMintNotFound.
	GetMint(ctx context.Context, collection, stage string) (*CollectionMint, error)

	// ListMintsByCollection returns every configuration known for a
	// collection, in no particular order.
	ListMintsByCollection(ctx context.Context, collection string) ([]*CollectionMint, error)

	// ListMintsByStandard returns a collection's configurations carrying
	// the given standard tag.
	ListMintsByStandard(ctx context.Context, collection, standard string) ([]*CollectionMint, error)
}
