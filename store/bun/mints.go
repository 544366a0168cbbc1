package bunstore

import (
	"context"
	"fmt"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/mints"
)

// UpsertMint inserts m, replacing any existing configuration with the same
// (collection, stage). The replacement is whole-record: every column is
// overwritten with the new detection's values.
func (s *Store) UpsertMint(ctx context.Context, m *mints.CollectionMint) error {
	model, err := toMintModel(m)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().Model(model).
		On("CONFLICT (collection, stage) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("contract = EXCLUDED.contract").
		Set("kind = EXCLUDED.kind").
		Set("status = EXCLUDED.status").
		Set("standard = EXCLUDED.standard").
		Set("currency = EXCLUDED.currency").
		Set("price = EXCLUDED.price").
		Set("max_supply = EXCLUDED.max_supply").
		Set("details = EXCLUDED.details").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("indexer/bun: upsert mint: %w", err)
	}
	return nil
}

// GetMint returns the configuration for (collection, stage).
func (s *Store) GetMint(ctx context.Context, collection, stage string) (*mints.CollectionMint, error) {
	m := new(mintModel)
	err := s.db.NewSelect().Model(m).
		Where("collection = ?", collection).
		Where("stage = ?", stage).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, indexer.ErrMintNotFound
		}
		return nil, fmt.Errorf("indexer/bun: get mint: %w", err)
	}
	return fromMintModel(m)
}

// ListMintsByCollection returns every configuration known for a collection.
func (s *Store) ListMintsByCollection(ctx context.Context, collection string) ([]*mints.CollectionMint, error) {
	var models []mintModel
	err := s.db.NewSelect().Model(&models).
		Where("collection = ?", collection).
		Order("stage ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("indexer/bun: list mints by collection: %w", err)
	}
	return convertMints(models)
}

// ListMintsByStandard returns a collection's configurations carrying the
// given standard tag.
func (s *Store) ListMintsByStandard(ctx context.Context, collection, standard string) ([]*mints.CollectionMint, error) {
	var models []mintModel
	err := s.db.NewSelect().Model(&models).
		Where("collection = ?", collection).
		Where("standard = ?", standard).
		Order("stage ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("indexer/bun: list mints by standard: %w", err)
	}
	return convertMints(models)
}

func convertMints(models []mintModel) ([]*mints.CollectionMint, error) {
	out := make([]*mints.CollectionMint, 0, len(models))
	for i := range models {
		m, err := fromMintModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
