package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/HungLV46/reservoir-indexer/metadata"
)

// Fetch claims up to count pending URIs from the front of the ledger.
// Claimed rows are deleted in the same statement; SKIP LOCKED keeps
// concurrent drains from double-claiming.
func (s *Store) Fetch(ctx context.Context, count int) ([]metadata.PendingURI, error) {
	if count <= 0 {
		return nil, nil
	}

	var models []pendingURIModel
	sub := s.db.NewSelect().
		Model((*pendingURIModel)(nil)).
		Column("position").
		Order("position ASC").
		Limit(count).
		For("UPDATE SKIP LOCKED")

	_, err := s.db.NewDelete().
		Model(&models).
		Where("position IN (?)", sub).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("indexer/bun: fetch pending uris: %w", err)
	}

	// DELETE ... RETURNING row order is unspecified.
	sort.Slice(models, func(i, j int) bool {
		return models[i].Position < models[j].Position
	})

	items := make([]metadata.PendingURI, 0, len(models))
	for i := range models {
		items = append(items, fromPendingModel(&models[i]))
	}
	return items, nil
}

// Add returns items to the front of the ledger, preserving relative order
// so a put-back batch is re-claimed first.
func (s *Store) Add(ctx context.Context, items ...metadata.PendingURI) error {
	if len(items) == 0 {
		return nil
	}

	var minPos sql.NullInt64
	err := s.db.NewSelect().
		Model((*pendingURIModel)(nil)).
		ColumnExpr("MIN(position)").
		Scan(ctx, &minPos)
	if err != nil {
		return fmt.Errorf("indexer/bun: add pending uris min: %w", err)
	}

	base := int64(0)
	if minPos.Valid {
		base = minPos.Int64
	}

	now := time.Now().UTC()
	models := make([]pendingURIModel, len(items))
	for i, item := range items {
		models[i] = pendingURIModel{
			Position:  base - int64(len(items)) + int64(i),
			Contract:  item.Contract,
			TokenID:   item.TokenID,
			CreatedAt: now,
		}
	}

	if _, err := s.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return fmt.Errorf("indexer/bun: add pending uris: %w", err)
	}
	return nil
}

// Remaining reports how many items are still pending in the ledger.
func (s *Store) Remaining(ctx context.Context) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*pendingURIModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("indexer/bun: count pending uris: %w", err)
	}
	return int64(count), nil
}
