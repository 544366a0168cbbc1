package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/HungLV46/reservoir-indexer/metadata"
)

// Fetch claims up to count pending URIs from the front of the ledger List.
func (s *Store) Fetch(ctx context.Context, count int) ([]metadata.PendingURI, error) {
	if count <= 0 {
		return nil, nil
	}

	raw, err := s.client.LPopCount(ctx, metadataPendingKey, count).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("indexer/redis: fetch pending uris: %w", err)
	}

	items := make([]metadata.PendingURI, 0, len(raw))
	for _, entry := range raw {
		var item metadata.PendingURI
		if uErr := json.Unmarshal([]byte(entry), &item); uErr != nil {
			s.logger.Warn("dropping malformed pending uri entry", "error", uErr)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Add returns items to the front of the ledger List, preserving their
// relative order so a put-back batch is re-claimed first.
func (s *Store) Add(ctx context.Context, items ...metadata.PendingURI) error {
	if len(items) == 0 {
		return nil
	}

	// LPush reverses argument order, so push back-to-front.
	encoded := make([]interface{}, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		b, err := json.Marshal(items[i])
		if err != nil {
			return fmt.Errorf("indexer/redis: marshal pending uri: %w", err)
		}
		encoded = append(encoded, string(b))
	}

	if err := s.client.LPush(ctx, metadataPendingKey, encoded...).Err(); err != nil {
		return fmt.Errorf("indexer/redis: add pending uris: %w", err)
	}
	return nil
}

// Remaining reports how many items are still pending in the ledger.
func (s *Store) Remaining(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, metadataPendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("indexer/redis: count pending uris: %w", err)
	}
	return n, nil
}
