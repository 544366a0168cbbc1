package indexer

import "github.com/HungLV46/reservoir-indexer/id"

// ID is the primary identifier type for all indexer entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
