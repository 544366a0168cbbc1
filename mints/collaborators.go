package mints

import (
	"context"
	"errors"
)

// ErrNoSignature is returned by a SignatureResolver when no known method
// signature matches the calldata's selector. Signature absence is not
// transient, so callers treat it as "nothing detected" rather than a retry.
var ErrNoSignature = errors.New("mints: no signature match")

// Transaction is the observed on-chain mint transaction handed to detection.
type Transaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Data  []byte `json:"data"`
	Value string `json:"value"`
}

// DecodedCall is a resolved method signature with its decoded arguments in
// declaration order.
type DecodedCall struct {
	Signature string
	Args      []any
}

// SignatureResolver maps raw calldata to a known method signature and its
// decoded arguments. Resolve returns ErrNoSignature when the selector is
// not in the resolver's dictionary.
type SignatureResolver interface {
	Resolve(ctx context.Context, data []byte) (*DecodedCall, error)
}

// MaxSupplyResolver looks up an optional maximum-supply hint for a
// collection. A nil result with nil error means no hint is available.
type MaxSupplyResolver interface {
	Resolve(ctx context.Context, collection string) (*int64, error)
}

// Simulator re-validates a configuration against current chain state and
// upserts the outcome. Implementations must be idempotent.
type Simulator interface {
	SimulateAndUpsert(ctx context.Context, m *CollectionMint) error
}
