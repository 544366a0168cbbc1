// Package calldata classifies decoded transaction calldata into replayable
// mint-call templates. Given a method signature, its decoded arguments, and
// the contextual values known from the observed transaction (minting
// contract, recipient, minted quantity), it assigns each top-level argument
// slot a semantic role — or refuses the whole shape when it cannot do so
// safely. The decoder is stateless and safe for concurrent use.
package calldata

import "errors"

// ErrUnsupported is returned when the calldata carries a complex argument
// shape the heuristics refuse to classify. The decoder deliberately rejects
// rather than guess: misclassifying a slot would produce a template that
// replays someone else's values.
var ErrUnsupported = errors.New("calldata: unsupported calldata shape")

// ParamKind is the semantic role assigned to an argument slot.
type ParamKind string

const (
	// KindQuantity marks a numeric slot carrying the mint quantity.
	// Replay substitutes the caller's desired amount here.
	KindQuantity ParamKind = "quantity"
	// KindContract marks an address slot carrying the minting contract.
	KindContract ParamKind = "contract"
	// KindRecipient marks an address slot carrying the token recipient.
	// Replay substitutes the new minter's address here.
	KindRecipient ParamKind = "recipient"
	// KindUnknown marks a slot the heuristics could not interpret. Its
	// literal decoded value is retained and replayed verbatim.
	KindUnknown ParamKind = "unknown"
)

// Param is one classified argument slot of a mint-call template.
// The slice order mirrors the original calldata argument order; replay
// substitutes values positionally, so order is part of the contract.
type Param struct {
	Kind    ParamKind `json:"kind"`
	AbiType string    `json:"abiType"`
	// Value holds the literal decoded argument for unknown slots and is
	// nil for slots replay overwrites (quantity, recipient) or derives
	// (contract).
	Value any `json:"value,omitempty"`
}
