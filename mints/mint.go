// Package mints detects and maintains public mint configurations for NFT
// collections. A configuration records how to reconstruct a valid mint
// transaction for a collection: the target contract, the method signature,
// and a classified parameter template that replay can substitute quantity
// and recipient values into.
package mints

import (
	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/calldata"
	"github.com/HungLV46/reservoir-indexer/id"
)

const (
	// StandardUnknown tags configurations produced by the heuristic
	// decoder rather than a known minting-standard integration.
	StandardUnknown = "unknown"

	// StagePublicSale is the stage label for heuristically detected mints.
	StagePublicSale = "public-sale"

	// KindPublic is the only mint kind this detection path can produce.
	KindPublic = "public"

	// NativeCurrency is the zero address, denoting the chain's native token.
	NativeCurrency = "0x0000000000000000000000000000000000000000"
)

// Status values for a mint configuration.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// TxData is the replayable payload of a mint call.
type TxData struct {
	Signature string           `json:"signature"`
	Params    []calldata.Param `json:"params"`
}

// TxTemplate describes the transaction a minter must send.
type TxTemplate struct {
	To   string `json:"to"`
	Data TxData `json:"data"`
}

// Details carries the per-standard specifics of a configuration. For the
// heuristic standard that is just the transaction template.
type Details struct {
	Tx TxTemplate `json:"tx"`
}

// CollectionMint is one detected mint configuration. At most one exists per
// (collection, stage) pair; re-detection replaces the whole record rather
// than patching fields.
type CollectionMint struct {
	indexer.Entity

	ID         id.MintID `json:"id"`
	Collection string    `json:"collection"`
	Contract   string    `json:"contract"`
	Stage      string    `json:"stage"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Standard   string    `json:"standard"`
	Currency   string    `json:"currency"`
	// Price is the per-unit price as a decimal string in the currency's
	// smallest denomination.
	Price     string   `json:"price"`
	MaxSupply *int64   `json:"maxSupply,omitempty"`
	Details   Details  `json:"details"`
}
