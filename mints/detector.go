package mints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/calldata"
	"github.com/HungLV46/reservoir-indexer/id"
)

// Detector turns observed mint transactions into CollectionMint
// configurations. It is stateless; all storage happens in the detection job.
type Detector struct {
	signatures SignatureResolver
	supply     MaxSupplyResolver
	decoder    *calldata.Decoder
	logger     *slog.Logger
}

// NewDetector wires a detector from its collaborators. supply may be nil
// when no max-supply source is available.
func NewDetector(signatures SignatureResolver, supply MaxSupplyResolver, decoder *calldata.Decoder, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		signatures: signatures,
		supply:     supply,
		decoder:    decoder,
		logger:     logger.With("component", "mint-detector"),
	}
}

// Detect attempts to derive a public mint configuration from tx.
// pricePerUnit is the native-token price per minted unit as a decimal
// string; unitsMinted is the quantity the transaction produced.
//
// A (nil, nil) return means nothing was detected: either no signature
// matched the calldata or the calldata shape was unsupported. Both are
// expected outcomes, not errors, so callers must not retry on them.
func (d *Detector) Detect(ctx context.Context, collection string, tx Transaction, pricePerUnit string, unitsMinted uint64) (*CollectionMint, error) {
	var maxSupply *int64
	if d.supply != nil {
		hint, err := d.supply.Resolve(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("resolving max supply: %w", err)
		}
		maxSupply = hint
	}

	call, err := d.signatures.Resolve(ctx, tx.Data)
	if err != nil {
		if errors.Is(err, ErrNoSignature) {
			d.logger.Debug("no signature match for mint calldata",
				slog.String("collection", collection),
				slog.String("tx", tx.Hash))
			return nil, nil
		}
		return nil, fmt.Errorf("resolving signature: %w", err)
	}

	params, err := d.decoder.Extract(collection, tx.From, unitsMinted, call.Signature, call.Args)
	if err != nil {
		if errors.Is(err, calldata.ErrUnsupported) {
			d.logger.Debug("unsupported mint calldata shape",
				slog.String("collection", collection),
				slog.String("tx", tx.Hash),
				slog.String("signature", call.Signature))
			return nil, nil
		}
		return nil, fmt.Errorf("classifying calldata: %w", err)
	}

	m := &CollectionMint{
		Entity:     indexer.NewEntity(),
		ID:         id.NewMintID(),
		Collection: collection,
		Contract:   tx.To,
		Stage:      StagePublicSale,
		Kind:       KindPublic,
		Status:     StatusOpen,
		Standard:   StandardUnknown,
		Currency:   NativeCurrency,
		Price:      pricePerUnit,
		MaxSupply:  maxSupply,
		Details: Details{
			Tx: TxTemplate{
				To: tx.To,
				Data: TxData{
					Signature: call.Signature,
					Params:    params,
				},
			},
		},
	}

	d.logger.Info("detected public mint configuration",
		slog.String("collection", collection),
		slog.String("contract", tx.To),
		slog.String("signature", call.Signature),
		slog.Int("params", len(params)))
	return m, nil
}
