package mints_test

import (
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/HungLV46/reservoir-indexer/calldata"
	"github.com/HungLV46/reservoir-indexer/mints"
)

func TestDetectionJobUpsertsAndNotifies(t *testing.T) {
	minter := "0x3e11e200000000000000000000000000000000a1"
	sigs := &fakeSignatureResolver{call: &mints.DecodedCall{
		Signature: "mint(uint256)",
		Args:      []any{big.NewInt(1)},
	}}
	detector := mints.NewDetector(sigs, nil, calldata.NewDecoder(slog.Default()), slog.Default())
	store := &fakeMintStore{}

	var notified *mints.CollectionMint
	def := mints.DetectionJob(detector, store, func(ctx context.Context, m *mints.CollectionMint) {
		notified = m
	}, slog.Default())

	if def.Name != mints.JobMintDetect {
		t.Fatalf("definition name: got %q", def.Name)
	}
	if def.Opts.Queue != mints.QueueMintDetection {
		t.Fatalf("definition queue: got %q", def.Opts.Queue)
	}

	payload := mints.DetectPayload{
		Collection:   "0xc0",
		Tx:           mints.Transaction{From: minter, To: "0xc0", Data: []byte{0x01}},
		PricePerUnit: "0",
		UnitsMinted:  1,
	}
	if _, err := def.Handler(context.Background(), payload); err != nil {
		t.Fatalf("handler: unexpected error: %v", err)
	}

	stored, err := store.GetMint(context.Background(), "0xc0", mints.StagePublicSale)
	if err != nil {
		t.Fatalf("GetMint: %v", err)
	}
	if notified == nil || notified.ID != stored.ID {
		t.Fatalf("notify hook: got %+v, stored %+v", notified, stored)
	}
}

func TestDetectionJobSkipsUpsertWhenNothingDetected(t *testing.T) {
	sigs := &fakeSignatureResolver{err: mints.ErrNoSignature}
	detector := mints.NewDetector(sigs, nil, calldata.NewDecoder(slog.Default()), slog.Default())
	store := &fakeMintStore{}

	def := mints.DetectionJob(detector, store, nil, slog.Default())
	if _, err := def.Handler(context.Background(), mints.DetectPayload{
		Collection: "0xc0",
		Tx:         mints.Transaction{Data: []byte{0x01}},
	}); err != nil {
		t.Fatalf("handler: unexpected error: %v", err)
	}

	if _, err := store.GetMint(context.Background(), "0xc0", mints.StagePublicSale); err == nil {
		t.Fatal("expected no stored configuration")
	}
}
