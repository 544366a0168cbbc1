package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/metadata"
	"github.com/HungLV46/reservoir-indexer/mints"
)

// ── Mint configuration model ──────────────────────────────────────

type mintModel struct {
	bun.BaseModel `bun:"table:indexer_mints"`

	ID         string          `bun:"id,pk"`
	Collection string          `bun:"collection,notnull"`
	Contract   string          `bun:"contract,notnull"`
	Stage      string          `bun:"stage,notnull"`
	Kind       string          `bun:"kind,notnull"`
	Status     string          `bun:"status,notnull"`
	Standard   string          `bun:"standard,notnull"`
	Currency   string          `bun:"currency,notnull"`
	Price      string          `bun:"price,notnull,default:'0'"`
	MaxSupply  *int64          `bun:"max_supply"`
	Details    json.RawMessage `bun:"details,notnull,type:jsonb"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

func toMintModel(m *mints.CollectionMint) (*mintModel, error) {
	details, err := json.Marshal(m.Details)
	if err != nil {
		return nil, fmt.Errorf("indexer/bun: marshal mint details: %w", err)
	}
	return &mintModel{
		ID:         m.ID.String(),
		Collection: m.Collection,
		Contract:   m.Contract,
		Stage:      m.Stage,
		Kind:       m.Kind,
		Status:     m.Status,
		Standard:   m.Standard,
		Currency:   m.Currency,
		Price:      m.Price,
		MaxSupply:  m.MaxSupply,
		Details:    details,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

func fromMintModel(m *mintModel) (*mints.CollectionMint, error) {
	parsedID, err := id.ParseMintID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("indexer/bun: parse mint id %q: %w", m.ID, err)
	}

	var details mints.Details
	if len(m.Details) > 0 {
		if uErr := json.Unmarshal(m.Details, &details); uErr != nil {
			return nil, fmt.Errorf("indexer/bun: unmarshal mint details: %w", uErr)
		}
	}

	return &mints.CollectionMint{
		Entity: indexer.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		Collection: m.Collection,
		Contract:   m.Contract,
		Stage:      m.Stage,
		Kind:       m.Kind,
		Status:     m.Status,
		Standard:   m.Standard,
		Currency:   m.Currency,
		Price:      m.Price,
		MaxSupply:  m.MaxSupply,
		Details:    details,
	}, nil
}

// ── Pending URI model ─────────────────────────────────────────────

// pendingURIModel rows form the metadata work ledger. Position orders the
// queue front-to-back; put-back batches get positions below the current
// minimum so they are claimed first.
type pendingURIModel struct {
	bun.BaseModel `bun:"table:indexer_pending_uris"`

	Position  int64     `bun:"position,pk"`
	Contract  string    `bun:"contract,notnull"`
	TokenID   string    `bun:"token_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func fromPendingModel(m *pendingURIModel) metadata.PendingURI {
	return metadata.PendingURI{
		Contract: m.Contract,
		TokenID:  m.TokenID,
	}
}
