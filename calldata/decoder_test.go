package calldata

import (
	"errors"
	"log/slog"
	"math/big"
	"testing"
)

const (
	testCollection = "0xAbCd000000000000000000000000000000000001"
	testRecipient  = "0x1234000000000000000000000000000000000002"
	zeroHash       = "0x0000000000000000000000000000000000000000000000000000000000000000"
	liveHash       = "0x00000000000000000000000000000000000000000000000000000000000000ff"
)

func TestExtractBareSelector(t *testing.T) {
	d := NewDecoder(slog.Default())

	for _, sig := range []string{"mint()", "mint"} {
		params, err := d.Extract(testCollection, testRecipient, 1, sig, nil)
		if err != nil {
			t.Fatalf("Extract(%q): unexpected error: %v", sig, err)
		}
		if len(params) != 0 {
			t.Fatalf("Extract(%q): expected empty params, got %v", sig, params)
		}
	}
}

func TestExtractClassification(t *testing.T) {
	d := NewDecoder(slog.Default())

	tests := []struct {
		name      string
		signature string
		args      []any
		quantity  uint64
		want      []Param
	}{
		{
			name:      "quantity and recipient",
			signature: "mint(address,uint256)",
			args:      []any{testRecipient, big.NewInt(3)},
			quantity:  3,
			want: []Param{
				{Kind: KindRecipient, AbiType: "address"},
				{Kind: KindQuantity, AbiType: "uint256"},
			},
		},
		{
			name:      "collection address takes contract role",
			signature: "mintTo(address,uint64)",
			args:      []any{testCollection, uint64(7)},
			quantity:  7,
			want: []Param{
				{Kind: KindContract, AbiType: "address"},
				{Kind: KindQuantity, AbiType: "uint64"},
			},
		},
		{
			name:      "numeric slot not matching quantity stays unknown",
			signature: "mint(uint256)",
			args:      []any{big.NewInt(99)},
			quantity:  1,
			want: []Param{
				{Kind: KindUnknown, AbiType: "uint256", Value: big.NewInt(99)},
			},
		},
		{
			name:      "unknown string value is lowercased",
			signature: "mint(string,uint256)",
			args:      []any{"VIP-Phase", big.NewInt(2)},
			quantity:  2,
			want: []Param{
				{Kind: KindUnknown, AbiType: "string", Value: "vip-phase"},
				{Kind: KindQuantity, AbiType: "uint256"},
			},
		},
		{
			name:      "quantity as decimal string",
			signature: "mint(uint256)",
			args:      []any{"5"},
			quantity:  5,
			want: []Param{
				{Kind: KindQuantity, AbiType: "uint256"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Extract(testCollection, testRecipient, tc.quantity, tc.signature, tc.args)
			if err != nil {
				t.Fatalf("Extract: unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("param count: got %d, want %d (%v)", len(got), len(tc.want), got)
			}
			for i := range tc.want {
				if got[i].Kind != tc.want[i].Kind || got[i].AbiType != tc.want[i].AbiType {
					t.Errorf("slot %d: got %v/%q, want %v/%q",
						i, got[i].Kind, got[i].AbiType, tc.want[i].Kind, tc.want[i].AbiType)
				}
			}
		})
	}
}

func TestExtractComplexSlots(t *testing.T) {
	d := NewDecoder(slog.Default())

	t.Run("live bytes32 in tuple rejects", func(t *testing.T) {
		_, err := d.Extract(testCollection, testRecipient, 1,
			"mintWithProof(uint256,(bytes32,uint256))",
			[]any{big.NewInt(1), []any{liveHash, big.NewInt(0)}})
		if !errors.Is(err, ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("zeroed bytes32 tuple with empty proof array passes", func(t *testing.T) {
		params, err := d.Extract(testCollection, testRecipient, 4,
			"claim((bytes32,bytes32[]),uint256)",
			[]any{[]any{zeroHash, []any{}}, big.NewInt(4)})
		if err != nil {
			t.Fatalf("Extract: unexpected error: %v", err)
		}
		if len(params) != 2 {
			t.Fatalf("param count: got %d, want 2", len(params))
		}
		if params[0].Kind != KindUnknown {
			t.Errorf("tuple slot kind: got %v, want %v", params[0].Kind, KindUnknown)
		}
		if params[1].Kind != KindQuantity {
			t.Errorf("trailing slot kind: got %v, want %v", params[1].Kind, KindQuantity)
		}
	})

	t.Run("non-empty bytes32 array rejects", func(t *testing.T) {
		_, err := d.Extract(testCollection, testRecipient, 1,
			"claim(bytes32[],uint256)",
			[]any{[]any{liveHash}, big.NewInt(1)})
		if !errors.Is(err, ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})
}

type panicStringer struct{}

func (panicStringer) String() string { panic("boom") }

func TestExtractRecoversPerSlot(t *testing.T) {
	d := NewDecoder(slog.Default())

	params, err := d.Extract(testCollection, testRecipient, 2,
		"mint(address,uint256)",
		[]any{panicStringer{}, big.NewInt(2)})
	if err != nil {
		t.Fatalf("Extract: unexpected error: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("param count: got %d, want 2", len(params))
	}
	if params[0].Kind != KindUnknown {
		t.Errorf("panicking slot kind: got %v, want %v", params[0].Kind, KindUnknown)
	}
	if params[1].Kind != KindQuantity {
		t.Errorf("second slot kind: got %v, want %v", params[1].Kind, KindQuantity)
	}
}

func TestSplitTopLevel(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"address,uint256", []string{"address", "uint256"}},
		{"(bytes32,bytes32[]),uint256", []string{"(bytes32,bytes32[])", "uint256"}},
		{"uint256[2],address", []string{"uint256[2]", "address"}},
	}
	for _, tc := range tests {
		got := splitTopLevel(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("splitTopLevel(%q): got %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitTopLevel(%q)[%d]: got %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
