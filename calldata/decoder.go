package calldata

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

// Decoder turns a decoded mint call into a classified parameter template.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder returns a decoder that logs classification anomalies to logger.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger.With("component", "calldata")}
}

// Extract classifies the decoded arguments of a mint call against the values
// observed on chain. collection and recipient are lowercase-compared hex
// addresses; quantity is the number of tokens the transaction minted;
// signature is the canonical method signature (e.g. "mint(address,uint256)");
// args are the decoded argument values in declaration order.
//
// A bare selector call (no arguments) yields an empty, valid parameter list.
// Complex argument shapes are admitted only when they are provably inert:
// every bytes32 sub-field must be all-zero and every bytes32[] sub-field
// empty, otherwise Extract returns ErrUnsupported. Classification itself is
// best-effort: a panic while inspecting one slot marks that slot unknown and
// continues with the rest.
func (d *Decoder) Extract(collection, recipient string, quantity uint64, signature string, args []any) ([]Param, error) {
	types := signatureTypes(signature)
	if len(types) == 0 || len(args) == 0 {
		// Bare selector call: nothing to substitute, nothing to reject.
		return []Param{}, nil
	}

	for i, t := range types {
		if !isComplexType(t) {
			continue
		}
		var arg any
		if i < len(args) {
			arg = args[i]
		}
		if !complexSlotInert(t, arg) {
			d.logger.Debug("rejecting calldata with live complex slot",
				"signature", signature, "slot", i, "abi_type", t)
			return nil, ErrUnsupported
		}
	}

	params := make([]Param, 0, len(types))
	for i, t := range types {
		var arg any
		if i < len(args) {
			arg = args[i]
		}
		params = append(params, d.classifySlot(t, arg, collection, recipient, quantity, signature, i))
	}
	return params, nil
}

// classifySlot assigns a semantic role to one argument slot. Any panic while
// inspecting the value is swallowed so a single malformed slot cannot abort
// the extraction of its siblings.
func (d *Decoder) classifySlot(abiType string, value any, collection, recipient string, quantity uint64, signature string, index int) (p Param) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("recovered while classifying calldata slot",
				"signature", signature, "slot", index, "abi_type", abiType, "panic", r)
			p = Param{Kind: KindUnknown, AbiType: abiType}
		}
	}()

	switch {
	case isNumericType(abiType):
		if matchesQuantity(value, quantity) {
			return Param{Kind: KindQuantity, AbiType: abiType}
		}
	case abiType == "address":
		addr := strings.ToLower(asString(value))
		switch addr {
		case strings.ToLower(collection):
			return Param{Kind: KindContract, AbiType: abiType}
		case strings.ToLower(recipient):
			return Param{Kind: KindRecipient, AbiType: abiType}
		}
	}

	if s, ok := value.(string); ok {
		value = strings.ToLower(s)
	}
	return Param{Kind: KindUnknown, AbiType: abiType, Value: value}
}

// ---------------------------------------------------------------------------
// Signature tokenization
// ---------------------------------------------------------------------------

// signatureTypes extracts the top-level argument types from a canonical
// method signature. Tuples and nested arrays stay grouped as single slots.
func signatureTypes(signature string) []string {
	open := strings.IndexByte(signature, '(')
	end := strings.LastIndexByte(signature, ')')
	if open < 0 || end <= open {
		return nil
	}
	inner := signature[open+1 : end]
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	return splitTopLevel(inner)
}

// splitTopLevel splits a comma-separated type list at depth zero, keeping
// parenthesized tuples and bracketed array suffixes intact.
func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// ---------------------------------------------------------------------------
// Complex-slot admission
// ---------------------------------------------------------------------------

// isComplexType reports whether a slot carries a tuple, array, or raw-bytes
// shape that positional replay cannot safely substitute into.
func isComplexType(t string) bool {
	return strings.ContainsAny(t, "([") || strings.HasPrefix(t, "bytes") || strings.Contains(t, "tuple")
}

// complexSlotInert reports whether a complex slot is provably inert: after
// isolating its tuple sub-fields, every bytes32 must decode to the all-zero
// value and every bytes32[] to an empty array. Sub-fields of other types
// pass unchecked; replay carries them verbatim.
func complexSlotInert(abiType string, value any) bool {
	fields, values := tupleFields(abiType, value)
	for i, f := range fields {
		var fv any
		if i < len(values) {
			fv = values[i]
		}
		switch f {
		case "bytes32":
			if !isZeroBytes32(fv) {
				return false
			}
		case "bytes32[]":
			if !isEmptyArray(fv) {
				return false
			}
		}
	}
	return true
}

// tupleFields isolates the sub-fields of a complex slot. A tuple yields its
// component types paired with the component values; a non-tuple complex slot
// is its own single sub-field.
func tupleFields(abiType string, value any) ([]string, []any) {
	abiType = strings.TrimPrefix(abiType, "tuple")
	if strings.HasPrefix(abiType, "(") {
		end := strings.LastIndexByte(abiType, ')')
		if end > 0 {
			fields := splitTopLevel(abiType[1:end])
			values, _ := value.([]any)
			return fields, values
		}
	}
	return []string{abiType}, []any{value}
}

func isZeroBytes32(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimPrefix(strings.ToLower(x), "0x")
		for _, c := range s {
			if c != '0' {
				return false
			}
		}
		return true
	case []byte:
		for _, b := range x {
			if b != 0 {
				return false
			}
		}
		return true
	case [32]byte:
		return x == [32]byte{}
	default:
		return false
	}
}

func isEmptyArray(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case [][]byte:
		return len(x) == 0
	case [][32]byte:
		return len(x) == 0
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Value comparison
// ---------------------------------------------------------------------------

func isNumericType(t string) bool {
	if strings.ContainsAny(t, "([") {
		return false
	}
	return strings.HasPrefix(t, "uint") || strings.HasPrefix(t, "int")
}

// matchesQuantity compares a decoded numeric argument against the observed
// mint quantity across the representations ABI decoders commonly emit.
func matchesQuantity(v any, quantity uint64) bool {
	want := new(big.Int).SetUint64(quantity)
	switch x := v.(type) {
	case *big.Int:
		return x != nil && x.Cmp(want) == 0
	case big.Int:
		return x.Cmp(want) == 0
	case uint64:
		return x == quantity
	case uint32:
		return uint64(x) == quantity
	case uint:
		return uint64(x) == quantity
	case int64:
		return x >= 0 && uint64(x) == quantity
	case int:
		return x >= 0 && uint64(x) == quantity
	case float64:
		return x >= 0 && x == float64(quantity)
	case string:
		n, ok := new(big.Int).SetString(strings.TrimPrefix(x, "0x"), base(x))
		return ok && n.Cmp(want) == 0
	default:
		return false
	}
}

func base(s string) int {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return 16
	}
	return 10
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case []byte:
		return "0x" + hex.EncodeToString(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
