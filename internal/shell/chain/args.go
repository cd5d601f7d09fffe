package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// =============================================================================
// Argument Conversion
// =============================================================================

// ConvertArgs converts string argument values into the Go values the ABI
// encoder expects for each input.
//
// Accepted forms:
//   - address: 0x-prefixed 20-byte hex
//   - bool: strconv.ParseBool forms
//   - intN/uintN: decimal or 0x-prefixed hex
//   - bytes, bytesN: 0x-prefixed hex (bytesN must be exactly N bytes)
//   - string: as-is
//   - T[] and T[k]: JSON array of strings, e.g. ["0x01..","0x02.."]
func ConvertArgs(inputs abi.Arguments, values []string) ([]any, error) {
	if len(inputs) != len(values) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrArgCount, len(inputs), len(values))
	}
	out := make([]any, len(values))
	for i, in := range inputs {
		v, err := convertArg(in.Type, values[i])
		if err != nil {
			name := in.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, in.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(t abi.Type, v string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%w: %q is not an address", ErrInvalidArg, v)
		}
		return common.HexToAddress(v), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrInvalidArg, v)
		}
		return b, nil

	case abi.StringTy:
		return v, nil

	case abi.IntTy, abi.UintTy:
		return convertInteger(t, v)

	case abi.BytesTy:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not hex bytes", ErrInvalidArg, v)
		}
		return b, nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(v)
		if err != nil || len(b) != t.Size {
			return nil, fmt.Errorf("%w: %q is not %d hex bytes", ErrInvalidArg, v, t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		return convertList(t, v)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArg, t.String())
	}
}

func convertInteger(t abi.Type, v string) (any, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 0)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidArg, v)
	}
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidArg, v)
	}
	if n.BitLen() > t.Size {
		return nil, fmt.Errorf("%w: %q overflows %s", ErrInvalidArg, v, t.String())
	}

	// Sizes above 64 bits are encoded from *big.Int.
	rt := t.GetType()
	if rt == reflect.TypeOf((*big.Int)(nil)) {
		return n, nil
	}

	val := reflect.New(rt).Elem()
	if t.T == abi.UintTy {
		if !n.IsUint64() || val.OverflowUint(n.Uint64()) {
			return nil, fmt.Errorf("%w: %q overflows %s", ErrInvalidArg, v, t.String())
		}
		val.SetUint(n.Uint64())
	} else {
		if !n.IsInt64() || val.OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("%w: %q overflows %s", ErrInvalidArg, v, t.String())
		}
		val.SetInt(n.Int64())
	}
	return val.Interface(), nil
}

func convertList(t abi.Type, v string) (any, error) {
	var items []string
	if err := json.Unmarshal([]byte(v), &items); err != nil {
		return nil, fmt.Errorf("%w: %q is not a JSON array of strings", ErrInvalidArg, v)
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("%w: want %d elements, got %d", ErrInvalidArg, t.Size, len(items))
	}

	var list reflect.Value
	if t.T == abi.SliceTy {
		list = reflect.MakeSlice(t.GetType(), len(items), len(items))
	} else {
		list = reflect.New(t.GetType()).Elem()
	}
	for i, item := range items {
		elem, err := convertArg(*t.Elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		list.Index(i).Set(reflect.ValueOf(elem))
	}
	return list.Interface(), nil
}
