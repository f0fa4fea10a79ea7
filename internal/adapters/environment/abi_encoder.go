package environment

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// ArgParser converts command line strings into the Go values go-ethereum's
// ABI packer expects for each argument type.
//
// Integers accept decimal or 0x-prefixed hex. Arrays are written as
// [a,b,c] and may be nested. Tuples are not supported.
type ArgParser struct{}

// NewArgParser creates a new ArgParser
func NewArgParser() *ArgParser {
	return &ArgParser{}
}

// ParseArgs parses one raw string per input
func (p *ArgParser) ParseArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(raw))
	}
	values := make([]any, len(inputs))
	for i, input := range inputs {
		v, err := parseValue(input.Type, raw[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		values[i] = v.Interface()
	}
	return values, nil
}

func parseValue(t abi.Type, raw string) (reflect.Value, error) {
	raw = strings.TrimSpace(raw)
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return reflect.Value{}, fmt.Errorf("%q is not a hex address", raw)
		}
		return reflect.ValueOf(common.HexToAddress(raw)), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%q is not a boolean", raw)
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		return reflect.ValueOf(raw), nil

	case abi.BytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%q is not 0x-prefixed hex: %w", raw, err)
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%q is not 0x-prefixed hex: %w", raw, err)
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("%d bytes do not fit in bytes%d", len(b), t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr, nil

	case abi.IntTy, abi.UintTy:
		return parseInteger(t, raw)

	case abi.SliceTy, abi.ArrayTy:
		items, err := splitList(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.T == abi.ArrayTy && len(items) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			v, err := parseValue(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(v)
		}
		return out, nil

	default:
		return reflect.Value{}, fmt.Errorf("type %s is not supported on the command line", t.String())
	}
}

func parseInteger(t abi.Type, raw string) (reflect.Value, error) {
	n, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%q is not an integer", raw)
	}
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return reflect.Value{}, fmt.Errorf("%s is negative", raw)
		}
		if n.BitLen() > t.Size {
			return reflect.Value{}, fmt.Errorf("%s overflows uint%d", raw, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return reflect.Value{}, fmt.Errorf("%s overflows int%d", raw, t.Size)
		}
	}

	goType := t.GetType()
	if goType == bigIntType {
		return reflect.ValueOf(n), nil
	}
	v := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v, nil
}

// splitList splits "[a,[b,c],d]" into its top level elements
func splitList(raw string) ([]string, error) {
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return nil, fmt.Errorf("%q is not a list, use [a,b,...]", raw)
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return nil, nil
	}

	var items []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets in %q", raw)
			}
		case ',':
			if depth == 0 {
				items = append(items, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in %q", raw)
	}
	return append(items, strings.TrimSpace(inner[start:])), nil
}

var _ usecase.ArgumentParser = (*ArgParser)(nil)
