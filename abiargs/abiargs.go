// Package abiargs converts JSON call arguments into the Go values the
// go-ethereum ABI packer expects.
package abiargs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Decode reads a JSON array of arguments for method. An empty input is
// treated as no arguments.
func Decode(method abi.Method, data []byte) ([]interface{}, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		data = []byte("[]")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON array: %w", err)
	}
	return Convert(method.Inputs, raw)
}

func Convert(inputs abi.Arguments, raw []json.RawMessage) ([]interface{}, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(raw))
	}
	out := make([]interface{}, len(inputs))
	for i, input := range inputs {
		v, err := convert(input.Type, raw[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type, err)
		}
		out[i] = v.Interface()
	}
	return out, nil
}

func convert(t abi.Type, raw json.RawMessage) (reflect.Value, error) {
	switch t.T {
	case abi.AddressTy:
		s, err := unquote(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if !common.IsHexAddress(s) {
			return reflect.Value{}, fmt.Errorf("invalid address %q", s)
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil

	case abi.BoolTy:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		s, err := unquote(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s), nil

	case abi.BytesTy:
		b, err := decodeHex(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy, abi.HashTy:
		b, err := decodeHex(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		arr := reflect.New(t.GetType()).Elem()
		if len(b) != arr.Len() {
			return reflect.Value{}, fmt.Errorf("expected %d bytes, got %d", arr.Len(), len(b))
		}
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr, nil

	case abi.IntTy, abi.UintTy:
		n, err := parseInteger(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := checkRange(n, t.T == abi.UintTy, t.Size); err != nil {
			return reflect.Value{}, err
		}
		target := t.GetType()
		switch target.Kind() {
		case reflect.Ptr:
			return reflect.ValueOf(n), nil
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return reflect.ValueOf(n.Uint64()).Convert(target), nil
		default:
			return reflect.ValueOf(n.Int64()).Convert(target), nil
		}

	case abi.SliceTy, abi.ArrayTy:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return reflect.Value{}, fmt.Errorf("expected a JSON array: %w", err)
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			if len(items) != t.Size {
				return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
			}
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			v, err := convert(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(v)
		}
		return out, nil

	case abi.TupleTy:
		items, err := tupleItems(t, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t.GetType()).Elem()
		for i, elem := range t.TupleElems {
			v, err := convert(*elem, items[i])
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", t.TupleRawNames[i], err)
			}
			out.Field(i).Set(v)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported type %s", t)
}

// tupleItems accepts either a positional array or an object keyed by
// component name.
func tupleItems(t abi.Type, raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		if len(items) != len(t.TupleElems) {
			return nil, fmt.Errorf("expected %d components, got %d", len(t.TupleElems), len(items))
		}
		return items, nil
	}
	var named map[string]json.RawMessage
	if err := json.Unmarshal(raw, &named); err != nil {
		return nil, fmt.Errorf("expected a JSON array or object: %w", err)
	}
	items = make([]json.RawMessage, len(t.TupleElems))
	for i, name := range t.TupleRawNames {
		v, ok := named[name]
		if !ok {
			return nil, fmt.Errorf("missing component %q", name)
		}
		items[i] = v
	}
	return items, nil
}

func unquote(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a JSON string: %w", err)
	}
	return s, nil
}

func decodeHex(raw json.RawMessage) ([]byte, error) {
	s, err := unquote(raw)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// parseInteger accepts JSON numbers and strings holding a decimal or
// 0x-prefixed hex integer.
func parseInteger(raw json.RawMessage) (*big.Int, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		s, err := unquote(raw)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(s)
	}
	n, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %s", text)
	}
	return n, nil
}

func checkRange(n *big.Int, unsigned bool, bits int) error {
	if unsigned {
		if n.Sign() < 0 {
			return fmt.Errorf("negative value %s for uint%d", n, bits)
		}
		if n.BitLen() > bits {
			return fmt.Errorf("value %s overflows uint%d", n, bits)
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	min := new(big.Int).Neg(limit)
	if n.Cmp(min) < 0 || n.Cmp(limit) >= 0 {
		return fmt.Errorf("value %s overflows int%d", n, bits)
	}
	return nil
}
