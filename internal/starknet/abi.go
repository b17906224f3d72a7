package starknet

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Param is a named, typed function input or output.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function is an external or view entry point.
type Function struct {
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"state_mutability"`
}

// abiEntry covers the entry kinds we care about. Interfaces nest functions
// under items.
type abiEntry struct {
	Type string `json:"type"`
	Function
	Items []abiEntry `json:"items"`
}

// ABI indexes the functions of a Sierra contract class.
type ABI struct {
	functions map[string]Function
}

// ParseABI decodes a Sierra ABI. The ABI may be a JSON array or a string
// holding one, as returned by starknet_getClass.
func ParseABI(raw json.RawMessage) (*ABI, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding ABI string: %w", err)
		}
		raw = json.RawMessage(s)
	}

	var entries []abiEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding ABI: %w", err)
	}

	a := &ABI{functions: make(map[string]Function)}
	a.collect(entries)
	return a, nil
}

func (a *ABI) collect(entries []abiEntry) {
	for _, e := range entries {
		switch e.Type {
		case "function", "l1_handler":
			a.functions[e.Name] = e.Function
		case "interface":
			a.collect(e.Items)
		}
	}
}

// Function looks up an entry point by name.
func (a *ABI) Function(name string) (Function, bool) {
	if a == nil {
		return Function{}, false
	}
	f, ok := a.functions[name]
	return f, ok
}

// EncodeCalldata serializes args for method. With a known function the
// declared input types drive the encoding and the argument count is checked.
// Without one, every argument becomes a single felt.
func (a *ABI) EncodeCalldata(method string, args ...any) ([]string, error) {
	f, ok := a.Function(method)
	if !ok {
		out := make([]string, 0, len(args))
		for i, arg := range args {
			v, err := feltValue(arg)
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", method, i, err)
			}
			out = append(out, FormatFelt(v))
		}
		return out, nil
	}

	if len(args) != len(f.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", method, len(f.Inputs), len(args))
	}

	var out []string
	for i, in := range f.Inputs {
		felts, err := encodeValue(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("%s argument %s: %w", method, in.Name, err)
		}
		out = append(out, felts...)
	}
	return out, nil
}

func encodeValue(typ string, arg any) ([]string, error) {
	switch {
	case strings.HasSuffix(typ, "::u256"):
		v, err := feltValue(arg)
		if err != nil {
			return nil, err
		}
		if v.Cmp(maxU256) > 0 {
			return nil, fmt.Errorf("value %s overflows u256", v)
		}
		low := new(big.Int).And(v, mask128)
		high := new(big.Int).Rsh(v, 128)
		return []string{FormatFelt(low), FormatFelt(high)}, nil
	case typ == "core::bool":
		if b, ok := arg.(bool); ok {
			if b {
				return []string{"0x1"}, nil
			}
			return []string{"0x0"}, nil
		}
		v, err := feltValue(arg)
		if err != nil {
			return nil, err
		}
		if v.Cmp(big.NewInt(1)) > 0 {
			return nil, fmt.Errorf("value %s is not a bool", v)
		}
		return []string{FormatFelt(v)}, nil
	default:
		v, err := feltValue(arg)
		if err != nil {
			return nil, err
		}
		return []string{FormatFelt(v)}, nil
	}
}

func feltValue(arg any) (*big.Int, error) {
	switch v := arg.(type) {
	case string:
		return ParseFelt(v)
	case *big.Int:
		if v.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s", v)
		}
		return new(big.Int).Set(v), nil
	case int:
		return nonNegative(int64(v))
	case int64:
		return nonNegative(v)
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case bool:
		if v {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}

func nonNegative(v int64) (*big.Int, error) {
	if v < 0 {
		return nil, fmt.Errorf("negative value %d", v)
	}
	return big.NewInt(v), nil
}

// DecodeBool interprets a single-felt bool result.
func DecodeBool(result []string) (bool, error) {
	if len(result) == 0 {
		return false, fmt.Errorf("empty result")
	}
	v, err := ParseFelt(result[0])
	if err != nil {
		return false, err
	}
	switch {
	case v.Sign() == 0:
		return false, nil
	case v.Cmp(big.NewInt(1)) == 0:
		return true, nil
	default:
		return false, fmt.Errorf("value %s is not a bool", result[0])
	}
}
