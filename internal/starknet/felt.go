// Package starknet is the transport layer for Gateway operations: a rate
// limited JSON-RPC reader, an sncast-backed submitter, compiled artifact
// loading and calldata encoding.
package starknet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// maxShortString is the number of ASCII bytes that fit in one felt.
const maxShortString = 31

var (
	// mask250 keeps the low 250 bits of a keccak digest.
	mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

	// mask128 splits a u256 into its low and high halves.
	mask128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ParseFelt parses a 0x-prefixed hex or decimal string.
func ParseFelt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty felt")
	}
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid felt %q", s)
	}
	return v, nil
}

// FormatFelt renders v as lowercase 0x-prefixed hex without padding.
func FormatFelt(v *big.Int) string {
	return "0x" + v.Text(16)
}

// FeltEqual compares two felt strings by value.
func FeltEqual(a, b string) bool {
	x, err := ParseFelt(a)
	if err != nil {
		return false
	}
	y, err := ParseFelt(b)
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}

// EncodeShortString packs an ASCII string of at most 31 characters into a felt.
func EncodeShortString(s string) (string, error) {
	if len(s) > maxShortString {
		return "", fmt.Errorf("short string %q exceeds %d characters", s, maxShortString)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return "", fmt.Errorf("short string %q is not ASCII", s)
		}
	}
	if s == "" {
		return "0x0", nil
	}
	return "0x" + hex.EncodeToString([]byte(s)), nil
}

// DecodeShortString unpacks a felt into the ASCII string it encodes.
func DecodeShortString(felt string) (string, error) {
	v, err := ParseFelt(felt)
	if err != nil {
		return "", err
	}
	b := v.Bytes()
	if len(b) > maxShortString {
		return "", fmt.Errorf("felt %s is too large for a short string", felt)
	}
	return string(b), nil
}

// Selector returns the entry point selector for a function name:
// keccak256(name) truncated to 250 bits.
func Selector(name string) string {
	digest := new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
	return FormatFelt(digest.And(digest, mask250))
}

// ShortAddress abbreviates an address for tables, e.g. 0x053c...68a8.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
