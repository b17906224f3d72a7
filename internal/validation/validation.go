// Package validation provides input validation for gatewayctl.
package validation

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MaxBPS is the basis-point value representing 100%.
const MaxBPS = 100000

// feltPrime is the Starknet field modulus: 2^251 + 17*2^192 + 1
var feltPrime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 251)
	p.Add(p, new(big.Int).Mul(big.NewInt(17), new(big.Int).Lsh(big.NewInt(1), 192)))
	return p.Add(p, big.NewInt(1))
}()

// Network identifiers: uppercase alphanumeric with underscores, 2-32 chars
var networkIDRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,30}[A-Z0-9]$`)

// Token symbols: alphanumeric, 1-16 chars
var tokenSymbolRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

// ValidateNetworkID validates a network identifier such as SN_SEPOLIA
func ValidateNetworkID(id string) error {
	if len(id) < 2 {
		return errors.New("network id too short (min 2 chars)")
	}
	if len(id) > 32 {
		return errors.New("network id too long (max 32 chars)")
	}
	if !networkIDRegex.MatchString(id) {
		return errors.New("invalid network id: must be uppercase alphanumeric with underscores, starting with a letter")
	}
	if strings.Contains(id, "__") {
		return errors.New("invalid characters in network id")
	}
	return nil
}

// ValidateTokenSymbol validates a token symbol such as USDC
func ValidateTokenSymbol(symbol string) error {
	if !tokenSymbolRegex.MatchString(symbol) {
		return fmt.Errorf("invalid token symbol %q: must be 1-16 alphanumeric characters", symbol)
	}
	return nil
}

// ValidateAddress validates a Starknet address (a felt written as 0x-prefixed hex)
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("address is empty")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	digits := addr[2:]
	if len(digits) == 0 || len(digits) > 64 {
		return errors.New("invalid address length: must be 0x followed by 1 to 64 hex characters")
	}
	// Check hex characters
	for _, c := range digits {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	v, _ := new(big.Int).SetString(digits, 16)
	if v.Cmp(feltPrime) >= 0 {
		return errors.New("invalid address: exceeds the Starknet field size")
	}
	return nil
}

// ValidateBPS validates a basis-point value (100000 = 100%)
func ValidateBPS(value int64) error {
	if value < 0 || value > MaxBPS {
		return fmt.Errorf("basis points %d out of range [0, %d]", value, MaxBPS)
	}
	return nil
}

// ValidateURL validates an http(s) URL
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("invalid URL: scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("invalid URL: missing host")
	}
	return nil
}

// ValidateVersion validates a semantic version string
func ValidateVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("version cannot be empty")
	}

	// semver library expects version to start with 'v'
	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid semver version: must be in format X.Y.Z or X.Y.Z-prerelease")
	}

	parts := strings.SplitN(normalized, "-", 2)
	if strings.Count(parts[0], ".") < 2 {
		return errors.New("invalid semver version: must be in format X.Y.Z (major.minor.patch)")
	}

	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// CompareVersions compares two versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	n1 := "v" + NormalizeVersion(v1)
	n2 := "v" + NormalizeVersion(v2)
	return semver.Compare(n1, n2)
}

// NormalizeAddress lowercases an address and strips leading zeros so two
// spellings of the same felt compare equal.
func NormalizeAddress(addr string) string {
	digits := strings.TrimLeft(strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")), "0")
	if digits == "" {
		return "0x0"
	}
	return "0x" + digits
}
