// Package networks holds the network registry: endpoints, supported tokens and
// fee schedules per Starknet network, plus the YAML store they are loaded from
// and the deployed Gateway address recorded back into it.
package networks

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pendergraft/gatewayctl/internal/validation"
)

// Common errors returned by the registry and store.
var (
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrNoRPCEndpoint       = errors.New("network has no RPC endpoint")
	ErrInvalidConfig       = errors.New("invalid network configuration")
	ErrPersistenceConflict = errors.New("cannot locate network entry in store")
)

// LocalFees is the fee schedule applied to local transfers.
type LocalFees struct {
	SenderToProvider     int64 `yaml:"sender_to_provider"`
	ProviderToAggregator int64 `yaml:"provider_to_aggregator"`
}

// FXFees is the fee schedule applied to FX transfers.
type FXFees struct {
	SenderToAggregator   int64 `yaml:"sender_to_aggregator"`
	ProviderToAggregator int64 `yaml:"provider_to_aggregator"`
}

// TokenConfig describes a token the Gateway accepts on a network.
type TokenConfig struct {
	Symbol  string    `yaml:"-"`
	Address string    `yaml:"address"`
	Local   LocalFees `yaml:"local"`
	FX      FXFees    `yaml:"fx"`
}

// BPS returns the four fee values in the order the contract expects them.
func (t TokenConfig) BPS() [4]int64 {
	return [4]int64{
		t.Local.SenderToProvider,
		t.Local.ProviderToAggregator,
		t.FX.SenderToAggregator,
		t.FX.ProviderToAggregator,
	}
}

// FormatBPS renders a fee as a percentage; 100000 basis points is 100%.
func FormatBPS(v int64) string {
	return strconv.FormatFloat(float64(v)/1000, 'f', -1, 64) + "%"
}

// Validate checks the token address and that every fee is within [0, MaxBPS].
func (t TokenConfig) Validate() error {
	if err := validation.ValidateTokenSymbol(t.Symbol); err != nil {
		return err
	}
	if err := validation.ValidateAddress(t.Address); err != nil {
		return fmt.Errorf("token %s: %w", t.Symbol, err)
	}
	names := [4]string{"local.sender_to_provider", "local.provider_to_aggregator", "fx.sender_to_aggregator", "fx.provider_to_aggregator"}
	for i, v := range t.BPS() {
		if err := validation.ValidateBPS(v); err != nil {
			return fmt.Errorf("token %s: %s: %w", t.Symbol, names[i], err)
		}
	}
	return nil
}

// NetworkConfig is a single network entry.
type NetworkConfig struct {
	ID              string
	RPCURL          string
	RPCURLEnv       string
	ExplorerURL     string
	VerifierNetwork string
	Tokens          []TokenConfig
	GatewayContract string
}

// Validate checks the structural invariants of a network entry. A missing RPC
// endpoint is not a validation error; it is reported when the network is used.
func (n NetworkConfig) Validate() error {
	if err := validation.ValidateNetworkID(n.ID); err != nil {
		return err
	}
	if n.RPCURL != "" {
		if err := validation.ValidateURL(n.RPCURL); err != nil {
			return fmt.Errorf("rpc url: %w", err)
		}
	}
	if err := validation.ValidateURL(n.ExplorerURL); err != nil {
		return fmt.Errorf("explorer url: %w", err)
	}
	if n.GatewayContract != "" {
		if err := validation.ValidateAddress(n.GatewayContract); err != nil {
			return fmt.Errorf("gateway contract: %w", err)
		}
	}

	seen := make(map[string]bool, len(n.Tokens))
	for _, t := range n.Tokens {
		if seen[t.Symbol] {
			return fmt.Errorf("duplicate token %s", t.Symbol)
		}
		seen[t.Symbol] = true
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Endpoint returns the RPC URL, failing when none is configured.
func (n NetworkConfig) Endpoint() (string, error) {
	if n.RPCURL == "" {
		if n.RPCURLEnv != "" {
			return "", fmt.Errorf("%w: %s (set %s)", ErrNoRPCEndpoint, n.ID, n.RPCURLEnv)
		}
		return "", fmt.Errorf("%w: %s", ErrNoRPCEndpoint, n.ID)
	}
	return n.RPCURL, nil
}

// TxURL returns the explorer link for a transaction.
func (n NetworkConfig) TxURL(hash string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash
}

// ContractURL returns the explorer link for a contract.
func (n NetworkConfig) ContractURL(address string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/contract/" + address
}

// Token looks up a token by symbol.
func (n NetworkConfig) Token(symbol string) (TokenConfig, bool) {
	for _, t := range n.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return TokenConfig{}, false
}

// Registry is an immutable set of network entries.
type Registry struct {
	networks map[string]NetworkConfig
	order    []string
}

// NewRegistry validates the given networks and builds a registry. Network
// order is preserved for listing.
func NewRegistry(networks ...NetworkConfig) (*Registry, error) {
	r := &Registry{
		networks: make(map[string]NetworkConfig, len(networks)),
		order:    make([]string, 0, len(networks)),
	}

	for _, n := range networks {
		if _, ok := r.networks[n.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate network %s", ErrInvalidConfig, n.ID)
		}
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("%w: network %s: %v", ErrInvalidConfig, n.ID, err)
		}
		n.Tokens = slices.Clone(n.Tokens)
		r.networks[n.ID] = n
		r.order = append(r.order, n.ID)
	}

	return r, nil
}

// Resolve returns a copy of the network entry for id.
func (r *Registry) Resolve(id string) (NetworkConfig, error) {
	n, ok := r.networks[id]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, id)
	}
	n.Tokens = slices.Clone(n.Tokens)
	return n, nil
}

// IDs returns the network identifiers in document order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Networks returns copies of all entries in document order.
func (r *Registry) Networks() []NetworkConfig {
	out := make([]NetworkConfig, 0, len(r.order))
	for _, id := range r.order {
		n, _ := r.Resolve(id)
		out = append(out, n)
	}
	return out
}
