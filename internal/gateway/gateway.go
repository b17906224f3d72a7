// Package gateway binds a deployed Paycrest Gateway contract on one network to
// typed calls for its administrative entry points.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/starknet"
	"github.com/pendergraft/gatewayctl/internal/txn"
	"github.com/pendergraft/gatewayctl/internal/validation"
)

// ErrContractNotDeployed is returned when no Gateway address is known for a
// network and none was given explicitly.
var ErrContractNotDeployed = errors.New("gateway contract not deployed")

// Entry points of the Gateway contract.
const (
	MethodUpgrade               = "upgrade"
	MethodUpdateProtocolAddress = "update_protocol_address"
	MethodSettingManagerBool    = "setting_manager_bool"
	MethodSetTokenFeeSettings   = "set_token_fee_settings"
	MethodOwner                 = "owner"
	MethodIsTokenSupported      = "is_token_supported"
)

// ProtocolAddress names a protocol role stored on the Gateway.
type ProtocolAddress string

const (
	Treasury   ProtocolAddress = "treasury"
	Aggregator ProtocolAddress = "aggregator"
)

// settingToken is the setting_manager_bool key that whitelists a token.
const settingToken = "token"

// Submitter sends operations to the network. *txn.Manager implements it.
type Submitter interface {
	Submit(ctx context.Context, op txn.Operation) (*txn.PendingTx, error)
}

// Caller performs read-only contract calls.
type Caller interface {
	Call(ctx context.Context, address, function string, calldata []string) ([]string, error)
}

// QueryFailedError wraps a failed read-only call.
type QueryFailedError struct {
	Method  string
	Address string
	Err     error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("query %s on %s failed: %v", e.Method, e.Address, e.Err)
}

func (e *QueryFailedError) Unwrap() error { return e.Err }

// Handle is a network-bound reference to a deployed Gateway.
type Handle struct {
	Network networks.NetworkConfig
	Address string

	submitter Submitter
	caller    Caller
	abi       *starknet.ABI
}

// Resolve builds a handle for networkID. An explicit address wins over the
// one recorded in the registry. abi may be nil, in which case every argument
// is encoded as a single felt.
func Resolve(reg *networks.Registry, networkID, address string, submitter Submitter, caller Caller, abi *starknet.ABI) (*Handle, error) {
	n, err := reg.Resolve(networkID)
	if err != nil {
		return nil, err
	}
	if address == "" {
		address = n.GatewayContract
	}
	if address == "" {
		return nil, fmt.Errorf("%w on %s (run deploy first or pass --address)", ErrContractNotDeployed, networkID)
	}
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("gateway address: %w", err)
	}
	return &Handle{
		Network:   n,
		Address:   address,
		submitter: submitter,
		caller:    caller,
		abi:       abi,
	}, nil
}

// Invoke encodes args for method and submits an invoke transaction.
func (h *Handle) Invoke(ctx context.Context, method string, args ...any) (*txn.PendingTx, error) {
	if h.submitter == nil {
		return nil, errors.New("gateway handle is read-only")
	}
	calldata, err := h.abi.EncodeCalldata(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	return h.submitter.Submit(ctx, txn.Invoke{Address: h.Address, Method: method, Calldata: calldata})
}

// Call performs a read-only call. No transaction is created.
func (h *Handle) Call(ctx context.Context, method string, args ...any) ([]string, error) {
	if h.caller == nil {
		return nil, &QueryFailedError{Method: method, Address: h.Address, Err: errors.New("no reader configured")}
	}
	calldata, err := h.abi.EncodeCalldata(method, args...)
	if err != nil {
		return nil, &QueryFailedError{Method: method, Address: h.Address, Err: err}
	}
	out, err := h.caller.Call(ctx, h.Address, method, calldata)
	if err != nil {
		return nil, &QueryFailedError{Method: method, Address: h.Address, Err: err}
	}
	return out, nil
}

// Upgrade replaces the contract class with classHash.
func (h *Handle) Upgrade(ctx context.Context, classHash string) (*txn.PendingTx, error) {
	if _, err := starknet.ParseFelt(classHash); err != nil {
		return nil, fmt.Errorf("class hash: %w", err)
	}
	if h.submitter == nil {
		return nil, errors.New("gateway handle is read-only")
	}
	return h.submitter.Submit(ctx, txn.Upgrade{Address: h.Address, ClassHash: classHash})
}

// UpdateProtocolAddress sets the treasury or aggregator address.
func (h *Handle) UpdateProtocolAddress(ctx context.Context, kind ProtocolAddress, address string) (*txn.PendingTx, error) {
	if kind != Treasury && kind != Aggregator {
		return nil, fmt.Errorf("unknown protocol address %q", kind)
	}
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%s address: %w", kind, err)
	}
	what, err := starknet.EncodeShortString(string(kind))
	if err != nil {
		return nil, err
	}
	return h.Invoke(ctx, MethodUpdateProtocolAddress, what, address)
}

// SetTokenSupported whitelists token on the Gateway.
func (h *Handle) SetTokenSupported(ctx context.Context, token string) (*txn.PendingTx, error) {
	if err := validation.ValidateAddress(token); err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}
	what, err := starknet.EncodeShortString(settingToken)
	if err != nil {
		return nil, err
	}
	return h.Invoke(ctx, MethodSettingManagerBool, what, token, 1)
}

// SetTokenFeeSettings writes the token's fee schedule. Values are
// re-validated before anything is sent.
func (h *Handle) SetTokenFeeSettings(ctx context.Context, token networks.TokenConfig) (*txn.PendingTx, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}
	bps := token.BPS()
	return h.Invoke(ctx, MethodSetTokenFeeSettings, token.Address, bps[0], bps[1], bps[2], bps[3])
}

// Owner returns the contract owner.
func (h *Handle) Owner(ctx context.Context) (string, error) {
	out, err := h.Call(ctx, MethodOwner)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", &QueryFailedError{Method: MethodOwner, Address: h.Address, Err: errors.New("empty result")}
	}
	v, err := starknet.ParseFelt(out[0])
	if err != nil {
		return "", &QueryFailedError{Method: MethodOwner, Address: h.Address, Err: err}
	}
	return starknet.FormatFelt(v), nil
}

// IsTokenSupported reports whether token is whitelisted.
func (h *Handle) IsTokenSupported(ctx context.Context, token string) (bool, error) {
	out, err := h.Call(ctx, MethodIsTokenSupported, token)
	if err != nil {
		return false, err
	}
	ok, err := starknet.DecodeBool(out)
	if err != nil {
		return false, &QueryFailedError{Method: MethodIsTokenSupported, Address: h.Address, Err: err}
	}
	return ok, nil
}
