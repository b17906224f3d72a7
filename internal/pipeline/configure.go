package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pendergraft/gatewayctl/internal/gateway"
	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/observability/metrics"
	"github.com/pendergraft/gatewayctl/internal/starknet"
	"github.com/pendergraft/gatewayctl/internal/txn"
)

// ProtocolParams configures a SetProtocolAddresses run.
type ProtocolParams struct {
	Address    string
	Treasury   string
	Aggregator string
}

// ProtocolResult holds the two update transactions.
type ProtocolResult struct {
	Network      networks.NetworkConfig
	Address      string
	TreasuryTx   string
	AggregatorTx string
}

// SetProtocolAddresses sets the treasury and then the aggregator address.
// The first failure aborts the run.
func SetProtocolAddresses(ctx context.Context, env Env, p ProtocolParams) (*ProtocolResult, error) {
	r, err := newRun(env, NameSetProtocolAddresses)
	if err != nil {
		return nil, err
	}
	res, err := setProtocolAddresses(ctx, r, p)
	return res, r.finish(err)
}

func setProtocolAddresses(ctx context.Context, r *run, p ProtocolParams) (*ProtocolResult, error) {
	if err := validateAddresses(Param{"treasury", p.Treasury}, Param{"aggregator", p.Aggregator}); err != nil {
		return nil, err
	}
	h, err := r.invokeHandle(p.Address)
	if err != nil {
		return nil, err
	}

	err = r.confirm(ctx, fmt.Sprintf("Set protocol addresses on %s", r.network.ID), []Param{
		{"Network", r.network.ID},
		{"Gateway", h.Address},
		{"Treasury", p.Treasury},
		{"Aggregator", p.Aggregator},
	})
	if err != nil {
		return nil, err
	}

	res := &ProtocolResult{Network: r.network, Address: h.Address}

	pending, err := r.execute(ctx, "update treasury", func() (*txn.PendingTx, error) {
		return h.UpdateProtocolAddress(ctx, gateway.Treasury, p.Treasury)
	})
	if err != nil {
		return nil, err
	}
	res.TreasuryTx = pending.Hash

	pending, err = r.execute(ctx, "update aggregator", func() (*txn.PendingTx, error) {
		return h.UpdateProtocolAddress(ctx, gateway.Aggregator, p.Aggregator)
	})
	if err != nil {
		return nil, err
	}
	res.AggregatorTx = pending.Hash
	return res, nil
}

// TokenParams configures the per-token pipelines.
type TokenParams struct {
	Address string
}

// TokenItem is the outcome for one token.
type TokenItem struct {
	Symbol  string
	Address string
	TxHash  string
	Err     error
}

// TokenResult is the outcome of a per-token loop.
type TokenResult struct {
	Network networks.NetworkConfig
	Address string
	Items   []TokenItem
}

// Failed returns the items that did not complete.
func (r *TokenResult) Failed() []TokenItem {
	var out []TokenItem
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// SetSupportedTokens whitelists every token of the network in document
// order. A failing token is recorded and the loop continues.
func SetSupportedTokens(ctx context.Context, env Env, p TokenParams) (*TokenResult, error) {
	r, err := newRun(env, NameSetSupportedTokens)
	if err != nil {
		return nil, err
	}
	res, err := tokenLoop(ctx, r, p, "Whitelist tokens", supportedTokenParam,
		func(h *gateway.Handle, t networks.TokenConfig) (*txn.PendingTx, error) {
			return h.SetTokenSupported(ctx, t.Address)
		})
	return res, r.finish(err)
}

// SetTokenFeeSettings writes each token's fee schedule in document order. A
// failing token is recorded and the loop continues.
func SetTokenFeeSettings(ctx context.Context, env Env, p TokenParams) (*TokenResult, error) {
	r, err := newRun(env, NameSetTokenFeeSettings)
	if err != nil {
		return nil, err
	}
	res, err := tokenLoop(ctx, r, p, "Set token fee settings", feeParam,
		func(h *gateway.Handle, t networks.TokenConfig) (*txn.PendingTx, error) {
			return h.SetTokenFeeSettings(ctx, t)
		})
	return res, r.finish(err)
}

func supportedTokenParam(t networks.TokenConfig) Param {
	return Param{t.Symbol, t.Address}
}

func feeParam(t networks.TokenConfig) Param {
	return Param{t.Symbol, fmt.Sprintf("%s  local %s/%s  fx %s/%s",
		starknet.ShortAddress(t.Address),
		networks.FormatBPS(t.Local.SenderToProvider),
		networks.FormatBPS(t.Local.ProviderToAggregator),
		networks.FormatBPS(t.FX.SenderToAggregator),
		networks.FormatBPS(t.FX.ProviderToAggregator),
	)}
}

func tokenLoop(
	ctx context.Context,
	r *run,
	p TokenParams,
	title string,
	describe func(networks.TokenConfig) Param,
	submit func(*gateway.Handle, networks.TokenConfig) (*txn.PendingTx, error),
) (*TokenResult, error) {
	h, err := r.invokeHandle(p.Address)
	if err != nil {
		return nil, err
	}

	tokens := r.network.Tokens
	params := []Param{{"Network", r.network.ID}, {"Gateway", h.Address}}
	for _, t := range tokens {
		params = append(params, describe(t))
	}
	if err := r.confirm(ctx, fmt.Sprintf("%s on %s (%d tokens)", title, r.network.ID, len(tokens)), params); err != nil {
		return nil, err
	}

	res := &TokenResult{Network: r.network, Address: h.Address}
	for _, t := range tokens {
		item := TokenItem{Symbol: t.Symbol, Address: t.Address}
		if ctx.Err() != nil {
			// Shutting down: the remaining tokens are reported, not sent.
			item.Err = fmt.Errorf("not attempted: %w", ctx.Err())
			metrics.TokenItem(r.name, r.network.ID, resultFailed)
			res.Items = append(res.Items, item)
			continue
		}
		pending, err := r.execute(ctx, t.Symbol, func() (*txn.PendingTx, error) {
			return submit(h, t)
		})
		if err != nil {
			item.Err = err
			metrics.TokenItem(r.name, r.network.ID, resultFailed)
		} else {
			item.TxHash = pending.Hash
			metrics.TokenItem(r.name, r.network.ID, resultSuccess)
		}
		res.Items = append(res.Items, item)
	}

	failed := res.Failed()
	if len(failed) == 0 {
		return res, nil
	}
	symbols := make([]string, len(failed))
	for i, it := range failed {
		symbols[i] = it.Symbol
	}
	r.logger.Warn("some tokens failed", "failed", strings.Join(symbols, ","))
	return res, &PartialFailureError{Pipeline: r.name, Network: r.network.ID, Failed: symbols, Total: len(tokens)}
}
