package pipeline

import (
	"context"

	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/starknet"
)

// StatusParams configures a StatusCheck run.
type StatusParams struct {
	Address string
	// Deployer, when set, is compared against the contract owner.
	Deployer string
}

// TokenStatus is the whitelist state of one token.
type TokenStatus struct {
	Symbol    string
	Address   string
	Supported bool
	Err       error
}

// StatusResult is a read-only snapshot of a deployed Gateway.
type StatusResult struct {
	Network  networks.NetworkConfig
	Address  string
	Owner    string
	OwnerErr error
	// OwnerIsDeployer is meaningful only when DeployerKnown is set.
	OwnerIsDeployer bool
	DeployerKnown   bool
	Tokens          []TokenStatus
}

// StatusCheck reads the owner and token whitelist state. Individual query
// failures are reported in the result and never abort the run. No
// transaction is sent.
func StatusCheck(ctx context.Context, env Env, p StatusParams) (*StatusResult, error) {
	r, err := newRun(env, NameStatus)
	if err != nil {
		return nil, err
	}
	res, err := status(ctx, r, p)
	return res, r.finish(err)
}

func status(ctx context.Context, r *run, p StatusParams) (*StatusResult, error) {
	h, err := r.handle(p.Address)
	if err != nil {
		return nil, err
	}

	res := &StatusResult{Network: r.network, Address: h.Address}

	res.Owner, res.OwnerErr = h.Owner(ctx)
	if res.OwnerErr != nil {
		r.logger.Warn("owner query failed", "error", res.OwnerErr)
	} else if p.Deployer != "" {
		res.DeployerKnown = true
		res.OwnerIsDeployer = starknet.FeltEqual(res.Owner, p.Deployer)
	}

	for _, t := range r.network.Tokens {
		ts := TokenStatus{Symbol: t.Symbol, Address: t.Address}
		ts.Supported, ts.Err = h.IsTokenSupported(ctx, t.Address)
		if ts.Err != nil {
			r.logger.Warn("token query failed", "token", t.Symbol, "error", ts.Err)
		}
		res.Tokens = append(res.Tokens, ts)
	}
	return res, nil
}
