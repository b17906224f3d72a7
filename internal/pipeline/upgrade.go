package pipeline

import (
	"context"
	"fmt"

	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/txn"
)

// UpgradeParams configures an Upgrade run.
type UpgradeParams struct {
	Project Project
	// Address overrides the Gateway address recorded for the network.
	Address string

	Verify       bool
	Verifier     Verifier
	VerifierName string
}

// UpgradeResult describes a finished upgrade.
type UpgradeResult struct {
	Network         networks.NetworkConfig
	Address         string
	ClassHash       string
	DeclareTx       string
	AlreadyDeclared bool
	UpgradeTx       string

	Verified  bool
	VerifyErr error
}

// Upgrade declares the current contract class and switches the deployed
// Gateway to it. The network store is never written.
func Upgrade(ctx context.Context, env Env, p UpgradeParams) (*UpgradeResult, error) {
	r, err := newRun(env, NameUpgrade)
	if err != nil {
		return nil, err
	}
	res, err := upgrade(ctx, r, p)
	return res, r.finish(err)
}

func upgrade(ctx context.Context, r *run, p UpgradeParams) (*UpgradeResult, error) {
	h, err := r.invokeHandle(p.Address)
	if err != nil {
		return nil, err
	}

	err = r.confirm(ctx, fmt.Sprintf("Upgrade %s on %s", p.Project.Contract, r.network.ID), []Param{
		{"Contract", p.Project.Contract},
		{"Network", r.network.ID},
		{"Gateway", h.Address},
	})
	if err != nil {
		return nil, err
	}

	if _, err := p.Project.load(); err != nil {
		return nil, r.fail("load artifact", "", err)
	}

	res := &UpgradeResult{Network: r.network, Address: h.Address}

	declared, err := r.execute(ctx, "declare", func() (*txn.PendingTx, error) {
		return r.env.Manager.Submit(ctx, txn.DeclareClass{Contract: p.Project.Contract})
	})
	if err != nil {
		return nil, err
	}
	res.ClassHash = declared.ClassHash
	res.DeclareTx = declared.Hash
	res.AlreadyDeclared = declared.AlreadyDeclared

	upgraded, err := r.execute(ctx, "upgrade", func() (*txn.PendingTx, error) {
		return h.Upgrade(ctx, res.ClassHash)
	})
	if err != nil {
		return nil, err
	}
	res.UpgradeTx = upgraded.Hash

	if p.Verify {
		res.VerifyErr = r.verify(ctx, p.Verifier, p.VerifierName, res.ClassHash, p.Project.Contract)
		res.Verified = res.VerifyErr == nil
	}
	return res, nil
}
