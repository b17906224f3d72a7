package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/observability/metrics"
	"github.com/pendergraft/gatewayctl/internal/txn"
	"github.com/pendergraft/gatewayctl/internal/validation"
)

// DeployParams configures a Deploy run.
type DeployParams struct {
	Project Project
	// Deployer becomes the contract owner.
	Deployer   string
	Treasury   string
	Aggregator string

	Store Recorder

	Verify       bool
	Verifier     Verifier
	VerifierName string
}

// DeployResult describes a finished deployment.
type DeployResult struct {
	Network         networks.NetworkConfig
	ClassHash       string
	DeclareTx       string
	AlreadyDeclared bool
	Address         string
	DeployTx        string

	// PersistErr is set when the address could not be written to the
	// store. The deployment itself succeeded.
	PersistErr error

	Verified  bool
	VerifyErr error
}

// Deploy declares the Gateway class if needed, deploys an instance owned by
// the deployer and records its address in the network store. Nothing is
// persisted unless both transactions are accepted.
func Deploy(ctx context.Context, env Env, p DeployParams) (*DeployResult, error) {
	r, err := newRun(env, NameDeploy)
	if err != nil {
		return nil, err
	}
	res, err := deploy(ctx, r, p)
	return res, r.finish(err)
}

func deploy(ctx context.Context, r *run, p DeployParams) (*DeployResult, error) {
	if err := validateAddresses(
		Param{"deployer", p.Deployer},
		Param{"treasury", p.Treasury},
		Param{"aggregator", p.Aggregator},
	); err != nil {
		return nil, err
	}

	err := r.confirm(ctx, fmt.Sprintf("Deploy %s to %s", p.Project.Contract, r.network.ID), []Param{
		{"Contract", p.Project.Contract},
		{"Network", r.network.ID},
		{"Deployer (owner)", p.Deployer},
		{"Treasury", p.Treasury},
		{"Aggregator", p.Aggregator},
	})
	if err != nil {
		return nil, err
	}

	if _, err := p.Project.load(); err != nil {
		return nil, r.fail("load artifact", "", err)
	}

	res := &DeployResult{Network: r.network}

	declared, err := r.execute(ctx, "declare", func() (*txn.PendingTx, error) {
		return r.env.Manager.Submit(ctx, txn.DeclareClass{Contract: p.Project.Contract})
	})
	if err != nil {
		return nil, err
	}
	res.ClassHash = declared.ClassHash
	res.DeclareTx = declared.Hash
	res.AlreadyDeclared = declared.AlreadyDeclared

	deployed, err := r.execute(ctx, "deploy", func() (*txn.PendingTx, error) {
		return r.env.Manager.Submit(ctx, txn.DeployInstance{ClassHash: res.ClassHash, Calldata: []string{p.Deployer}})
	})
	if err != nil {
		return nil, err
	}
	res.Address = deployed.ContractAddress
	res.DeployTx = deployed.Hash
	r.logger.Info("gateway deployed", "address", res.Address, "explorer", r.network.ContractURL(res.Address))

	res.PersistErr = r.persist(p.Store, res.Address)

	if p.Verify {
		res.VerifyErr = r.verify(ctx, p.Verifier, p.VerifierName, res.ClassHash, p.Project.Contract)
		res.Verified = res.VerifyErr == nil
	}
	return res, nil
}

func validateAddresses(addrs ...Param) error {
	for _, a := range addrs {
		if err := validation.ValidateAddress(a.Value); err != nil {
			return fmt.Errorf("%s address: %w", a.Name, err)
		}
	}
	return nil
}

// persist records the address. Failures are warnings: the contract exists
// on chain and the operator can record it by hand.
func (r *run) persist(store Recorder, address string) error {
	if store == nil {
		return errors.New("no network store configured")
	}
	err := store.RecordDeployment(r.network.ID, address)
	switch {
	case err == nil:
		metrics.StoreWrite(r.network.ID, "ok")
		r.logger.Info("deployment recorded", "address", address)
	case errors.Is(err, networks.ErrPersistenceConflict):
		metrics.StoreWrite(r.network.ID, "conflict")
		r.logger.Warn("could not record deployment, add it manually", "address", address, "error", err)
	default:
		metrics.StoreWrite(r.network.ID, "error")
		r.logger.Warn("could not record deployment, add it manually", "address", address, "error", err)
	}
	return err
}
