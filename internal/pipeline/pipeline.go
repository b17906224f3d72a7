// Package pipeline runs the Gateway lifecycle workflows: deploy, upgrade,
// post-deployment configuration and the read-only status check. Every
// pipeline follows the same shape: resolve and validate inputs, ask the
// operator to confirm, execute its steps in order, then report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pendergraft/gatewayctl/internal/gateway"
	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/observability/metrics"
	"github.com/pendergraft/gatewayctl/internal/starknet"
	"github.com/pendergraft/gatewayctl/internal/txn"
)

// ErrAborted is returned when the operator declines to proceed.
var ErrAborted = errors.New("aborted by operator")

// Pipeline names, also used as metric and journal labels.
const (
	NameDeploy               = "deploy"
	NameUpgrade              = "upgrade"
	NameSetProtocolAddresses = "set-protocol-addresses"
	NameSetSupportedTokens   = "set-supported-tokens"
	NameSetTokenFeeSettings  = "set-token-fee-settings"
	NameStatus               = "status"
)

// Run results recorded in metrics.
const (
	resultSuccess = "success"
	resultFailed  = "failed"
	resultAborted = "aborted"
	resultPartial = "partial"
)

// Manager submits operations and waits for them. *txn.Manager implements it.
type Manager interface {
	Submit(ctx context.Context, op txn.Operation) (*txn.PendingTx, error)
	AwaitFinality(ctx context.Context, pending *txn.PendingTx, policy txn.Policy) (*txn.Receipt, error)
}

// DefaultVerifier is the verification service used when none is configured.
const DefaultVerifier = "voyager"

// Verifier submits a declared class for source verification.
type Verifier interface {
	Verify(ctx context.Context, classHash, contract, verifier, network string) error
}

// Recorder persists a deployed Gateway address. *networks.Store implements it.
type Recorder interface {
	RecordDeployment(networkID, address string) error
}

// Project locates the compiled Gateway contract.
type Project struct {
	ArtifactsDir string
	Package      string
	Contract     string
}

func (p Project) load() (*starknet.CompiledContract, error) {
	return starknet.LoadCompiledContract(p.ArtifactsDir, p.Package, p.Contract)
}

// Env is what every pipeline run needs.
type Env struct {
	Registry *networks.Registry
	Network  string
	RunID    string

	Manager Manager
	Caller  gateway.Caller
	// ABI drives calldata encoding. State-changing pipelines refuse to run
	// without it; status falls back to one felt per argument.
	ABI *starknet.ABI

	Confirmer Confirmer
	Policy    txn.Policy
	Logger    *slog.Logger
}

// StepError reports the step a pipeline failed in.
type StepError struct {
	Pipeline string
	Step     string
	Network  string
	TxHash   string
	Err      error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s failed at %q", e.Pipeline, e.Network, e.Step)
	if e.TxHash != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxHash)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *StepError) Unwrap() error { return e.Err }

// PartialFailureError is returned by the token loops when some items failed.
type PartialFailureError struct {
	Pipeline string
	Network  string
	Failed   []string
	Total    int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s on %s: %d of %d tokens failed: %s",
		e.Pipeline, e.Network, len(e.Failed), e.Total, strings.Join(e.Failed, ", "))
}

// run tracks one pipeline execution.
type run struct {
	env     Env
	name    string
	network networks.NetworkConfig
	logger  *slog.Logger
	start   time.Time
}

func newRun(env Env, name string) (*run, error) {
	if env.Registry == nil {
		return nil, errors.New("pipeline: registry is required")
	}
	n, err := env.Registry.Resolve(env.Network)
	if err != nil {
		return nil, err
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &run{
		env:     env,
		name:    name,
		network: n,
		logger:  logger.With("pipeline", name, "network", n.ID, "run_id", env.RunID),
		start:   time.Now(),
	}, nil
}

func (r *run) confirm(ctx context.Context, title string, params []Param) error {
	c := r.env.Confirmer
	if c == nil {
		c = AutoConfirm{}
	}
	ok, err := c.Confirm(ctx, title, params)
	if err != nil {
		return fmt.Errorf("confirmation: %w", err)
	}
	if !ok {
		r.logger.Info("operator declined")
		return ErrAborted
	}
	return nil
}

// execute submits one operation and waits for it. A declaration that was
// skipped because the class exists is not awaited.
func (r *run) execute(ctx context.Context, step string, submit func() (*txn.PendingTx, error)) (*txn.PendingTx, error) {
	if r.env.Manager == nil {
		return nil, r.fail(step, "", errors.New("no transaction manager configured"))
	}
	r.logger.Info("executing step", "step", step)

	pending, err := submit()
	if err != nil {
		return nil, r.fail(step, "", err)
	}
	if pending.AlreadyDeclared {
		return pending, nil
	}
	if _, err := r.env.Manager.AwaitFinality(ctx, pending, r.env.Policy); err != nil {
		return nil, r.fail(step, pending.Hash, err)
	}
	r.logger.Info("step complete", "step", step, "tx_hash", pending.Hash, "explorer", r.network.TxURL(pending.Hash))
	return pending, nil
}

func (r *run) fail(step, txHash string, err error) error {
	if txHash == "" {
		txHash = txn.TxHash(err)
	}
	r.logger.Error("step failed", "step", step, "tx_hash", txHash, "error", err)
	return &StepError{Pipeline: r.name, Step: step, Network: r.network.ID, TxHash: txHash, Err: err}
}

// handle resolves the Gateway the run operates on.
func (r *run) handle(address string) (*gateway.Handle, error) {
	var submitter gateway.Submitter
	if r.env.Manager != nil {
		submitter = r.env.Manager
	}
	return gateway.Resolve(r.env.Registry, r.network.ID, address, submitter, r.env.Caller, r.env.ABI)
}

// invokeHandle is handle for pipelines that send transactions. u256
// arguments span two felts, so calldata is only encoded from the ABI.
func (r *run) invokeHandle(address string) (*gateway.Handle, error) {
	if r.env.ABI == nil {
		return nil, fmt.Errorf("%w: the Gateway ABI is needed to encode calldata", starknet.ErrArtifactNotBuilt)
	}
	return r.handle(address)
}

// finish records the run outcome and passes err through.
func (r *run) finish(err error) error {
	result := resultSuccess
	var partial *PartialFailureError
	switch {
	case err == nil:
	case errors.Is(err, ErrAborted):
		result = resultAborted
	case errors.As(err, &partial):
		result = resultPartial
	default:
		result = resultFailed
	}
	elapsed := time.Since(r.start)
	metrics.PipelineRun(r.name, r.network.ID, result, elapsed)
	r.logger.Info("pipeline finished", "result", result, "elapsed", elapsed.Round(time.Millisecond))
	return err
}

// verify submits the class for verification. Failures are warnings.
func (r *run) verify(ctx context.Context, v Verifier, verifier, classHash, contract string) error {
	if v == nil {
		return errors.New("no verifier configured")
	}
	if r.network.VerifierNetwork == "" {
		return fmt.Errorf("network %s has no verifier_network", r.network.ID)
	}
	if verifier == "" {
		verifier = DefaultVerifier
	}
	err := v.Verify(ctx, classHash, contract, verifier, r.network.VerifierNetwork)
	if err != nil {
		r.logger.Warn("verification failed", "class_hash", classHash, "error", err)
	}
	return err
}
