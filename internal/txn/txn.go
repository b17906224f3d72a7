// Package txn submits Gateway operations and waits for them to reach
// finality within a bounded polling budget.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoTransaction is returned when awaiting a submission that produced no
// transaction, such as a class that was already declared.
var ErrNoTransaction = errors.New("no transaction to await")

// Kind names an operation type.
type Kind string

const (
	KindDeclare Kind = "declare"
	KindDeploy  Kind = "deploy"
	KindUpgrade Kind = "upgrade"
	KindInvoke  Kind = "invoke"
)

// Operation is one on-chain action.
type Operation interface {
	Kind() Kind
	// Label identifies the operation in logs and the journal.
	Label() string
}

// DeclareClass declares a contract class of the project unless the network
// already knows it.
type DeclareClass struct {
	Contract string
}

func (DeclareClass) Kind() Kind { return KindDeclare }

func (o DeclareClass) Label() string { return "declare " + o.Contract }

// DeployInstance deploys an instance of a declared class.
type DeployInstance struct {
	ClassHash string
	Calldata  []string
}

func (DeployInstance) Kind() Kind { return KindDeploy }

func (o DeployInstance) Label() string { return "deploy " + o.ClassHash }

// Upgrade replaces the class of a deployed contract.
type Upgrade struct {
	Address   string
	ClassHash string
}

func (Upgrade) Kind() Kind { return KindUpgrade }

func (o Upgrade) Label() string { return "upgrade " + o.Address + " to " + o.ClassHash }

// Invoke calls an external function on a deployed contract.
type Invoke struct {
	Address  string
	Method   string
	Calldata []string
}

func (Invoke) Kind() Kind { return KindInvoke }

func (o Invoke) Label() string { return "invoke " + o.Method }

// PendingTx is a submitted but not yet final transaction.
type PendingTx struct {
	Hash            string
	Kind            Kind
	Label           string
	ClassHash       string
	ContractAddress string
	// AlreadyDeclared is set when a declaration was skipped. Hash is empty.
	AlreadyDeclared bool
	SubmittedAt     time.Time
}

// Finality statuses.
const (
	StatusReceived     = "RECEIVED"
	StatusCandidate    = "CANDIDATE"
	StatusPreConfirmed = "PRE_CONFIRMED"
	StatusAcceptedOnL2 = "ACCEPTED_ON_L2"
	StatusAcceptedOnL1 = "ACCEPTED_ON_L1"
	StatusRejected     = "REJECTED"
)

// Execution statuses.
const (
	ExecutionSucceeded = "SUCCEEDED"
	ExecutionReverted  = "REVERTED"
)

// Receipt is the network's view of a transaction.
type Receipt struct {
	Hash            string
	FinalityStatus  string
	ExecutionStatus string
	RevertReason    string
}

// Accepted reports whether the transaction is final and succeeded.
func (r *Receipt) Accepted() bool {
	accepted := r.FinalityStatus == StatusAcceptedOnL2 || r.FinalityStatus == StatusAcceptedOnL1
	return accepted && r.ExecutionStatus == ExecutionSucceeded
}

// Failed reports whether the transaction reached a terminal failure.
func (r *Receipt) Failed() bool {
	return r.FinalityStatus == StatusRejected || r.ExecutionStatus == ExecutionReverted
}

// Policy bounds how long AwaitFinality polls.
type Policy struct {
	MaxWait      time.Duration
	PollInterval time.Duration
}

// DefaultPolicy matches the environment defaults.
var DefaultPolicy = Policy{
	MaxWait:      10 * time.Minute,
	PollInterval: 5 * time.Second,
}

// Transport is the network-facing side of the manager.
type Transport interface {
	// ClassHash computes the class hash of a project contract locally.
	ClassHash(ctx context.Context, contract string) (string, error)
	ClassDeclared(ctx context.Context, classHash string) (bool, error)
	Declare(ctx context.Context, contract string) (txHash, classHash string, err error)
	Deploy(ctx context.Context, classHash string, calldata []string) (txHash, address string, err error)
	Invoke(ctx context.Context, address, method string, calldata []string) (txHash string, err error)
	TransactionStatus(ctx context.Context, txHash string) (*Receipt, error)
}

// SubmissionRejectedError means the network or signer refused an operation
// before it produced a transaction.
type SubmissionRejectedError struct {
	Op  string
	Err error
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected (%s): %v", e.Op, e.Err)
}

func (e *SubmissionRejectedError) Unwrap() error { return e.Err }

// ConfirmationTimeoutError means the transaction did not reach finality
// within the policy budget. The transaction may still land later.
type ConfirmationTimeoutError struct {
	Hash   string
	Waited time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not final after %s", e.Hash, e.Waited.Round(time.Second))
}

// TransactionRevertedError means the transaction reached a terminal failure.
type TransactionRevertedError struct {
	Hash   string
	Status string
	Reason string
}

func (e *TransactionRevertedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transaction %s %s", e.Hash, strings.ToLower(e.Status))
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// TxHash extracts the transaction hash carried by a finality error.
func TxHash(err error) string {
	var timeout *ConfirmationTimeoutError
	if errors.As(err, &timeout) {
		return timeout.Hash
	}
	var reverted *TransactionRevertedError
	if errors.As(err, &reverted) {
		return reverted.Hash
	}
	return ""
}
