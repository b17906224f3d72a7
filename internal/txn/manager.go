package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/pendergraft/gatewayctl/internal/journal"
	"github.com/pendergraft/gatewayctl/internal/observability/metrics"
)

// errNotFinal keeps the poll loop going.
var errNotFinal = errors.New("transaction not final")

// Journal receives an entry for every submission and final status.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// Options identify the run a manager works for.
type Options struct {
	Network  string
	Pipeline string
	RunID    string
	Journal  Journal
	Logger   *slog.Logger
}

// Manager submits operations through a Transport and tracks them to
// finality. One manager serves one network for one pipeline run.
type Manager struct {
	transport Transport
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a manager.
func NewManager(transport Transport, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transport: transport,
		opts:      opts,
		logger:    logger.With("network", opts.Network, "run_id", opts.RunID),
		now:       time.Now,
	}
}

// Submit sends op to the network. It does not wait for finality.
func (m *Manager) Submit(ctx context.Context, op Operation) (*PendingTx, error) {
	pending := &PendingTx{Kind: op.Kind(), Label: op.Label(), SubmittedAt: m.now()}

	var err error
	switch o := op.(type) {
	case DeclareClass:
		err = m.declare(ctx, o, pending)
	case DeployInstance:
		pending.ClassHash = o.ClassHash
		pending.Hash, pending.ContractAddress, err = m.transport.Deploy(ctx, o.ClassHash, o.Calldata)
	case Upgrade:
		pending.ClassHash = o.ClassHash
		pending.ContractAddress = o.Address
		pending.Hash, err = m.transport.Invoke(ctx, o.Address, "upgrade", []string{o.ClassHash})
	case Invoke:
		pending.ContractAddress = o.Address
		pending.Hash, err = m.transport.Invoke(ctx, o.Address, o.Method, o.Calldata)
	default:
		err = fmt.Errorf("unsupported operation %T", op)
	}
	if err != nil {
		m.logger.Error("submission rejected", "op", op.Label(), "error", err)
		m.record(ctx, pending, journal.StatusRejected, err.Error())
		metrics.Transaction(m.opts.Network, string(op.Kind()), journal.StatusRejected, 0)
		return nil, &SubmissionRejectedError{Op: op.Label(), Err: err}
	}

	if pending.AlreadyDeclared {
		m.logger.Info("class already declared", "class_hash", pending.ClassHash)
		m.record(ctx, pending, journal.StatusSkipped, "already declared")
		return pending, nil
	}

	m.logger.Info("transaction submitted", "op", op.Label(), "tx_hash", pending.Hash)
	m.record(ctx, pending, journal.StatusSubmitted, "")
	return pending, nil
}

func (m *Manager) declare(ctx context.Context, o DeclareClass, pending *PendingTx) error {
	classHash, err := m.transport.ClassHash(ctx, o.Contract)
	if err != nil {
		return fmt.Errorf("computing class hash: %w", err)
	}
	pending.ClassHash = classHash

	declared, err := m.transport.ClassDeclared(ctx, classHash)
	if err != nil {
		return fmt.Errorf("checking class %s: %w", classHash, err)
	}
	if declared {
		pending.AlreadyDeclared = true
		return nil
	}

	txHash, declaredHash, err := m.transport.Declare(ctx, o.Contract)
	if err != nil {
		return err
	}
	pending.Hash = txHash
	if declaredHash != "" {
		pending.ClassHash = declaredHash
	}
	return nil
}

// AwaitFinality polls the transaction status until it is accepted, fails, or
// policy.MaxWait elapses. A MaxWait of zero or less times out without
// polling.
func (m *Manager) AwaitFinality(ctx context.Context, pending *PendingTx, policy Policy) (*Receipt, error) {
	if pending == nil || pending.Hash == "" {
		return nil, ErrNoTransaction
	}

	logger := m.logger.With("tx_hash", pending.Hash)
	start := m.now()

	if policy.MaxWait <= 0 {
		return nil, m.timedOut(ctx, pending, 0)
	}
	interval := policy.PollInterval
	if interval <= 0 {
		interval = DefaultPolicy.PollInterval
	}

	pollCtx, cancel := context.WithTimeout(ctx, policy.MaxWait)
	defer cancel()

	var (
		receipt  *Receipt
		reverted *TransactionRevertedError
	)
	_ = retry.Do(
		func() error {
			r, err := m.transport.TransactionStatus(pollCtx, pending.Hash)
			if err != nil {
				logger.Debug("status unavailable, retrying", "error", err)
				return err
			}
			switch {
			case r.Failed():
				reverted = &TransactionRevertedError{Hash: pending.Hash, Status: failureStatus(r), Reason: r.RevertReason}
				return retry.Unrecoverable(reverted)
			case r.Accepted():
				receipt = r
				return nil
			default:
				logger.Debug("waiting for finality", "finality_status", r.FinalityStatus)
				return errNotFinal
			}
		},
		retry.Context(pollCtx),
		retry.Attempts(0),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	elapsed := m.sinceSubmission(pending, start)
	switch {
	case reverted != nil:
		logger.Error("transaction failed", "status", reverted.Status, "reason", reverted.Reason)
		status := journal.StatusReverted
		if reverted.Status == StatusRejected {
			status = journal.StatusRejected
		}
		m.record(ctx, pending, status, reverted.Reason)
		metrics.Transaction(m.opts.Network, string(pending.Kind), status, elapsed)
		return nil, reverted
	case receipt != nil:
		logger.Info("transaction accepted", "finality_status", receipt.FinalityStatus, "elapsed", elapsed.Round(time.Millisecond))
		m.record(ctx, pending, journal.StatusAccepted, "")
		metrics.Transaction(m.opts.Network, string(pending.Kind), journal.StatusAccepted, elapsed)
		return receipt, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("waiting for %s: %w", pending.Hash, ctx.Err())
	default:
		return nil, m.timedOut(ctx, pending, policy.MaxWait)
	}
}

// sinceSubmission is the confirmation latency of pending. Transactions
// submitted elsewhere are measured from start.
func (m *Manager) sinceSubmission(pending *PendingTx, start time.Time) time.Duration {
	if !pending.SubmittedAt.IsZero() {
		start = pending.SubmittedAt
	}
	return m.now().Sub(start)
}

func (m *Manager) timedOut(ctx context.Context, pending *PendingTx, waited time.Duration) error {
	m.logger.Warn("transaction not final within budget", "tx_hash", pending.Hash, "waited", waited)
	m.record(ctx, pending, journal.StatusTimeout, "")
	metrics.Transaction(m.opts.Network, string(pending.Kind), journal.StatusTimeout, 0)
	return &ConfirmationTimeoutError{Hash: pending.Hash, Waited: waited}
}

// record writes a journal entry. Journal failures never fail the transaction.
func (m *Manager) record(ctx context.Context, pending *PendingTx, status, reason string) {
	if m.opts.Journal == nil {
		return
	}
	e := &journal.Entry{
		RunID:           m.opts.RunID,
		Pipeline:        m.opts.Pipeline,
		Network:         m.opts.Network,
		Step:            pending.Label,
		Kind:            string(pending.Kind),
		TxHash:          pending.Hash,
		ClassHash:       pending.ClassHash,
		ContractAddress: pending.ContractAddress,
		Status:          status,
		Reason:          reason,
	}
	if err := m.opts.Journal.Record(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Warn("failed to write journal entry", "tx_hash", pending.Hash, "error", err)
	}
}

func failureStatus(r *Receipt) string {
	if r.FinalityStatus == StatusRejected {
		return StatusRejected
	}
	return ExecutionReverted
}
