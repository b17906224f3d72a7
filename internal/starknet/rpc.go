package starknet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/pendergraft/gatewayctl/internal/observability/metrics"
	"github.com/pendergraft/gatewayctl/internal/txn"
)

// Starknet JSON-RPC error codes.
const (
	codeContractNotFound = 20
	codeClassNotFound    = 28
	codeTxHashNotFound   = 29
)

var (
	// ErrTransactionNotFound means the node does not know the hash yet.
	ErrTransactionNotFound = errors.New("transaction hash not found")
	// ErrContractNotFound means no contract is deployed at the address.
	ErrContractNotFound = errors.New("contract not found")
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	RateLimitRPS   int
	RateLimitBurst int
	Logger         *slog.Logger
}

// Reader issues read-only JSON-RPC calls against a Starknet node. Requests
// are throttled with a token bucket.
type Reader struct {
	client  *rpc.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// DialReader connects to the node at url.
func DialReader(ctx context.Context, url string, opts ReaderOptions) (*Reader, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if opts.RateLimitRPS > 0 {
		limit = rate.Limit(opts.RateLimitRPS)
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Reader{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// Close releases the connection.
func (r *Reader) Close() {
	r.client.Close()
}

func (r *Reader) call(ctx context.Context, result any, method string, args ...any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	err := r.client.CallContext(ctx, result, method, args...)
	status := "ok"
	if err != nil {
		status = "error"
		r.logger.Debug("rpc call failed", "method", method, "error", err)
	}
	metrics.RPCRequest(method, status)
	return err
}

// ChainID returns the network's chain id decoded as a short string, e.g. SN_SEPOLIA.
func (r *Reader) ChainID(ctx context.Context) (string, error) {
	var raw string
	if err := r.call(ctx, &raw, "starknet_chainId"); err != nil {
		return "", fmt.Errorf("starknet_chainId: %w", err)
	}
	return DecodeShortString(raw)
}

type transactionStatus struct {
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status"`
	FailureReason   string `json:"failure_reason"`
}

// TransactionStatus returns the finality and execution status of a transaction.
func (r *Reader) TransactionStatus(ctx context.Context, txHash string) (*txn.Receipt, error) {
	var res transactionStatus
	if err := r.call(ctx, &res, "starknet_getTransactionStatus", txHash); err != nil {
		if errorCode(err) == codeTxHashNotFound {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txHash)
		}
		return nil, fmt.Errorf("starknet_getTransactionStatus: %w", err)
	}

	receipt := &txn.Receipt{
		Hash:            txHash,
		FinalityStatus:  res.FinalityStatus,
		ExecutionStatus: res.ExecutionStatus,
		RevertReason:    res.FailureReason,
	}

	// Older nodes leave failure_reason out of the status; the receipt has it.
	if receipt.ExecutionStatus == txn.ExecutionReverted && receipt.RevertReason == "" {
		var full struct {
			RevertReason string `json:"revert_reason"`
		}
		if err := r.call(ctx, &full, "starknet_getTransactionReceipt", txHash); err == nil {
			receipt.RevertReason = full.RevertReason
		}
	}
	return receipt, nil
}

type functionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// Call executes a view function at the latest block.
func (r *Reader) Call(ctx context.Context, address, function string, calldata []string) ([]string, error) {
	if calldata == nil {
		calldata = []string{}
	}
	req := functionCall{
		ContractAddress:    address,
		EntryPointSelector: Selector(function),
		Calldata:           calldata,
	}
	var out []string
	if err := r.call(ctx, &out, "starknet_call", req, "latest"); err != nil {
		if errorCode(err) == codeContractNotFound {
			return nil, fmt.Errorf("%w: %s", ErrContractNotFound, address)
		}
		return nil, fmt.Errorf("starknet_call %s: %w", function, err)
	}
	return out, nil
}

// ClassDeclared reports whether the class hash is known to the network.
func (r *Reader) ClassDeclared(ctx context.Context, classHash string) (bool, error) {
	var res map[string]any
	err := r.call(ctx, &res, "starknet_getClass", "latest", classHash)
	if err == nil {
		return true, nil
	}
	if errorCode(err) == codeClassNotFound {
		return false, nil
	}
	return false, fmt.Errorf("starknet_getClass: %w", err)
}

func errorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
