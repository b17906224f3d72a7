//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/gateway"
	"github.com/pendergraft/gatewayctl/internal/journal"
	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/pipeline"
	"github.com/pendergraft/gatewayctl/internal/starknet"
	"github.com/pendergraft/gatewayctl/internal/txn"
)

const document = `networks:
  SN_SEPOLIA:
    rpc_url: https://rpc.example.com
    explorer_url: https://sepolia.voyager.online
    supported_tokens:
      STRK:
        address: "0x4718"
        local: {sender_to_provider: 50000, provider_to_aggregator: 50000}
        fx: {sender_to_aggregator: 0, provider_to_aggregator: 500}
      USDC:
        address: "0x53c9"
        local: {sender_to_provider: 50000, provider_to_aggregator: 50000}
        fx: {sender_to_aggregator: 0, provider_to_aggregator: 500}
`

const whitelistABI = `[
  {"type": "function", "name": "setting_manager_bool", "inputs": [
    {"name": "what", "type": "core::felt252"},
    {"name": "value", "type": "core::starknet::contract_address::ContractAddress"},
    {"name": "status", "type": "core::integer::u256"}
  ], "outputs": [], "state_mutability": "external"}
]`

// chain accepts every transaction; the USDC whitelist reverts.
type chain struct {
	mu  sync.Mutex
	txs map[string]string
}

func (c *chain) ClassHash(context.Context, string) (string, error) { return "0xc1a55", nil }

func (c *chain) ClassDeclared(context.Context, string) (bool, error) { return false, nil }

func (c *chain) Declare(context.Context, string) (string, string, error) {
	return c.tx("declare"), "0xc1a55", nil
}

func (c *chain) Deploy(context.Context, string, []string) (string, string, error) {
	return c.tx("deploy"), "0xabc", nil
}

func (c *chain) Invoke(_ context.Context, _ string, method string, calldata []string) (string, error) {
	if method == gateway.MethodSettingManagerBool && calldata[1] == "0x53c9" {
		return c.tx("revert"), nil
	}
	return c.tx(method), nil
}

func (c *chain) TransactionStatus(_ context.Context, hash string) (*txn.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &txn.Receipt{Hash: hash, FinalityStatus: txn.StatusAcceptedOnL2, ExecutionStatus: txn.ExecutionSucceeded}
	if c.txs[hash] == "revert" {
		r.ExecutionStatus = txn.ExecutionReverted
		r.RevertReason = "Caller is not the owner"
	}
	return r, nil
}

func (c *chain) tx(kind string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash := fmt.Sprintf("0x%x", 0x100+len(c.txs))
	c.txs[hash] = kind
	return hash
}

func openJournal(t *testing.T) journal.Store {
	t.Helper()
	store, err := journal.New(context.Background(), config.JournalConfig{
		Type:     "postgres",
		Postgres: config.PostgresConfig{URL: connString},
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresJournal(t *testing.T) {
	ctx := context.Background()
	store := openJournal(t)

	runID := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Record(ctx, &journal.Entry{RunID: runID, Pipeline: "deploy", Network: "SN_SEPOLIA", Step: "deploy", Kind: "deploy", TxHash: "0x1", Status: journal.StatusSubmitted, CreatedAt: base}))
	require.NoError(t, store.Record(ctx, &journal.Entry{RunID: runID, Pipeline: "deploy", Network: "SN_SEPOLIA", Step: "deploy", Kind: "deploy", TxHash: "0x1", ContractAddress: "0xabc", Status: journal.StatusAccepted, CreatedAt: base.Add(time.Second)}))

	got, err := store.List(ctx, journal.Filter{RunID: runID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, journal.StatusAccepted, got[0].Status)
	assert.Equal(t, "0xabc", got[0].ContractAddress)
	assert.Equal(t, journal.StatusSubmitted, got[1].Status)

	// Migrations are idempotent.
	require.NoError(t, store.Migrate(ctx))
}

func TestPipelineRunIsJournaled(t *testing.T) {
	ctx := context.Background()
	store := openJournal(t)

	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0644))
	netStore := networks.NewStore(path)
	reg, err := netStore.Load()
	require.NoError(t, err)

	abi, err := starknet.ParseABI(json.RawMessage(whitelistABI))
	require.NoError(t, err)

	c := &chain{txs: make(map[string]string)}
	runID := uuid.NewString()
	logger := slog.New(slog.DiscardHandler)
	env := pipeline.Env{
		Registry: reg,
		Network:  "SN_SEPOLIA",
		RunID:    runID,
		Manager: txn.NewManager(c, txn.Options{
			Network:  "SN_SEPOLIA",
			Pipeline: pipeline.NameSetSupportedTokens,
			RunID:    runID,
			Journal:  store,
			Logger:   logger,
		}),
		ABI:       abi,
		Confirmer: pipeline.AutoConfirm{},
		Policy:    txn.Policy{MaxWait: time.Second, PollInterval: time.Millisecond},
		Logger:    logger,
	}

	res, err := pipeline.SetSupportedTokens(ctx, env, pipeline.TokenParams{Address: "0xabc"})
	var partial *pipeline.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"USDC"}, partial.Failed)
	require.Len(t, res.Items, 2)

	entries, err := store.List(ctx, journal.Filter{RunID: runID})
	require.NoError(t, err)

	statuses := map[string]int{}
	for _, e := range entries {
		assert.Equal(t, pipeline.NameSetSupportedTokens, e.Pipeline)
		assert.Equal(t, "SN_SEPOLIA", e.Network)
		statuses[e.Status]++
	}
	assert.Equal(t, 2, statuses[journal.StatusSubmitted])
	assert.Equal(t, 1, statuses[journal.StatusAccepted])
	assert.Equal(t, 1, statuses[journal.StatusReverted])
}
