package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/journal"
	"github.com/pendergraft/gatewayctl/internal/networks"
)

// testWorkdir moves into an empty directory with a clean environment.
func testWorkdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		"GATEWAY_NETWORKS_FILE", "JOURNAL_TYPE", "SQLITE_PATH", "METRICS_TEXTFILE",
		"DEPLOYER_PRIVATE_KEY", "DEPLOYER_ADDRESS", "TREASURY_ADDRESS", "AGGREGATOR_ADDRESS",
		"STARKNET_SEPOLIA_RPC_URL", "STARKNET_MAINNET_RPC_URL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp("test", os.Stdin, &out, &errOut)
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNetworksCommands(t *testing.T) {
	testWorkdir(t)

	t.Run("list before init", func(t *testing.T) {
		_, err := runCLI(t, "networks", "list")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), "networks init")
	})

	t.Run("init", func(t *testing.T) {
		out, err := runCLI(t, "networks", "init")
		require.NoError(t, err)
		assert.Contains(t, out, "Created networks.yaml")

		data, err := os.ReadFile("networks.yaml")
		require.NoError(t, err)
		assert.Equal(t, networks.DefaultDocument(), data)
	})

	t.Run("init refuses overwrite", func(t *testing.T) {
		_, err := runCLI(t, "networks", "init")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--force")

		_, err = runCLI(t, "networks", "init", "--force")
		require.NoError(t, err)
	})

	t.Run("list", func(t *testing.T) {
		out, err := runCLI(t, "networks", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "NETWORK")
		assert.Contains(t, out, "SN_MAIN")
		assert.Contains(t, out, "SN_SEPOLIA")
		assert.Contains(t, out, "$STARKNET_MAINNET_RPC_URL")
	})

	t.Run("show", func(t *testing.T) {
		out, err := runCLI(t, "networks", "show", "SN_MAIN")
		require.NoError(t, err)
		assert.Contains(t, out, "Network: SN_MAIN")
		assert.Contains(t, out, "USDC")
		assert.Contains(t, out, "50%")
		assert.Contains(t, out, "0.5%")
		assert.Contains(t, out, "Gateway:  -")
	})

	t.Run("show unknown network", func(t *testing.T) {
		_, err := runCLI(t, "networks", "show", "SN_GOERLI")
		require.Error(t, err)
		assert.ErrorIs(t, err, networks.ErrUnknownNetwork)
		assert.Contains(t, err.Error(), "SN_SEPOLIA")
	})
}

func TestConfigCommands(t *testing.T) {
	testWorkdir(t)

	out, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "not found, using defaults")
	assert.Contains(t, out, "missing required environment variable")

	out, err = runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created gatewayctl.toml")

	_, err = runCLI(t, "config", "init")
	require.Error(t, err)

	t.Setenv("DEPLOYER_PRIVATE_KEY", "0x1234567890abcdef")
	t.Setenv("DEPLOYER_ADDRESS", "0xd3")
	t.Setenv("TREASURY_ADDRESS", "0x7e")
	t.Setenv("AGGREGATOR_ADDRESS", "0xa9")

	out, err = runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded from: gatewayctl.toml")
	assert.Contains(t, out, "package:       paycrest")
	assert.Contains(t, out, "DEPLOYER_ADDRESS:     0xd3")
	assert.Contains(t, out, "0x12...cdef")
	assert.NotContains(t, out, "0x1234567890abcdef")
}

func TestProjectConfigOverrides(t *testing.T) {
	dir := testWorkdir(t)

	require.NoError(t, os.WriteFile("custom.toml", []byte(`
package = "acme"
contract = "Router"
project_dir = "contracts"
`), 0644))

	cfg, path, err := loadProjectConfig("custom.toml")
	require.NoError(t, err)
	assert.Equal(t, "custom.toml", path)
	assert.Equal(t, "Router", cfg.Contract)
	assert.Equal(t, "voyager", cfg.Verifier)
	assert.Equal(t, filepath.Join("contracts", "target", "dev"), cfg.pipelineProject().ArtifactsDir)

	cfg.ArtifactsDir = filepath.Join(dir, "out")
	assert.Equal(t, filepath.Join(dir, "out"), cfg.pipelineProject().ArtifactsDir)

	_, _, err = loadProjectConfig("missing.toml")
	assert.Error(t, err)

	_, err = runCLI(t, "--config", "missing.toml", "networks", "list")
	assert.Error(t, err)
}

func TestStateChangingCommandsRequireCredentials(t *testing.T) {
	commands := [][]string{
		{"deploy"},
		{"upgrade", "SN_MAIN"},
		{"set-protocol-addresses"},
		{"set-supported-tokens"},
		{"set-token-fee-settings"},
	}

	for _, args := range commands {
		t.Run(args[0], func(t *testing.T) {
			testWorkdir(t)
			// No networks.yaml either: credentials are checked first.
			_, err := runCLI(t, args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrMissingEnv)
		})
	}
}

func TestStatusNotDeployed(t *testing.T) {
	testWorkdir(t)
	_, err := runCLI(t, "networks", "init")
	require.NoError(t, err)

	out, err := runCLI(t, "status", "SN_SEPOLIA")
	require.NoError(t, err)
	assert.Contains(t, out, "No Gateway deployed on SN_SEPOLIA")
	assert.Contains(t, out, "gatewayctl deploy SN_SEPOLIA")
}

func TestStatusRequiresEndpoint(t *testing.T) {
	testWorkdir(t)
	_, err := runCLI(t, "networks", "init")
	require.NoError(t, err)

	_, err = runCLI(t, "status", "SN_MAIN", "--address", "0x1")
	require.Error(t, err)
	assert.ErrorIs(t, err, networks.ErrNoRPCEndpoint)
}

func TestHistory(t *testing.T) {
	dir := testWorkdir(t)

	out, err := runCLI(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No journal configured")

	dbPath := filepath.Join(dir, "journal.db")
	t.Setenv("JOURNAL_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", dbPath)

	out, err = runCLI(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions recorded")

	ctx := context.Background()
	store, err := journal.New(ctx, config.JournalConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: dbPath}}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, &journal.Entry{RunID: "run-1", Pipeline: "deploy", Network: "SN_SEPOLIA", Step: "deploy", Kind: "deploy", TxHash: "0xt1", Status: journal.StatusAccepted}))
	require.NoError(t, store.Record(ctx, &journal.Entry{RunID: "run-2", Pipeline: "set-supported-tokens", Network: "SN_MAIN", Step: "USDC", Kind: "invoke", TxHash: "0xt2", Status: journal.StatusReverted, Reason: "not owner"}))
	require.NoError(t, store.Close())

	out, err = runCLI(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "0xt1")
	assert.Contains(t, out, "reverted (not owner)")

	out, err = runCLI(t, "history", "SN_SEPOLIA")
	require.NoError(t, err)
	assert.Contains(t, out, "0xt1")
	assert.NotContains(t, out, "0xt2")

	out, err = runCLI(t, "history", "--run", "run-2")
	require.NoError(t, err)
	assert.Contains(t, out, "0xt2")
	assert.NotContains(t, out, "0xt1")
}

func TestNetworksPath(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		env     string
		project string
		want    string
	}{
		{name: "default", want: "networks.yaml"},
		{name: "project file", project: "p.yaml", want: "p.yaml"},
		{name: "environment", env: "e.yaml", project: "p.yaml", want: "e.yaml"},
		{name: "flag", flag: "f.yaml", env: "e.yaml", project: "p.yaml", want: "f.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{
				networksFile: tt.flag,
				cfg:          &config.Config{NetworksFile: tt.env},
				project:      &ProjectConfig{NetworksFile: tt.project},
			}
			assert.Equal(t, tt.want, a.networksPath())
		})
	}
}

type staticChain struct {
	id  string
	err error
}

func (c staticChain) ChainID(context.Context) (string, error) { return c.id, c.err }

func TestCheckChainID(t *testing.T) {
	tests := []struct {
		name    string
		chain   staticChain
		network string
		wantErr error
	}{
		{name: "match", chain: staticChain{id: "SN_SEPOLIA"}, network: "SN_SEPOLIA"},
		{name: "mainnet endpoint for sepolia", chain: staticChain{id: "SN_MAIN"}, network: "SN_SEPOLIA", wantErr: errChainMismatch},
		{name: "sepolia endpoint for mainnet", chain: staticChain{id: "SN_SEPOLIA"}, network: "SN_MAIN", wantErr: errChainMismatch},
		{name: "rpc failure", chain: staticChain{err: io.ErrUnexpectedEOF}, network: "SN_MAIN", wantErr: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkChainID(context.Background(), tt.chain, tt.network)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.network)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}
