package starknet

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pendergraft/gatewayctl/internal/validation"
)

// MinSncastVersion is the oldest sncast release with the JSON output and
// verify flags used here.
const MinSncastVersion = "0.34.0"

var versionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+(?:-[0-9A-Za-z.]+)?)`)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args in dir. On failure the error carries stderr.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s", name, firstArg(args), err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w", name, firstArg(args), err)
	}
	return stdout.Bytes(), nil
}

func firstArg(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}

// SncastOptions configures the sncast wrapper.
type SncastOptions struct {
	Path         string // sncast binary
	ProjectDir   string // Scarb project root
	Package      string // Scarb package containing the contract
	Account      string // account name inside AccountsFile
	AccountsFile string
	URL          string // RPC endpoint passed to every network command
	Runner       Runner
	Logger       *slog.Logger
}

// Sncast signs and submits transactions by driving Starknet Foundry's sncast.
type Sncast struct {
	opts   SncastOptions
	runner Runner
	logger *slog.Logger
}

// NewSncast creates an sncast wrapper.
func NewSncast(opts SncastOptions) *Sncast {
	if opts.Path == "" {
		opts.Path = "sncast"
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sncast{opts: opts, runner: runner, logger: logger}
}

// Version returns the installed sncast version.
func (s *Sncast) Version(ctx context.Context) (string, error) {
	out, err := s.runner.Run(ctx, s.opts.ProjectDir, s.opts.Path, "--version")
	if err != nil {
		return "", fmt.Errorf("running sncast: %w", err)
	}
	m := versionRegex.FindString(string(out))
	if m == "" {
		return "", fmt.Errorf("unrecognized sncast version output %q", strings.TrimSpace(string(out)))
	}
	return m, nil
}

// CheckVersion fails when sncast is older than MinSncastVersion.
func (s *Sncast) CheckVersion(ctx context.Context) error {
	v, err := s.Version(ctx)
	if err != nil {
		return err
	}
	if validation.CompareVersions(v, MinSncastVersion) < 0 {
		return fmt.Errorf("sncast %s is too old (need >= %s)", v, MinSncastVersion)
	}
	return nil
}

// ImportAccount registers the deployer account in the accounts file. The
// private key is handed over through a 0600 temp file, never the command line.
func (s *Sncast) ImportAccount(ctx context.Context, address, privateKey string) error {
	keyFile, err := os.CreateTemp(filepath.Dir(s.opts.AccountsFile), "deployer-key-*")
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer os.Remove(keyFile.Name())

	if _, err := keyFile.WriteString(privateKey); err != nil {
		_ = keyFile.Close()
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := keyFile.Close(); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	_, err = s.run(ctx, false, "account", "import",
		"--name", s.opts.Account,
		"--address", address,
		"--private-key-file", keyFile.Name(),
		"--type", "oz",
		"--url", s.opts.URL,
	)
	if err != nil {
		return fmt.Errorf("importing deployer account: %w", err)
	}
	return nil
}

// ClassHash computes the class hash of a project contract without touching
// the network.
func (s *Sncast) ClassHash(ctx context.Context, contract string) (string, error) {
	out, err := s.run(ctx, false, "utils", "class-hash", "--contract-name", contract, "--package", s.opts.Package)
	if err != nil {
		return "", err
	}
	return requireField(out, "class_hash")
}

// Declare declares a project contract and returns the transaction and class hash.
func (s *Sncast) Declare(ctx context.Context, contract string) (string, string, error) {
	out, err := s.run(ctx, true, "declare", "--contract-name", contract, "--package", s.opts.Package, "--url", s.opts.URL)
	if err != nil {
		return "", "", err
	}
	txHash, err := requireField(out, "transaction_hash")
	if err != nil {
		return "", "", err
	}
	classHash, _ := out["class_hash"].(string)
	return txHash, classHash, nil
}

// Deploy deploys an instance of classHash and returns the transaction hash
// and contract address.
func (s *Sncast) Deploy(ctx context.Context, classHash string, calldata []string) (string, string, error) {
	args := []string{"deploy", "--class-hash", classHash, "--url", s.opts.URL}
	if len(calldata) > 0 {
		args = append(args, "--constructor-calldata")
		args = append(args, calldata...)
	}
	out, err := s.run(ctx, true, args...)
	if err != nil {
		return "", "", err
	}
	txHash, err := requireField(out, "transaction_hash")
	if err != nil {
		return "", "", err
	}
	address, err := requireField(out, "contract_address")
	if err != nil {
		return "", "", err
	}
	return txHash, address, nil
}

// Invoke calls an external function and returns the transaction hash.
func (s *Sncast) Invoke(ctx context.Context, address, function string, calldata []string) (string, error) {
	args := []string{"invoke", "--contract-address", address, "--function", function, "--url", s.opts.URL}
	if len(calldata) > 0 {
		args = append(args, "--calldata")
		args = append(args, calldata...)
	}
	out, err := s.run(ctx, true, args...)
	if err != nil {
		return "", err
	}
	return requireField(out, "transaction_hash")
}

// Verify submits the class source to a block explorer verifier.
func (s *Sncast) Verify(ctx context.Context, classHash, contract, verifier, network string) error {
	_, err := s.run(ctx, false, "verify",
		"--class-hash", classHash,
		"--contract-name", contract,
		"--package", s.opts.Package,
		"--verifier", verifier,
		"--network", network,
		"--confirm-verification",
	)
	return err
}

// run invokes sncast with --json and merges the JSON objects it prints.
// Signing commands also get the account flags.
func (s *Sncast) run(ctx context.Context, signed bool, args ...string) (map[string]any, error) {
	full := []string{"--json"}
	if s.opts.AccountsFile != "" {
		full = append(full, "--accounts-file", s.opts.AccountsFile)
	}
	if signed {
		full = append(full, "--account", s.opts.Account)
	}
	full = append(full, args...)

	s.logger.Debug("running sncast", "args", strings.Join(args, " "))
	out, err := s.runner.Run(ctx, s.opts.ProjectDir, s.opts.Path, full...)
	parsed := parseJSONLines(out)
	if msg, ok := parsed["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("sncast %s: %s", args[0], msg)
	}
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

// parseJSONLines merges every JSON object line of sncast output. Later
// lines win on duplicate keys; non-JSON lines are ignored.
func parseJSONLines(out []byte) map[string]any {
	merged := make(map[string]any)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			continue
		}
		for k, v := range obj {
			merged[k] = v
		}
	}
	return merged
}

func requireField(out map[string]any, key string) (string, error) {
	v, ok := out[key].(string)
	if !ok || v == "" {
		return "", errors.New("sncast output is missing " + key)
	}
	return v, nil
}
