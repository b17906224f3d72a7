package starknet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pendergraft/gatewayctl/internal/txn"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	URL            string
	SncastPath     string
	ProjectDir     string
	Package        string
	Account        string
	RateLimitRPS   int
	RateLimitBurst int
	Runner         Runner
	Logger         *slog.Logger
}

// Client is the network transport used by the transaction manager: reads
// go over JSON-RPC, writes are signed and sent by sncast.
type Client struct {
	*Reader
	sncast  *Sncast
	tempDir string
}

var _ txn.Transport = (*Client)(nil)

// NewReadOnlyClient connects for calls and status lookups only.
func NewReadOnlyClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	reader, err := DialReader(ctx, opts.URL, ReaderOptions{
		RateLimitRPS:   opts.RateLimitRPS,
		RateLimitBurst: opts.RateLimitBurst,
		Logger:         opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Reader: reader}, nil
}

// NewClient connects to the node, checks sncast and imports the deployer
// account into a private accounts file that is removed on Close.
func NewClient(ctx context.Context, opts ClientOptions, deployerAddress, privateKey string) (*Client, error) {
	c, err := NewReadOnlyClient(ctx, opts)
	if err != nil {
		return nil, err
	}

	c.tempDir, err = os.MkdirTemp("", "gatewayctl-*")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating accounts directory: %w", err)
	}

	account := opts.Account
	if account == "" {
		account = "gatewayctl-deployer"
	}
	c.sncast = NewSncast(SncastOptions{
		Path:         opts.SncastPath,
		ProjectDir:   opts.ProjectDir,
		Package:      opts.Package,
		Account:      account,
		AccountsFile: filepath.Join(c.tempDir, "accounts.json"),
		URL:          opts.URL,
		Runner:       opts.Runner,
		Logger:       opts.Logger,
	})

	if err := c.sncast.CheckVersion(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.sncast.ImportAccount(ctx, deployerAddress, privateKey); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the connection and removes the accounts file.
func (c *Client) Close() {
	c.Reader.Close()
	if c.tempDir != "" {
		_ = os.RemoveAll(c.tempDir)
	}
}

func (c *Client) signer() (*Sncast, error) {
	if c.sncast == nil {
		return nil, fmt.Errorf("client is read-only")
	}
	return c.sncast, nil
}

// ClassHash computes the class hash of a project contract.
func (c *Client) ClassHash(ctx context.Context, contract string) (string, error) {
	s, err := c.signer()
	if err != nil {
		return "", err
	}
	return s.ClassHash(ctx, contract)
}

// Declare declares a project contract.
func (c *Client) Declare(ctx context.Context, contract string) (string, string, error) {
	s, err := c.signer()
	if err != nil {
		return "", "", err
	}
	return s.Declare(ctx, contract)
}

// Deploy deploys an instance of a declared class.
func (c *Client) Deploy(ctx context.Context, classHash string, calldata []string) (string, string, error) {
	s, err := c.signer()
	if err != nil {
		return "", "", err
	}
	return s.Deploy(ctx, classHash, calldata)
}

// Invoke sends an invoke transaction.
func (c *Client) Invoke(ctx context.Context, address, method string, calldata []string) (string, error) {
	s, err := c.signer()
	if err != nil {
		return "", err
	}
	return s.Invoke(ctx, address, method, calldata)
}

// Verify submits the class for source verification.
func (c *Client) Verify(ctx context.Context, classHash, contract, verifier, network string) error {
	s, err := c.signer()
	if err != nil {
		return err
	}
	return s.Verify(ctx, classHash, contract, verifier, network)
}
