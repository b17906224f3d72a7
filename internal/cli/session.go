package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/journal"
	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/pipeline"
	"github.com/pendergraft/gatewayctl/internal/starknet"
	"github.com/pendergraft/gatewayctl/internal/txn"
)

// errChainMismatch is returned when an RPC endpoint serves another chain
// than the network it is configured for.
var errChainMismatch = errors.New("RPC endpoint serves a different chain")

// session is a connected pipeline environment for one network.
type session struct {
	env     pipeline.Env
	network networks.NetworkConfig
	store   *networks.Store
	client  *starknet.Client
	journal journal.Store
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
}

// loadRegistry opens the network store and loads the registry.
func (a *app) loadRegistry() (*networks.Store, *networks.Registry, error) {
	store := networks.NewStore(a.networksPath())
	reg, err := store.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w (run 'gatewayctl networks init' first)", err)
		}
		return nil, nil, err
	}
	return store, reg, nil
}

// loadNetwork resolves networkID and checks it has an RPC endpoint.
func (a *app) loadNetwork(networkID string) (*networks.Store, *networks.Registry, networks.NetworkConfig, error) {
	store, reg, err := a.loadRegistry()
	if err != nil {
		return nil, nil, networks.NetworkConfig{}, err
	}
	n, err := reg.Resolve(networkID)
	if err != nil {
		return nil, nil, networks.NetworkConfig{}, fmt.Errorf("%w (known networks: %v)", err, reg.IDs())
	}
	if _, err := n.Endpoint(); err != nil {
		return nil, nil, networks.NetworkConfig{}, err
	}
	return store, reg, n, nil
}

// openSession connects to networkID. With credentials the session can sign
// transactions; without, it is read-only.
func (a *app) openSession(ctx context.Context, name, networkID string, creds *config.Credentials) (*session, error) {
	store, reg, n, err := a.loadNetwork(networkID)
	if err != nil {
		return nil, err
	}

	s := &session{network: n, store: store}

	s.journal, err = journal.New(ctx, a.cfg.Journal, a.logger)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	opts := starknet.ClientOptions{
		URL:            n.RPCURL,
		SncastPath:     a.cfg.Sncast.Path,
		ProjectDir:     a.project.ProjectDir,
		Package:        a.project.Package,
		Account:        a.project.Account,
		RateLimitRPS:   a.cfg.RPC.RateLimitRPS,
		RateLimitBurst: a.cfg.RPC.RateLimitBurst,
		Logger:         a.logger,
	}
	if creds != nil {
		s.client, err = starknet.NewClient(ctx, opts, creds.DeployerAddress, creds.PrivateKey)
	} else {
		s.client, err = starknet.NewReadOnlyClient(ctx, opts)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connecting to %s: %w", n.ID, err)
	}
	if err := checkChainID(ctx, s.client, n.ID); err != nil {
		s.Close()
		return nil, err
	}

	runID := uuid.NewString()
	s.env = pipeline.Env{
		Registry: reg,
		Network:  n.ID,
		RunID:    runID,
		Manager: txn.NewManager(s.client, txn.Options{
			Network:  n.ID,
			Pipeline: name,
			RunID:    runID,
			Journal:  s.journal,
			Logger:   a.logger,
		}),
		Caller:    s.client,
		ABI:       a.contractABI(),
		Confirmer: a.confirmer(),
		Policy:    txn.Policy{MaxWait: a.cfg.Tx.MaxWait, PollInterval: a.cfg.Tx.PollInterval},
		Logger:    a.logger,
	}
	return s, nil
}

type chainIDReader interface {
	ChainID(ctx context.Context) (string, error)
}

// checkChainID makes sure the endpoint serves networkID, so that a
// mainnet URL under SN_SEPOLIA is caught before anything is signed.
func checkChainID(ctx context.Context, r chainIDReader, networkID string) error {
	id, err := r.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("reading chain id of %s: %w", networkID, err)
	}
	if id != networkID {
		return fmt.Errorf("%w: configured for %s, endpoint reports %s", errChainMismatch, networkID, id)
	}
	return nil
}

// contractABI returns the compiled Gateway ABI, or nil when the project has
// not been built. Only status runs without it.
func (a *app) contractABI() *starknet.ABI {
	p := a.project.pipelineProject()
	c, err := starknet.LoadCompiledContract(p.ArtifactsDir, p.Package, p.Contract)
	if err != nil {
		a.logger.Debug("contract ABI unavailable", "error", err)
		return nil
	}
	return c.ABI
}

func (a *app) confirmer() pipeline.Confirmer {
	if a.yes {
		return pipeline.AutoConfirm{}
	}
	return pipeline.NewPrompt(a.in, a.out)
}

func networkArg(args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return def
}
