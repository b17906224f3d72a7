package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/pipeline"
)

const (
	defaultConfigFile   = "gatewayctl.toml"
	defaultNetworksFile = "networks.yaml"
)

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Contract     string `toml:"contract"`
	Package      string `toml:"package"`
	ProjectDir   string `toml:"project_dir,omitempty"`
	ArtifactsDir string `toml:"artifacts_dir,omitempty"`
	NetworksFile string `toml:"networks_file,omitempty"`
	Verifier     string `toml:"verifier,omitempty"`
	Account      string `toml:"account,omitempty"`
}

func defaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Contract:     "Gateway",
		Package:      "paycrest",
		ProjectDir:   ".",
		ArtifactsDir: filepath.Join("target", "dev"),
		Verifier:     pipeline.DefaultVerifier,
		Account:      "gatewayctl-deployer",
	}
}

// pipelineProject locates the compiled contract. A relative artifacts
// directory is taken from the project directory.
func (p *ProjectConfig) pipelineProject() pipeline.Project {
	dir := p.ArtifactsDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.ProjectDir, dir)
	}
	return pipeline.Project{ArtifactsDir: dir, Package: p.Package, Contract: p.Contract}
}

// loadProjectConfig reads the project file over the defaults. A missing
// default file is not an error; a missing explicit file is.
func loadProjectConfig(path string) (*ProjectConfig, string, error) {
	cfg := defaultProjectConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, "", nil
		}
		return nil, path, fmt.Errorf("reading %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, path, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Contract == "" || cfg.Package == "" {
		return nil, path, fmt.Errorf("%s: contract and package must not be empty", path)
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}
	return cfg, path, nil
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(a.configInitCmd())
	cmd.AddCommand(a.configShowCmd())

	return cmd
}

func (a *app) configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create gatewayctl.toml",
		Long: `Create a gatewayctl.toml project file in the current directory.

EXAMPLES:
  gatewayctl config init
  gatewayctl config init --force
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func (a *app) runConfigInit(force bool) error {
	path := a.cfgFile
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	d := defaultProjectConfig()
	content := fmt.Sprintf(`# gatewayctl project configuration

# Scarb package and contract to deploy
package = %q
contract = %q

# Scarb project root and compiled artifacts (relative to project_dir)
project_dir = %q
artifacts_dir = %q

# Network registry written by 'gatewayctl networks init'
networks_file = %q

# Verification service passed to 'sncast verify'
verifier = %q

# Account name used inside the temporary sncast accounts file
account = %q
`, d.Package, d.Contract, d.ProjectDir, d.ArtifactsDir, defaultNetworksFile, d.Verifier, d.Account)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(a.out, "Created %s\n", path)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Next steps:")
	fmt.Fprintln(a.out, "  1. Run 'gatewayctl networks init' to create networks.yaml")
	fmt.Fprintln(a.out, "  2. Put DEPLOYER_PRIVATE_KEY, DEPLOYER_ADDRESS, TREASURY_ADDRESS and AGGREGATOR_ADDRESS in .env")
	fmt.Fprintln(a.out, "  3. Run 'scarb build' and then 'gatewayctl deploy SN_SEPOLIA'")
	return nil
}

func (a *app) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the effective configuration from the environment, .env and the
project file. The private key is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigShow()
		},
	}
}

func (a *app) runConfigShow() error {
	_, path, err := loadProjectConfig(a.cfgFile)
	if err != nil {
		return err
	}
	out := a.out

	fmt.Fprintln(out, "Project config")
	if path == "" {
		fmt.Fprintln(out, "   (not found, using defaults)")
	} else {
		fmt.Fprintf(out, "   Loaded from: %s\n", path)
	}
	p := a.project
	fmt.Fprintf(out, "   package:       %s\n", p.Package)
	fmt.Fprintf(out, "   contract:      %s\n", p.Contract)
	fmt.Fprintf(out, "   project_dir:   %s\n", p.ProjectDir)
	fmt.Fprintf(out, "   artifacts_dir: %s\n", p.ArtifactsDir)
	fmt.Fprintf(out, "   verifier:      %s\n", p.Verifier)
	fmt.Fprintln(out)

	c := a.cfg
	fmt.Fprintln(out, "Environment")
	fmt.Fprintf(out, "   networks file:  %s\n", a.networksPath())
	fmt.Fprintf(out, "   tx max wait:    %s\n", c.Tx.MaxWait)
	fmt.Fprintf(out, "   poll interval:  %s\n", c.Tx.PollInterval)
	fmt.Fprintf(out, "   rpc rate limit: %d/s (burst %d)\n", c.RPC.RateLimitRPS, c.RPC.RateLimitBurst)
	fmt.Fprintf(out, "   sncast:         %s\n", c.Sncast.Path)
	fmt.Fprintf(out, "   journal:        %s\n", c.Journal.Type)
	fmt.Fprintf(out, "   log:            %s/%s\n", c.Logging.Level, c.Logging.Format)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Credentials")
	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Fprintf(out, "   %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "   DEPLOYER_ADDRESS:     %s\n", creds.DeployerAddress)
	fmt.Fprintf(out, "   TREASURY_ADDRESS:     %s\n", creds.TreasuryAddress)
	fmt.Fprintf(out, "   AGGREGATOR_ADDRESS:   %s\n", creds.AggregatorAddress)
	fmt.Fprintf(out, "   DEPLOYER_PRIVATE_KEY: %s\n", maskSecret(creds.PrivateKey))
	return nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
