package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/observability/metrics"
)

// app holds the global flags and the state shared by every command.
type app struct {
	version string

	cfgFile      string
	networksFile string
	yes          bool

	in  *os.File
	out io.Writer
	err io.Writer

	cfg     *config.Config
	project *ProjectConfig
	logger  *slog.Logger
}

func newApp(version string, in *os.File, out, errOut io.Writer) *app {
	return &app{version: version, in: in, out: out, err: errOut}
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the running command.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(version, os.Stdin, os.Stdout, os.Stderr)
	err := a.rootCmd().ExecuteContext(ctx)
	if ferr := a.flushMetrics(); ferr != nil {
		fmt.Fprintf(a.err, "warning: writing metrics: %v\n", ferr)
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatewayctl",
		Short: "Paycrest Gateway lifecycle on Starknet",
		Long: `gatewayctl declares, deploys, upgrades and configures the Paycrest Gateway
contract on Starknet networks, and records the deployed address in networks.yaml.

State-changing commands need DEPLOYER_PRIVATE_KEY, DEPLOYER_ADDRESS,
TREASURY_ADDRESS and AGGREGATOR_ADDRESS in the environment or in .env.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.err)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "project config file (default: gatewayctl.toml)")
	rootCmd.PersistentFlags().StringVar(&a.networksFile, "networks-file", "", "network registry file (default: networks.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.yes, "yes", "y", false, "skip confirmation prompts")

	rootCmd.AddCommand(a.deployCmd())
	rootCmd.AddCommand(a.upgradeCmd())
	rootCmd.AddCommand(a.setProtocolAddressesCmd())
	rootCmd.AddCommand(a.setSupportedTokensCmd())
	rootCmd.AddCommand(a.setTokenFeeSettingsCmd())
	rootCmd.AddCommand(a.statusCmd())
	rootCmd.AddCommand(a.networksCmd())
	rootCmd.AddCommand(a.historyCmd())
	rootCmd.AddCommand(a.configCmd())

	return rootCmd
}

// setup loads .env, the environment configuration and the project file.
func (a *app) setup() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.logger = setupLogger(cfg.Logging, a.err)

	project, _, err := loadProjectConfig(a.cfgFile)
	if err != nil {
		return err
	}
	a.project = project

	metrics.Init(cfg.Metrics.TextfilePath != "", "gatewayctl")
	return nil
}

func (a *app) flushMetrics() error {
	if a.cfg == nil || a.cfg.Metrics.TextfilePath == "" {
		return nil
	}
	return metrics.WriteTextfile(a.cfg.Metrics.TextfilePath)
}

// networksPath resolves the registry file: flag, then environment, then
// project file, then the default.
func (a *app) networksPath() string {
	if a.networksFile != "" {
		return a.networksFile
	}
	if a.cfg != nil && a.cfg.NetworksFile != "" {
		return a.cfg.NetworksFile
	}
	if a.project != nil && a.project.NetworksFile != "" {
		return a.project.NetworksFile
	}
	return defaultNetworksFile
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
