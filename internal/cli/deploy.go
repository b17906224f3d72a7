package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/pipeline"
)

func (a *app) deployCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "deploy [network]",
		Short: "Declare and deploy the Gateway",
		Long: `Declare the Gateway class (skipped when already declared), deploy an
instance owned by DEPLOYER_ADDRESS and record its address in networks.yaml.

The network defaults to SN_SEPOLIA.

EXAMPLES:
  gatewayctl deploy
  gatewayctl deploy SN_MAIN --verify
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDeploy(cmd.Context(), networkArg(args, "SN_SEPOLIA"), verify)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "submit the class for source verification")

	return cmd
}

func (a *app) runDeploy(ctx context.Context, networkID string, verify bool) error {
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, pipeline.NameDeploy, networkID, creds)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(a.out, "Deploying %s to %s\n\n", a.project.Contract, networkID)

	res, err := pipeline.Deploy(ctx, s.env, pipeline.DeployParams{
		Project:      a.project.pipelineProject(),
		Deployer:     creds.DeployerAddress,
		Treasury:     creds.TreasuryAddress,
		Aggregator:   creds.AggregatorAddress,
		Store:        s.store,
		Verify:       verify,
		Verifier:     s.client,
		VerifierName: a.project.Verifier,
	})
	if err != nil {
		return err
	}

	n := res.Network
	out := a.out
	if res.AlreadyDeclared {
		fmt.Fprintf(out, "Class already declared: %s\n", res.ClassHash)
	} else {
		fmt.Fprintf(out, "Declared class:  %s\n", res.ClassHash)
		txLine(a, n, "Declare TX:     ", res.DeclareTx)
	}
	txLine(a, n, "Deployment TX:  ", res.DeployTx)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Gateway deployed")
	fmt.Fprintf(out, "   Address:  %s\n", res.Address)
	fmt.Fprintf(out, "   Explorer: %s\n", n.ContractURL(res.Address))

	if res.PersistErr != nil {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "warning: could not update %s: %v\n", s.store.Path(), res.PersistErr)
		fmt.Fprintf(out, "   Add this line under networks.%s manually:\n", n.ID)
		fmt.Fprintf(out, "   gateway_contract: %q\n", res.Address)
	} else {
		fmt.Fprintf(out, "   Recorded in %s\n", s.store.Path())
	}
	printVerification(a, verify, res.Verified, res.VerifyErr)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. gatewayctl set-protocol-addresses %s\n", n.ID)
	fmt.Fprintf(out, "  2. gatewayctl set-supported-tokens %s\n", n.ID)
	fmt.Fprintf(out, "  3. gatewayctl set-token-fee-settings %s\n", n.ID)
	return nil
}

func (a *app) upgradeCmd() *cobra.Command {
	var (
		address string
		verify  bool
	)

	cmd := &cobra.Command{
		Use:   "upgrade [network]",
		Short: "Upgrade the deployed Gateway to the current build",
		Long: `Declare the current Gateway class and switch the deployed contract to it.
networks.yaml is not modified.

The network defaults to SN_SEPOLIA.

EXAMPLES:
  gatewayctl upgrade
  gatewayctl upgrade SN_MAIN --verify=false
  gatewayctl upgrade SN_SEPOLIA --address 0x06ff...
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpgrade(cmd.Context(), networkArg(args, "SN_SEPOLIA"), address, verify)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Gateway address (default: gateway_contract from networks.yaml)")
	cmd.Flags().BoolVar(&verify, "verify", true, "submit the new class for source verification")

	return cmd
}

func (a *app) runUpgrade(ctx context.Context, networkID, address string, verify bool) error {
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, pipeline.NameUpgrade, networkID, creds)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := pipeline.Upgrade(ctx, s.env, pipeline.UpgradeParams{
		Project:      a.project.pipelineProject(),
		Address:      address,
		Verify:       verify,
		Verifier:     s.client,
		VerifierName: a.project.Verifier,
	})
	if err != nil {
		return err
	}

	n := res.Network
	out := a.out
	if res.AlreadyDeclared {
		fmt.Fprintf(out, "Class already declared: %s\n", res.ClassHash)
	} else {
		fmt.Fprintf(out, "Declared class: %s\n", res.ClassHash)
		txLine(a, n, "Declare TX:    ", res.DeclareTx)
	}
	txLine(a, n, "Upgrade TX:    ", res.UpgradeTx)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Gateway %s upgraded\n", res.Address)
	printVerification(a, verify, res.Verified, res.VerifyErr)
	return nil
}

func printVerification(a *app, requested, verified bool, err error) {
	if !requested {
		return
	}
	if verified {
		fmt.Fprintln(a.out, "   Source verification submitted")
		return
	}
	fmt.Fprintf(a.out, "warning: verification failed: %v\n", err)
	fmt.Fprintln(a.out, "   Retry later with 'sncast verify'")
}

// txLine prints a transaction hash with its explorer link.
func txLine(a *app, n networks.NetworkConfig, label, hash string) {
	fmt.Fprintf(a.out, "%s %s\n", label, hash)
	fmt.Fprintf(a.out, "   Explorer: %s\n", n.TxURL(hash))
}
