package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/pipeline"
	"github.com/pendergraft/gatewayctl/internal/starknet"
)

func (a *app) statusCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "status [network]",
		Short: "Show the deployed Gateway's owner and token whitelist",
		Long: `Query the deployed Gateway without sending transactions. No private key is
needed; when DEPLOYER_ADDRESS is set the owner is compared against it.

The network defaults to SN_SEPOLIA.

EXAMPLES:
  gatewayctl status
  gatewayctl status SN_MAIN
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd.Context(), networkArg(args, "SN_SEPOLIA"), address)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Gateway address (default: gateway_contract from networks.yaml)")

	return cmd
}

func (a *app) runStatus(ctx context.Context, networkID, address string) error {
	_, _, n, err := a.loadNetwork(networkID)
	if err != nil {
		return err
	}
	if address == "" && n.GatewayContract == "" {
		fmt.Fprintf(a.out, "No Gateway deployed on %s\n", n.ID)
		fmt.Fprintf(a.out, "   Run 'gatewayctl deploy %s' or pass --address\n", n.ID)
		return nil
	}

	s, err := a.openSession(ctx, pipeline.NameStatus, networkID, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := pipeline.StatusCheck(ctx, s.env, pipeline.StatusParams{
		Address:  address,
		Deployer: config.DeployerAddress(),
	})
	if err != nil {
		return err
	}

	out := a.out
	fmt.Fprintf(out, "Gateway on %s\n", res.Network.ID)
	fmt.Fprintf(out, "   Address:  %s\n", res.Address)
	fmt.Fprintf(out, "   Explorer: %s\n", res.Network.ContractURL(res.Address))
	if res.OwnerErr != nil {
		fmt.Fprintf(out, "   Owner:    error: %v\n", res.OwnerErr)
	} else {
		fmt.Fprintf(out, "   Owner:    %s\n", res.Owner)
		if res.DeployerKnown {
			fmt.Fprintf(out, "   Is deployer: %s\n", yesNo(res.OwnerIsDeployer))
		}
	}
	fmt.Fprintln(out)

	if len(res.Tokens) == 0 {
		fmt.Fprintln(out, "No tokens configured")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tADDRESS\tSUPPORTED")
	for _, t := range res.Tokens {
		supported := yesNo(t.Supported)
		if t.Err != nil {
			supported = "error: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Symbol, starknet.ShortAddress(t.Address), supported)
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
