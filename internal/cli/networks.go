package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/networks"
	"github.com/pendergraft/gatewayctl/internal/starknet"
)

func (a *app) networksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Manage the network registry",
	}

	cmd.AddCommand(a.networksInitCmd())
	cmd.AddCommand(a.networksListCmd())
	cmd.AddCommand(a.networksShowCmd())

	return cmd
}

func (a *app) networksInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default networks.yaml",
		Long: `Write the built-in network registry (SN_MAIN and SN_SEPOLIA with their
supported tokens and fee schedules).

EXAMPLES:
  gatewayctl networks init
  gatewayctl networks init --force
  gatewayctl --networks-file deploy/networks.yaml networks init
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := networks.NewStore(a.networksPath())
			if err := store.Init(force); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s\n", store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func (a *app) networksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := a.loadRegistry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NETWORK\tRPC\tEXPLORER\tTOKENS\tGATEWAY")
			for _, n := range reg.Networks() {
				rpc := n.RPCURL
				if n.RPCURLEnv != "" {
					rpc = "$" + n.RPCURLEnv
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					n.ID, orDash(rpc), orDash(n.ExplorerURL), len(n.Tokens), orDash(n.GatewayContract))
			}
			return w.Flush()
		},
	}
}

func (a *app) networksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [network]",
		Short: "Show one network with its token fee schedule",
		Long: `Show a network's endpoints, deployed Gateway and per-token fees. Fees are
shown as percentages of the stored basis points (100000 = 100%).

The network defaults to SN_SEPOLIA.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			n, err := reg.Resolve(networkArg(args, "SN_SEPOLIA"))
			if err != nil {
				return fmt.Errorf("%w (known networks: %v)", err, reg.IDs())
			}

			out := a.out
			fmt.Fprintf(out, "Network: %s\n", n.ID)
			if endpoint, err := n.Endpoint(); err != nil {
				fmt.Fprintf(out, "   RPC:      %v\n", err)
			} else {
				fmt.Fprintf(out, "   RPC:      %s\n", endpoint)
			}
			fmt.Fprintf(out, "   Explorer: %s\n", orDash(n.ExplorerURL))
			fmt.Fprintf(out, "   Verifier: %s\n", orDash(n.VerifierNetwork))
			fmt.Fprintf(out, "   Gateway:  %s\n", orDash(n.GatewayContract))
			fmt.Fprintln(out)

			if len(n.Tokens) == 0 {
				fmt.Fprintln(out, "No tokens configured")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tADDRESS\tLOCAL S->P\tLOCAL P->A\tFX S->A\tFX P->A")
			for _, t := range n.Tokens {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.Symbol,
					starknet.ShortAddress(t.Address),
					networks.FormatBPS(t.Local.SenderToProvider),
					networks.FormatBPS(t.Local.ProviderToAggregator),
					networks.FormatBPS(t.FX.SenderToAggregator),
					networks.FormatBPS(t.FX.ProviderToAggregator),
				)
			}
			return w.Flush()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
