package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/config"
	"github.com/pendergraft/gatewayctl/internal/pipeline"
	"github.com/pendergraft/gatewayctl/internal/starknet"
)

func (a *app) setProtocolAddressesCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "set-protocol-addresses [network]",
		Short: "Set the treasury and aggregator addresses on the Gateway",
		Long: `Send update_protocol_address for the treasury and then the aggregator,
using TREASURY_ADDRESS and AGGREGATOR_ADDRESS. The first failure stops the run.

The network defaults to SN_SEPOLIA.

EXAMPLES:
  gatewayctl set-protocol-addresses
  gatewayctl set-protocol-addresses SN_MAIN --yes
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSetProtocolAddresses(cmd.Context(), networkArg(args, "SN_SEPOLIA"), address)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Gateway address (default: gateway_contract from networks.yaml)")

	return cmd
}

func (a *app) runSetProtocolAddresses(ctx context.Context, networkID, address string) error {
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, pipeline.NameSetProtocolAddresses, networkID, creds)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := pipeline.SetProtocolAddresses(ctx, s.env, pipeline.ProtocolParams{
		Address:    address,
		Treasury:   creds.TreasuryAddress,
		Aggregator: creds.AggregatorAddress,
	})
	if err != nil {
		return err
	}

	txLine(a, res.Network, "Treasury TX:  ", res.TreasuryTx)
	txLine(a, res.Network, "Aggregator TX:", res.AggregatorTx)
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "Protocol addresses set on %s\n", res.Address)
	return nil
}

func (a *app) setSupportedTokensCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "set-supported-tokens [network]",
		Short: "Whitelist the network's tokens on the Gateway",
		Long: `Send setting_manager_bool("token", <address>, 1) for every token listed under
the network in networks.yaml. A failing token does not stop the others; the
command exits non-zero when any token failed.

The network defaults to SN_SEPOLIA.

EXAMPLES:
  gatewayctl set-supported-tokens
  gatewayctl set-supported-tokens SN_MAIN
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTokenPipeline(cmd.Context(), pipeline.NameSetSupportedTokens,
				networkArg(args, "SN_SEPOLIA"), address, pipeline.SetSupportedTokens)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Gateway address (default: gateway_contract from networks.yaml)")

	return cmd
}

func (a *app) setTokenFeeSettingsCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "set-token-fee-settings [network]",
		Short: "Write each token's fee schedule to the Gateway",
		Long: `Send set_token_fee_settings for every token listed under the network in
networks.yaml. Fees are in basis points where 100000 = 100%. A failing token
does not stop the others; the command exits non-zero when any token failed.

The network defaults to SN_MAIN.

EXAMPLES:
  gatewayctl set-token-fee-settings
  gatewayctl set-token-fee-settings SN_SEPOLIA --yes
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTokenPipeline(cmd.Context(), pipeline.NameSetTokenFeeSettings,
				networkArg(args, "SN_MAIN"), address, pipeline.SetTokenFeeSettings)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Gateway address (default: gateway_contract from networks.yaml)")

	return cmd
}

type tokenPipeline func(context.Context, pipeline.Env, pipeline.TokenParams) (*pipeline.TokenResult, error)

func (a *app) runTokenPipeline(ctx context.Context, name, networkID, address string, fn tokenPipeline) error {
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, name, networkID, creds)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := fn(ctx, s.env, pipeline.TokenParams{Address: address})
	if res == nil {
		return err
	}
	if len(res.Items) == 0 {
		fmt.Fprintf(a.out, "No tokens configured for %s in %s\n", res.Network.ID, s.store.Path())
		return err
	}

	a.printTokenItems(res)

	var partial *pipeline.PartialFailureError
	if errors.As(err, &partial) {
		fmt.Fprintln(a.out)
		fmt.Fprintf(a.out, "%d of %d tokens failed\n", len(partial.Failed), partial.Total)
	}
	return err
}

func (a *app) printTokenItems(res *pipeline.TokenResult) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tADDRESS\tRESULT")
	for _, it := range res.Items {
		result := res.Network.TxURL(it.TxHash)
		if it.Err != nil {
			result = "FAILED: " + it.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.Symbol, starknet.ShortAddress(it.Address), result)
	}
	w.Flush()
}
