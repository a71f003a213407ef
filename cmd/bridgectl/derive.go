package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

// DerivedAddress is the output of every derive subcommand.
type DerivedAddress struct {
	Kind    string           `json:"kind"`
	Address solana.PublicKey `json:"address"`
	Bump    uint8            `json:"bump"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive bridge, mint, metadata, edition and token account addresses",
	}

	var seed string
	bridgeCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Derive the registry address for a seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := opts.Config.Bridge.Seed
			if seed != "" {
				v, err := strconv.ParseUint(seed, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid seed %q: %w", seed, err)
				}
				s = v
			}
			addr, err := pda.BridgeAddress(opts.Config.ProgramID(), s)
			return printDerived(opts, cmd, "bridge", addr, err)
		},
	}
	bridgeCmd.Flags().StringVar(&seed, "seed", "", "registry seed (default: bridge.seed from config)")

	var origin string
	var id uint64
	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Derive the wrapped asset mint for an origin address and id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := parseOrigin(origin)
			if err != nil {
				return err
			}
			addr, err := pda.MintAddress(opts.Config.ProgramID(), o, id)
			return printDerived(opts, cmd, "mint", addr, err)
		},
	}
	mintCmd.Flags().StringVar(&origin, "origin", "", "origin collection address (required)")
	mintCmd.Flags().Uint64Var(&id, "id", 0, "asset id")
	_ = mintCmd.MarkFlagRequired("origin")

	metadataCmd := &cobra.Command{
		Use:   "metadata <mint>",
		Short: "Derive the metadata account of a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return err
			}
			addr, err := pda.MetadataAddress(mint)
			return printDerived(opts, cmd, "metadata", addr, err)
		},
	}

	editionCmd := &cobra.Command{
		Use:   "edition <mint>",
		Short: "Derive the master edition account of a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return err
			}
			addr, err := pda.MasterEditionAddress(mint)
			return printDerived(opts, cmd, "edition", addr, err)
		},
	}

	ataCmd := &cobra.Command{
		Use:   "ata <owner> <mint>",
		Short: "Derive the associated token account of owner for mint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("owner: %w", err)
			}
			mint, err := solana.PublicKeyFromBase58(args[1])
			if err != nil {
				return fmt.Errorf("mint: %w", err)
			}
			addr, err := pda.AssociatedTokenAddress(owner, mint)
			return printDerived(opts, cmd, "ata", addr, err)
		},
	}

	cmd.AddCommand(bridgeCmd, mintCmd, metadataCmd, editionCmd, ataCmd)
	return cmd
}

// parseOrigin validates 0x-prefixed 20-byte addresses as EVM addresses and
// splits anything else as is.
func parseOrigin(s string) (pda.Origin, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 42 {
		return pda.SplitEVMOrigin(s)
	}
	return pda.SplitOrigin(s)
}

func printDerived(opts *RootOptions, cmd *cobra.Command, kind string, addr pda.Address, err error) error {
	if err != nil {
		return err
	}
	out := DerivedAddress{Kind: kind, Address: addr.Key, Bump: addr.Bump}
	return render(opts, cmd.OutOrStdout(), out, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\tbump=%d\n", kind, addr.Key, addr.Bump)
	})
}
