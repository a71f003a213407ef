package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/client"
	"solana-bridge/internal/metadata"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Fetch and decode bridge accounts and transactions over RPC",
	}
	cmd.AddCommand(newInspectRegistryCommand(opts))
	cmd.AddCommand(newInspectMetadataCommand(opts))
	cmd.AddCommand(newInspectTxCommand(opts))
	return cmd
}

func rpcClient(opts *RootOptions) *solana.HTTPClient {
	return solana.NewHTTPClient(opts.Config.Solana.RPCEndpoint,
		solana.WithCommitment(opts.Config.Solana.Commitment),
		solana.WithRPCLogger(opts.Logger))
}

func readClient(opts *RootOptions, reader client.AccountReader) (*client.Client, error) {
	return client.New(client.Config{
		ProgramID: opts.Config.ProgramID(),
		Seed:      opts.Config.Bridge.Seed,
		Logger:    opts.Logger,
	}, nil, reader)
}

// RegistryView is the decoded registry with its address.
type RegistryView struct {
	Address solana.PublicKey `json:"address"`
	Backend solana.PublicKey `json:"backend"`
	Seed    uint64           `json:"seed,string"`
	Bump    uint8            `json:"bump"`
}

func newInspectRegistryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "registry [address]",
		Short: "Decode the bridge registry (default: derived from bridge.seed)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readClient(opts, rpcClient(opts))
			if err != nil {
				return err
			}

			key := c.Bridge()
			switch {
			case len(args) == 1:
				key, err = solana.PublicKeyFromBase58(args[0])
			case opts.Config.Bridge.Registry != "":
				key, err = solana.PublicKeyFromBase58(opts.Config.Bridge.Registry)
			}
			if err != nil {
				return err
			}

			reg, err := c.RegistryAt(cmd.Context(), key)
			if err != nil {
				return err
			}
			view := RegistryView{Address: key, Backend: reg.Backend, Seed: reg.Seed, Bump: reg.Bump}
			return render(opts, cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintf(w, "registry  %s\nbackend   %s\nseed      %d\nbump      %d\n",
					view.Address, view.Backend, view.Seed, view.Bump)
			})
		},
	}
}

// AssetView is a wrapped asset's mint, metadata and edition.
type AssetView struct {
	Mint          solana.PublicKey        `json:"mint"`
	Supply        uint64                  `json:"supply"`
	Decimals      uint8                   `json:"decimals"`
	MintAuthority *solana.PublicKey       `json:"mintAuthority"`
	Metadata      *metadata.Metadata      `json:"metadata"`
	Edition       *metadata.MasterEdition `json:"edition,omitempty"`
}

func newInspectMetadataCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <mint>",
		Short: "Decode a mint with its metadata and master edition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mintKey, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return err
			}
			c, err := readClient(opts, rpcClient(opts))
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			mint, err := c.Mint(ctx, mintKey)
			if err != nil {
				return err
			}
			meta, err := c.Metadata(ctx, mintKey)
			if err != nil {
				return err
			}
			edition, err := c.MasterEdition(ctx, mintKey)
			if err != nil && !errors.Is(err, client.ErrAccountNotFound) {
				return err
			}

			view := assetView(mintKey, mint, meta, edition)
			return render(opts, cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintf(w, "mint      %s\nsupply    %d\ndecimals  %d\n", view.Mint, view.Supply, view.Decimals)
				fmt.Fprintf(w, "name      %s\nsymbol    %s\nuri       %s\nmutable   %t\n",
					meta.Data.Name, meta.Data.Symbol, meta.Data.URI, meta.IsMutable)
				if edition != nil {
					fmt.Fprintf(w, "edition   supply=%d", edition.Supply)
					if edition.MaxSupply != nil {
						fmt.Fprintf(w, " max_supply=%d", *edition.MaxSupply)
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
}

func assetView(key solana.PublicKey, mint *token.Mint, meta *metadata.Metadata, edition *metadata.MasterEdition) AssetView {
	return AssetView{
		Mint:          key,
		Supply:        mint.Supply,
		Decimals:      mint.Decimals,
		MintAuthority: mint.MintAuthority,
		Metadata:      meta,
		Edition:       edition,
	}
}

// EventView is one decoded bridge event.
type EventView struct {
	Name  string       `json:"name"`
	Event bridge.Event `json:"event"`
}

func newInspectTxCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tx <signature>",
		Short: "Decode the bridge events of a confirmed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := rpcClient(opts).GetTransaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if tx == nil || tx.Meta == nil {
				return fmt.Errorf("transaction %s not found", args[0])
			}
			events, err := bridge.ParseEvents(opts.Config.ProgramID(), tx.Meta.LogMessages)
			if err != nil {
				return err
			}
			views := make([]EventView, 0, len(events))
			for _, ev := range events {
				views = append(views, EventView{Name: ev.EventName(), Event: ev})
			}
			return render(opts, cmd.OutOrStdout(), views, func(w io.Writer) {
				fmt.Fprintf(w, "slot %d", tx.Slot)
				if tx.Meta.Failed() {
					fmt.Fprintf(w, " failed: %v", tx.Meta.Err)
				}
				fmt.Fprintln(w)
				for _, v := range views {
					fmt.Fprintf(w, "%s\t%+v\n", v.Name, v.Event)
				}
			})
		},
	}
}
