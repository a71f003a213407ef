package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-bridge/internal/relayer"
	"solana-bridge/internal/solana"
)

// RelayOptions holds relay flags.
type RelayOptions struct {
	Webhook string
}

// handler returns nil without a webhook; requests then stay PENDING until
// the backend's mint is observed.
func (o *RelayOptions) handler(logger *zap.Logger) relayer.Handler {
	if o.Webhook == "" {
		logger.Info("no webhook configured, observing only")
		return nil
	}
	return &relayer.WebhookHandler{URL: o.Webhook}
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(opts *RootOptions) *cobra.Command {
	relay := &RelayOptions{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the relayer against a live node with the configured stores and HTTP API",
		Long: `Subscribes to the bridge program's logs over WebSocket and records every
lock and mint. With --webhook set, each new lock request is posted there as
JSON and retried with backoff until accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), opts, relay)
		},
	}

	cmd.Flags().StringVar(&relay.Webhook, "webhook", "", "URL that receives new lock requests")

	return cmd
}

func runRelay(ctx context.Context, opts *RootOptions, relay *RelayOptions) error {
	cfg := opts.Config
	logger := opts.Logger.Named("relay")

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	rpc := rpcClient(opts)

	ws, err := solana.NewLogsClient(ctx, cfg.Solana.WSEndpoint,
		solana.WithWSCommitment(cfg.Solana.Commitment),
		solana.WithWSLogger(logger))
	if err != nil {
		return err
	}
	defer ws.Close()

	r, err := relayer.New(relayer.Options{
		ProgramID:   cfg.ProgramID(),
		Source:      ws,
		RPC:         rpc,
		Requests:    st.Requests,
		Assets:      st.Assets,
		Archive:     st.Archive,
		Seen:        st.Seen,
		Progress:    st.Progress,
		Handler:     relay.handler(logger),
		MaxAttempts: cfg.Relayer.MaxAttempts,
		RetryDelay:  cfg.Relayer.RetryDelay,
		MaxDelay:    cfg.Relayer.MaxDelay,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// Subscribe before backfilling so nothing lands between the two.
	ch, err := r.Subscribe(ctx)
	if err != nil {
		return err
	}
	if cfg.Relayer.Backfill {
		result, err := r.Backfill(ctx)
		if err != nil {
			return err
		}
		logger.Info("backfill complete",
			zap.Int("transactions", result.Transactions),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", result.Duration))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- r.Consume(ctx, ch) }()
	go func() { errCh <- relayer.Serve(ctx, cfg.HTTP.Addr, relayer.NewRouter(st.Requests), logger) }()

	err = <-errCh
	cancel()
	<-errCh
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
