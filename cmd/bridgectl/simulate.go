package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/client"
	"solana-bridge/internal/config"
	"solana-bridge/internal/domain"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/relayer"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/storage/memory"
)

// SimulateOptions holds simulate flags.
type SimulateOptions struct {
	Seed       string
	RequestID  string
	Origin     string
	Deployment string
	Timeout    time.Duration
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// SimulationReport is the output of simulate.
type SimulationReport struct {
	Deployment config.Deployment `json:"deployment"`
	RequestID  string            `json:"requestId"`
	Scenarios  []ScenarioResult  `json:"scenarios"`
}

// Passed reports whether every scenario passed.
func (r *SimulationReport) Passed() bool {
	for _, s := range r.Scenarios {
		if !s.Passed {
			return false
		}
	}
	return true
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(opts *RootOptions) *cobra.Command {
	sim := &SimulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the bridge lifecycle against an in-process ledger with a relayer attached",
		Long: `Initializes a bridge, locks a token, mints the wrapped asset and burns the
escrow on an in-process ledger. A relayer with in-memory stores watches the
program logs throughout. The deployment record is written on success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sim.Deployment == "" {
				sim.Deployment = opts.Config.Bridge.Deployment
			}
			report, err := runSimulation(cmd.Context(), opts, sim)
			if err != nil {
				return err
			}
			if err := render(opts, cmd.OutOrStdout(), report, func(w io.Writer) {
				fmt.Fprintf(w, "bridge %s (seed %d)\n", report.Deployment.Bridge, report.Deployment.Seed)
				for _, s := range report.Scenarios {
					status := "PASS"
					if !s.Passed {
						status = "FAIL"
					}
					fmt.Fprintf(w, "%s  %-28s %s\n", status, s.Name, s.Detail)
				}
			}); err != nil {
				return err
			}
			if !report.Passed() {
				return errors.New("simulation failed")
			}
			if sim.Deployment != "" {
				return config.WriteDeployment(sim.Deployment, &report.Deployment)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sim.Seed, "seed", "", "registry seed (default: random)")
	cmd.Flags().StringVar(&sim.RequestID, "request-id", "", "lock request id (default: random UUID)")
	cmd.Flags().StringVar(&sim.Origin, "origin", "0x0000000000000000000000000000000000000000", "origin address of the wrapped asset")
	cmd.Flags().StringVar(&sim.Deployment, "deployment", "", "deployment record path (default: bridge.deployment from config)")
	cmd.Flags().DurationVar(&sim.Timeout, "timeout", 5*time.Second, "how long to wait for the relayer")

	return cmd
}

// simulation is the state shared by the scenarios.
type simulation struct {
	opts   *SimulateOptions
	logger *zap.Logger

	ledger  *ledger.Ledger
	client  *client.Client
	relayer *relayer.Relayer

	requests *memory.RequestStore
	archive  *memory.EventArchive

	seed      uint64
	requestID string
	origin    pda.Origin

	backend   solana.Keypair
	user      solana.Keypair
	recipient solana.Keypair

	mint    solana.PublicKey
	account solana.PublicKey
	escrow  solana.PublicKey
}

func runSimulation(ctx context.Context, root *RootOptions, opts *SimulateOptions) (*SimulationReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newSimulation(root, opts)
	if err != nil {
		return nil, err
	}
	defer s.ledger.Close()

	ch, err := s.relayer.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.relayer.Consume(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("relayer stopped", zap.Error(err))
		}
	}()

	report := &SimulationReport{RequestID: s.requestID}
	scenarios := []struct {
		name string
		run  func(context.Context) (string, error)
	}{
		{"A initialize bridge", s.initialize},
		{"B lock token", s.lock},
		{"C mint wrapped asset", s.mintWrapped},
		{"D burn escrow", s.burn},
	}
	for _, sc := range scenarios {
		detail, err := sc.run(ctx)
		result := ScenarioResult{Name: sc.name, Passed: err == nil, Detail: detail}
		if err != nil {
			result.Detail = err.Error()
		}
		report.Scenarios = append(report.Scenarios, result)
		if err != nil {
			break
		}
	}

	report.Deployment = config.Deployment{
		ProgramID: s.client.ProgramID(),
		Bridge:    s.client.Bridge(),
		Seed:      s.seed,
		Timestamp: time.Now().UTC(),
	}
	return report, nil
}

func newSimulation(root *RootOptions, opts *SimulateOptions) (*simulation, error) {
	s := &simulation{opts: opts, logger: root.Logger}

	var err error
	if s.seed, err = parseSeed(opts.Seed); err != nil {
		return nil, err
	}
	if s.origin, err = parseOrigin(opts.Origin); err != nil {
		return nil, err
	}
	s.requestID = opts.RequestID
	if s.requestID == "" {
		s.requestID = uuid.NewString()
	}

	if path := root.Config.Bridge.BackendKeypair; path != "" {
		s.backend, err = config.LoadKeypair(path)
	} else {
		s.backend, err = solana.NewKeypair()
	}
	if err != nil {
		return nil, err
	}
	if s.user, err = solana.NewKeypair(); err != nil {
		return nil, err
	}
	if s.recipient, err = solana.NewKeypair(); err != nil {
		return nil, err
	}

	programID := root.Config.ProgramID()
	s.ledger = client.NewLocalLedger(programID, ledger.Options{Logger: root.Logger})
	s.client, err = client.New(client.Config{ProgramID: programID, Seed: s.seed, Logger: root.Logger}, s.ledger, s.ledger)
	if err != nil {
		s.ledger.Close()
		return nil, err
	}

	s.requests = memory.NewRequestStore()
	s.archive = memory.NewEventArchive()
	s.relayer, err = relayer.New(relayer.Options{
		ProgramID: programID,
		Source:    s.ledger,
		Requests:  s.requests,
		Assets:    memory.NewWrappedAssetStore(),
		Archive:   s.archive,
		Seen:      memory.NewSeenCache(root.Config.Relayer.DedupTTL),
		Progress:  memory.NewProgressStore(),
		Logger:    root.Logger,
	})
	if err != nil {
		s.ledger.Close()
		return nil, err
	}
	return s, nil
}

func parseSeed(s string) (uint64, error) {
	if s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seed %q: %w", s, err)
		}
		return v, nil
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (s *simulation) initialize(ctx context.Context) (string, error) {
	if _, err := s.client.InitializeBridge(ctx, s.backend); err != nil {
		return "", err
	}
	reg, err := s.client.Registry(ctx)
	if err != nil {
		return "", err
	}
	if reg.Seed != s.seed {
		return "", fmt.Errorf("registry seed %d, want %d", reg.Seed, s.seed)
	}
	if reg.Backend != s.backend.PublicKey() {
		return "", fmt.Errorf("registry backend %s, want %s", reg.Backend, s.backend.PublicKey())
	}
	return fmt.Sprintf("registry %s backend %s", s.client.Bridge(), reg.Backend), nil
}

func (s *simulation) lock(ctx context.Context) (string, error) {
	var err error
	if s.mint, err = s.client.CreateMint(ctx, s.backend, 0); err != nil {
		return "", err
	}
	if s.account, err = s.client.CreateTokenAccount(ctx, s.backend, s.user.PublicKey(), s.mint); err != nil {
		return "", err
	}
	if _, err = s.client.MintTo(ctx, s.backend, s.mint, s.account, 1); err != nil {
		return "", err
	}
	if _, err = s.client.Approve(ctx, s.user, s.account, 1); err != nil {
		return "", err
	}
	if _, err = s.client.NewRequest(ctx, s.user, s.mint, s.account, s.requestID); err != nil {
		return "", err
	}

	if err := s.expectBalance(ctx, s.account, 0); err != nil {
		return "", err
	}
	if s.escrow, err = s.client.EscrowAddress(s.mint); err != nil {
		return "", err
	}
	if err := s.expectBalance(ctx, s.escrow, 1); err != nil {
		return "", err
	}

	err = s.waitFor(ctx, func() (bool, error) {
		events, err := s.archive.GetByRequestID(ctx, s.requestID)
		if err != nil {
			return false, err
		}
		if len(events) > 1 {
			return false, fmt.Errorf("lock event observed %d times", len(events))
		}
		return len(events) == 1 && events[0].Mint == s.mint.String(), nil
	})
	if err != nil {
		return "", fmt.Errorf("relayer: %w", err)
	}
	return fmt.Sprintf("mint %s escrow %s", s.mint, s.escrow), nil
}

func (s *simulation) mintWrapped(ctx context.Context) (string, error) {
	_, addrs, err := s.client.CreateNFT(ctx, s.backend, s.recipient.PublicKey(), bridge.CreateNFTArgs{
		ID:        7,
		Origin:    s.origin,
		Name:      "Test NFT",
		Symbol:    "TEST",
		URI:       "ipfs://QmTestNFTMetadata",
		RequestID: s.requestID,
	})
	if err != nil {
		return "", err
	}
	if err := s.expectBalance(ctx, addrs.Destination, 1); err != nil {
		return "", err
	}
	meta, err := s.client.Metadata(ctx, addrs.Mint)
	if err != nil {
		return "", err
	}
	if meta.Data.Name != "Test NFT" {
		return "", fmt.Errorf("metadata name %q", meta.Data.Name)
	}

	err = s.waitFor(ctx, func() (bool, error) {
		req, err := s.requests.GetByID(ctx, s.requestID)
		if err != nil {
			return false, nil
		}
		return req.Status == domain.RequestMinted, nil
	})
	if err != nil {
		return "", fmt.Errorf("relayer: %w", err)
	}
	return fmt.Sprintf("wrapped mint %s held by %s", addrs.Mint, s.recipient.PublicKey()), nil
}

func (s *simulation) burn(ctx context.Context) (string, error) {
	if _, err := s.client.BurnToken(ctx, s.backend, s.mint); err != nil {
		return "", err
	}
	if err := s.expectBalance(ctx, s.escrow, 0); err != nil {
		return "", err
	}
	_, err := s.client.BurnToken(ctx, s.backend, s.mint)
	if !errors.Is(err, bridge.ErrInsufficientBalance) {
		return "", fmt.Errorf("second burn: got %v, want %s", err, bridge.ErrInsufficientBalance.Name)
	}
	return "escrow emptied; second burn rejected with " + bridge.ErrInsufficientBalance.Name, nil
}

func (s *simulation) expectBalance(ctx context.Context, account solana.PublicKey, want uint64) error {
	got, err := s.client.Balance(ctx, account)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("balance of %s is %d, want %d", account, got, want)
	}
	return nil
}

// waitFor polls cond until it holds, fails, or the timeout passes.
func (s *simulation) waitFor(ctx context.Context, cond func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		ok, err := cond()
		if err != nil || ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
