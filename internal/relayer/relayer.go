// Package relayer watches the bridge program's logs and carries lock
// requests to the off-chain side.
//
// Every decoded event is archived. A NewRequestEvent becomes a
// BridgeRequest that is handed to a Handler, retried with exponential
// backoff. A TokenMintedEvent records the wrapped asset and completes the
// request it correlates with. The two may arrive in either order.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/domain"
	"solana-bridge/internal/observability"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/storage"
)

// Handler carries a locked request to the destination side, typically by
// minting the wrapped asset.
type Handler interface {
	HandleRequest(ctx context.Context, req *domain.BridgeRequest) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *domain.BridgeRequest) error

// HandleRequest calls f.
func (f HandlerFunc) HandleRequest(ctx context.Context, req *domain.BridgeRequest) error {
	return f(ctx, req)
}

// Options contains configuration for creating a Relayer.
type Options struct {
	ProgramID solana.PublicKey
	Source    solana.WSClient  // log subscription source
	RPC       solana.RPCClient // optional, enables Backfill

	Requests storage.RequestStore
	Assets   storage.WrappedAssetStore
	Archive  storage.EventArchive  // optional
	Seen     storage.SeenCache     // optional
	Progress storage.ProgressStore // optional

	Handler     Handler       // optional; requests stay PENDING without one
	MaxAttempts int           // Default: 3
	RetryDelay  time.Duration // Default: 500ms
	MaxDelay    time.Duration // Default: 10s

	Logger *zap.Logger
	Now    func() time.Time
}

// Relayer consumes bridge events from a log subscription.
type Relayer struct {
	programID solana.PublicKey
	source    solana.WSClient
	rpc       solana.RPCClient

	requests storage.RequestStore
	assets   storage.WrappedAssetStore
	archive  storage.EventArchive
	seen     storage.SeenCache
	progress storage.ProgressStore

	handler     Handler
	maxAttempts int
	retryDelay  time.Duration
	maxDelay    time.Duration

	logger *zap.Logger
	now    func() time.Time

	// holdProgress is set once an event fails to store. Progress then stays
	// before it so Backfill after a restart replays it.
	holdProgress atomic.Bool
}

// New creates a relayer.
func New(opts Options) (*Relayer, error) {
	if opts.Source == nil {
		return nil, errors.New("relayer: source is required")
	}
	if opts.Requests == nil || opts.Assets == nil {
		return nil, errors.New("relayer: request and wrapped asset stores are required")
	}

	programID := opts.ProgramID
	if programID.IsZero() {
		programID = solana.BridgeProgramID
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = 500 * time.Millisecond
	}

	maxDelay := opts.MaxDelay
	if maxDelay == 0 {
		maxDelay = 10 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Relayer{
		programID:   programID,
		source:      opts.Source,
		rpc:         opts.RPC,
		requests:    opts.Requests,
		assets:      opts.Assets,
		archive:     opts.Archive,
		seen:        opts.Seen,
		progress:    opts.Progress,
		handler:     opts.Handler,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		maxDelay:    maxDelay,
		logger:      logger.Named("relayer"),
		now:         now,
	}, nil
}

// Requests returns the request store, for status queries.
func (r *Relayer) Requests() storage.RequestStore { return r.requests }

// Run subscribes to the bridge program's logs and processes notifications
// until ctx is cancelled or the subscription ends.
func (r *Relayer) Run(ctx context.Context) error {
	ch, err := r.Subscribe(ctx)
	if err != nil {
		return err
	}
	return r.Consume(ctx, ch)
}

// Subscribe opens the log subscription Consume reads from.
func (r *Relayer) Subscribe(ctx context.Context) (<-chan solana.LogNotification, error) {
	ch, err := r.source.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{r.programID.String()}})
	if err != nil {
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}
	r.logger.Info("subscribed", zap.Stringer("program", r.programID))
	return ch, nil
}

// Consume processes notifications from ch until ctx is cancelled or ch is
// closed.
func (r *Relayer) Consume(ctx context.Context, ch <-chan solana.LogNotification) error {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relayer stopping")
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("log subscription closed")
			}
			_ = r.Process(ctx, n)
		}
	}
}

// Process handles one log notification. Failed transactions are skipped.
// It returns the storage errors that kept events from being recorded; those
// events are forgotten by the seen cache so a redelivery retries them.
func (r *Relayer) Process(ctx context.Context, n solana.LogNotification) error {
	observability.RecordNotification()
	observability.UpdateHighestSlot(n.Slot)

	if n.Failed() {
		r.logger.Debug("skipping failed transaction", zap.String("signature", n.Signature), zap.Any("err", n.Err))
		return nil
	}

	events, err := bridge.ParseEvents(r.programID, n.Logs)
	if err != nil {
		observability.RecordEventError("unknown", "decode")
		r.logger.Warn("decode events", zap.String("signature", n.Signature), zap.Error(err))
	}

	var records []*domain.EventRecord
	for i, ev := range events {
		rec := r.record(n, i, ev)

		if r.seen != nil {
			first, err := r.seen.MarkSeen(ctx, rec.Key())
			if err != nil {
				r.logger.Warn("seen cache unavailable", zap.String("key", rec.Key()), zap.Error(err))
			} else if !first {
				observability.RecordDuplicateNotification()
				continue
			}
		}

		records = append(records, rec)
		observability.RecordEventDecoded(ev.EventName(), rec.ObservedAt/1000)
	}
	if len(records) == 0 {
		return nil
	}

	if r.archive != nil {
		if err := r.archive.Append(ctx, records); err != nil {
			observability.RecordEventError("archive", "storage")
			r.logger.Error("archive events", zap.String("signature", n.Signature), zap.Error(err))
		}
	}

	var errs []error
	for _, rec := range records {
		var err error
		switch rec.Name {
		case bridge.EventNewRequest:
			err = r.onNewRequest(ctx, rec)
		case bridge.EventTokenMinted:
			err = r.onTokenMinted(ctx, rec)
		}
		if err == nil {
			continue
		}
		errs = append(errs, err)
		if r.seen != nil {
			if ferr := r.seen.Forget(ctx, rec.Key()); ferr != nil {
				r.logger.Warn("forget seen key", zap.String("key", rec.Key()), zap.Error(ferr))
			}
		}
	}

	if len(errs) > 0 && !r.holdProgress.Swap(true) {
		r.logger.Warn("holding progress until failed events are replayed",
			zap.String("signature", n.Signature), zap.Int64("slot", n.Slot))
	}
	if r.progress != nil && n.Slot >= 0 && !r.holdProgress.Load() {
		p := &storage.Progress{Slot: uint64(n.Slot), Signature: n.Signature}
		if err := r.progress.SetLastProcessed(ctx, p); err != nil {
			r.logger.Warn("save progress", zap.Error(err))
		}
	}
	return errors.Join(errs...)
}

func (r *Relayer) record(n solana.LogNotification, index int, ev bridge.Event) *domain.EventRecord {
	rec := &domain.EventRecord{
		TxSignature: n.Signature,
		EventIndex:  index,
		Slot:        n.Slot,
		Name:        ev.EventName(),
		RequestID:   ev.Correlation(),
		ObservedAt:  r.now().UnixMilli(),
	}
	switch e := ev.(type) {
	case bridge.NewRequestEvent:
		rec.Mint = e.Mint.String()
		rec.Account = e.UserTokenAccount.String()
		rec.Amount = e.Amount
	case bridge.TokenMintedEvent:
		rec.Mint = e.Mint.String()
		rec.Account = e.DestinationTokenAccount.String()
	}
	return rec
}

func (r *Relayer) onNewRequest(ctx context.Context, rec *domain.EventRecord) error {
	now := r.now().UnixMilli()
	req := &domain.BridgeRequest{
		RequestID:        rec.RequestID,
		Mint:             rec.Mint,
		UserTokenAccount: rec.Account,
		Amount:           rec.Amount,
		TxSignature:      rec.TxSignature,
		Slot:             rec.Slot,
		Status:           domain.RequestPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	log := r.logger.With(zap.String("request_id", req.RequestID), zap.String("signature", req.TxSignature))

	if err := r.requests.Insert(ctx, req); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDuplicateRequest()
			log.Info("duplicate request id, skipping")
			return nil
		}
		observability.RecordEventError(rec.Name, "storage")
		log.Error("insert request", zap.Error(err))
		return fmt.Errorf("insert request %s: %w", req.RequestID, err)
	}
	log.Info("lock observed", zap.String("mint", req.Mint), zap.Uint64("amount", req.Amount))

	// The mint may already have been observed.
	asset, err := r.assets.GetByRequestID(ctx, req.RequestID)
	if err == nil {
		// A failure here is retried by the TokenMinted redelivery.
		_ = r.complete(ctx, req.RequestID, asset.Mint, req.Attempts)
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Warn("lookup wrapped asset", zap.Error(err))
	}

	if r.handler != nil {
		r.dispatch(ctx, req, log)
	}
	return nil
}

// dispatch runs the handler with exponential backoff and records the outcome.
func (r *Relayer) dispatch(ctx context.Context, req *domain.BridgeRequest, log *zap.Logger) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := r.backoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		lastErr = r.handler.HandleRequest(ctx, req)
		observability.RecordHandlerAttempt(lastErr)
		if lastErr == nil {
			break
		}
		log.Warn("handler failed", zap.Int("attempt", attempts), zap.Error(lastErr))
	}

	u := &storage.RequestUpdate{
		Status:    domain.RequestDispatched,
		Attempts:  attempts,
		UpdatedAt: r.now().UnixMilli(),
	}
	if lastErr != nil {
		u.Status = domain.RequestFailed
		u.LastError = lastErr.Error()
		observability.RecordEventError(bridge.EventNewRequest, "handler")
	}

	// A mint observed during dispatch has already completed the request.
	if current, err := r.requests.GetByID(ctx, req.RequestID); err == nil && current.Status == domain.RequestMinted {
		return
	}

	if err := r.requests.Update(ctx, req.RequestID, u); err != nil {
		log.Error("update request", zap.Error(err))
		return
	}
	log.Info("request dispatched", zap.String("status", u.Status.String()), zap.Int("attempts", attempts))
}

// backoff sleeps retryDelay * 2^(attempt-1), capped at maxDelay.
func (r *Relayer) backoff(ctx context.Context, attempt int) error {
	delay := r.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (r *Relayer) onTokenMinted(ctx context.Context, rec *domain.EventRecord) error {
	log := r.logger.With(zap.String("request_id", rec.RequestID), zap.String("mint", rec.Mint))

	asset := &domain.WrappedAsset{
		Mint:                    rec.Mint,
		DestinationTokenAccount: rec.Account,
		RequestID:               rec.RequestID,
		TxSignature:             rec.TxSignature,
		Slot:                    rec.Slot,
		CreatedAt:               r.now().UnixMilli(),
	}
	if err := r.assets.Insert(ctx, asset); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordEventError(rec.Name, "storage")
		log.Error("insert wrapped asset", zap.Error(err))
		return fmt.Errorf("insert wrapped asset %s: %w", rec.Mint, err)
	}
	log.Info("wrapped asset minted", zap.String("destination", rec.Account))

	if rec.RequestID == "" {
		return nil
	}
	attempts := 0
	if req, err := r.requests.GetByID(ctx, rec.RequestID); err == nil {
		attempts = req.Attempts
	}
	return r.complete(ctx, rec.RequestID, rec.Mint, attempts)
}

// complete marks a request MINTED. A request not yet observed is left for
// onNewRequest to complete.
func (r *Relayer) complete(ctx context.Context, requestID, mint string, attempts int) error {
	err := r.requests.Update(ctx, requestID, &storage.RequestUpdate{
		Status:      domain.RequestMinted,
		Attempts:    attempts,
		WrappedMint: &mint,
		UpdatedAt:   r.now().UnixMilli(),
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		observability.RecordEventError(bridge.EventTokenMinted, "storage")
		r.logger.Error("complete request", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("complete request %s: %w", requestID, err)
	}
	return nil
}
