package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"solana-bridge/internal/observability"
	"solana-bridge/internal/solana"
)

type subscription struct {
	mentions map[string]bool
	ch       chan solana.LogNotification
	done     chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *subscription) matches(keys map[solana.PublicKey]bool) bool {
	if len(s.mentions) == 0 {
		return true
	}
	for key := range keys {
		if s.mentions[key.String()] {
			return true
		}
	}
	return false
}

// send delivers n without blocking. It reports false when the buffer is
// full and n was dropped.
func (s *subscription) send(n solana.LogNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// SubscribeLogs delivers the logs of every processed transaction that
// references one of filter.Mentions, failed transactions included. The
// channel is closed when ctx is done or the ledger is closed.
func (l *Ledger) SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		mentions: make(map[string]bool, len(filter.Mentions)),
		ch:       make(chan solana.LogNotification, l.bufSize),
		done:     make(chan struct{}),
	}
	for _, m := range filter.Mentions {
		sub.mentions[m] = true
	}

	l.subsMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = sub
	l.subsMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		l.subsMu.Lock()
		delete(l.subs, id)
		l.subsMu.Unlock()
		sub.close()
	}()

	l.logger.Debug("logs subscription added", zap.Uint64("id", id), zap.Strings("mentions", filter.Mentions))
	return sub.ch, nil
}

func (l *Ledger) publish(keys map[solana.PublicKey]bool, receipt *Receipt) {
	l.subsMu.Lock()
	targets := make([]*subscription, 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.matches(keys) {
			targets = append(targets, sub)
		}
	}
	l.subsMu.Unlock()

	n := solana.LogNotification{
		Signature: receipt.Signature,
		Slot:      int64(receipt.Slot),
		Logs:      append([]string(nil), receipt.Logs...),
	}
	if receipt.Err != nil {
		n.Err = receipt.Err.Error()
	}
	for _, sub := range targets {
		if !sub.send(n) {
			l.dropped.Add(1)
			observability.RecordDroppedNotification()
			l.logger.Warn("subscriber buffer full, notification dropped", zap.String("signature", n.Signature))
		}
	}
}

// Dropped returns how many notifications were dropped for full subscribers.
func (l *Ledger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close stops accepting transactions and closes every subscription.
func (l *Ledger) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.subsMu.Lock()
	subs := l.subs
	l.subs = make(map[uint64]*subscription)
	l.subsMu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}
