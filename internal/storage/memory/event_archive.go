package memory

import (
	"context"
	"sort"
	"sync"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

// EventArchive is an in-memory implementation of storage.EventArchive.
type EventArchive struct {
	mu     sync.RWMutex
	events []*domain.EventRecord
	keys   map[string]struct{}
}

// NewEventArchive creates a new in-memory event archive.
func NewEventArchive() *EventArchive {
	return &EventArchive{
		keys: make(map[string]struct{}),
	}
}

// Append adds events, skipping ones already archived.
func (a *EventArchive) Append(_ context.Context, events []*domain.EventRecord) error {
	for _, e := range events {
		if e == nil || e.TxSignature == "" {
			return storage.ErrInvalidInput
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range events {
		key := e.Key()
		if _, exists := a.keys[key]; exists {
			continue
		}
		a.keys[key] = struct{}{}
		eventCopy := *e
		a.events = append(a.events, &eventCopy)
	}
	return nil
}

// GetByRequestID retrieves the events of a request, ordered by slot and event index ASC.
func (a *EventArchive) GetByRequestID(_ context.Context, requestID string) ([]*domain.EventRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*domain.EventRecord
	for _, e := range a.events {
		if e.RequestID == requestID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].EventIndex < result[j].EventIndex
	})
	return result, nil
}

// Len returns the number of archived events.
func (a *EventArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}

// Verify interface compliance at compile time.
var _ storage.EventArchive = (*EventArchive)(nil)
