package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

// EventArchive implements storage.EventArchive using a ClickHouse
// ReplacingMergeTree keyed by (tx_signature, event_index).
type EventArchive struct {
	conn *Conn
}

// NewEventArchive creates a new EventArchive.
func NewEventArchive(conn *Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

// Append adds events, skipping ones already archived. The table engine
// collapses any duplicate that races past the existence check.
func (a *EventArchive) Append(ctx context.Context, events []*domain.EventRecord) (err error) {
	defer func(start time.Time) { observe("append_events", start, err) }(time.Now())

	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.TxSignature == "" {
			return storage.ErrInvalidInput
		}
	}

	seen := make(map[string]struct{}, len(events))
	var fresh []*domain.EventRecord
	for _, e := range events {
		if _, dup := seen[e.Key()]; dup {
			continue
		}
		seen[e.Key()] = struct{}{}

		exists, err := a.exists(ctx, e.TxSignature, e.EventIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if !exists {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO bridge_events (
			tx_signature, event_index, slot, name, request_id, mint, account, amount, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range fresh {
		err = batch.Append(
			e.TxSignature, uint32(e.EventIndex), e.Slot, e.Name,
			e.RequestID, e.Mint, e.Account, e.Amount, e.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRequestID retrieves the events of a request, ordered by slot and event index ASC.
func (a *EventArchive) GetByRequestID(ctx context.Context, requestID string) ([]*domain.EventRecord, error) {
	rows, err := a.conn.Query(ctx, `
		SELECT tx_signature, event_index, slot, name, request_id, mint, account, amount, observed_at
		FROM bridge_events FINAL
		WHERE request_id = ?
		ORDER BY slot ASC, event_index ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query events by request: %w", err)
	}
	defer rows.Close()

	var result []*domain.EventRecord
	for rows.Next() {
		var (
			e     domain.EventRecord
			index uint32
		)
		err := rows.Scan(&e.TxSignature, &index, &e.Slot, &e.Name, &e.RequestID, &e.Mint, &e.Account, &e.Amount, &e.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventIndex = int(index)
		result = append(result, &e)
	}
	return result, rows.Err()
}

func (a *EventArchive) exists(ctx context.Context, signature string, index int) (bool, error) {
	var count uint64
	err := a.conn.QueryRow(ctx, `
		SELECT count()
		FROM bridge_events FINAL
		WHERE tx_signature = ? AND event_index = ?
	`, signature, uint32(index)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
