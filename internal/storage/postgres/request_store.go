package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

// RequestStore implements storage.RequestStore using PostgreSQL.
type RequestStore struct {
	pool *Pool
}

// NewRequestStore creates a new RequestStore.
func NewRequestStore(pool *Pool) *RequestStore {
	return &RequestStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RequestStore = (*RequestStore)(nil)

const requestColumns = `request_id, mint, user_token_account, amount, tx_signature, slot,
		status, attempts, last_error, wrapped_mint, created_at, updated_at`

// Insert adds a new request. Returns ErrDuplicateKey if request_id exists.
func (s *RequestStore) Insert(ctx context.Context, r *domain.BridgeRequest) (err error) {
	defer func(start time.Time) { observe("insert_request", start, err) }(time.Now())
	if r == nil || r.RequestID == "" || !r.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO bridge_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RequestID,
		r.Mint,
		r.UserTokenAccount,
		int64(r.Amount),
		r.TxSignature,
		r.Slot,
		string(r.Status),
		r.Attempts,
		r.LastError,
		r.WrappedMint,
		r.CreatedAt,
		r.UpdatedAt,
	)
	return storeError("insert request", err)
}

// GetByID retrieves a request by its id. Returns ErrNotFound if not exists.
func (s *RequestStore) GetByID(ctx context.Context, requestID string) (*domain.BridgeRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM bridge_requests
		WHERE request_id = $1
	`

	r, err := scanRequest(s.pool.QueryRow(ctx, query, requestID))
	if err != nil {
		return nil, storeError("get request", err)
	}
	return r, nil
}

// GetByStatus retrieves up to limit requests in status, ordered by created_at ASC.
func (s *RequestStore) GetByStatus(ctx context.Context, status domain.RequestStatus, limit int) ([]*domain.BridgeRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM bridge_requests
		WHERE status = $1
		ORDER BY created_at ASC, request_id ASC
	`
	args := []any{string(status)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests by status: %w", err)
	}
	defer rows.Close()

	var result []*domain.BridgeRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Update applies u to a request. Returns ErrNotFound if not exists.
func (s *RequestStore) Update(ctx context.Context, requestID string, u *storage.RequestUpdate) (err error) {
	defer func(start time.Time) { observe("update_request", start, err) }(time.Now())
	if u == nil || !u.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE bridge_requests
		SET status = $2,
		    attempts = $3,
		    last_error = $4,
		    wrapped_mint = COALESCE($5, wrapped_mint),
		    updated_at = $6
		WHERE request_id = $1
	`, requestID, string(u.Status), u.Attempts, u.LastError, u.WrappedMint, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanRequest(row pgx.Row) (*domain.BridgeRequest, error) {
	var (
		r      domain.BridgeRequest
		amount int64
		status string
	)
	err := row.Scan(
		&r.RequestID,
		&r.Mint,
		&r.UserTokenAccount,
		&amount,
		&r.TxSignature,
		&r.Slot,
		&status,
		&r.Attempts,
		&r.LastError,
		&r.WrappedMint,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Amount = uint64(amount)
	r.Status = domain.RequestStatus(status)
	return &r, nil
}
