package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-bridge/internal/observability"
)

// DefaultCommitment is the commitment level used when none is configured.
const DefaultCommitment = "confirmed"

// retryPolicy retries transport failures, 429 and 5xx responses with
// exponential backoff. Node error objects are final.
type retryPolicy struct {
	retries    int
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

func (p retryPolicy) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * p.multiplier)
	if d > p.max {
		return p.max
	}
	return d
}

// HTTPClient implements RPCClient over JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	http       *http.Client
	commitment string
	retry      retryPolicy
	logger     *zap.Logger
	nextID     atomic.Uint64
}

var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout bounds each HTTP round trip. Default: 30s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithMaxRetries sets how many times a retryable failure is retried. Default: 3.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.retry.retries = n }
}

// WithRetryDelay sets the first backoff delay. Default: 1s.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retry.initial = d }
}

// WithMaxDelay caps the backoff delay. Default: 10s.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retry.max = d }
}

// WithCommitment sets the commitment level sent with every read.
func WithCommitment(level string) ClientOption {
	return func(c *HTTPClient) { c.commitment = level }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = client }
}

// WithRPCLogger logs retried calls.
func WithRPCLogger(logger *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPClient creates a client for the node at endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: 30 * time.Second},
		commitment: DefaultCommitment,
		retry: retryPolicy{
			retries:    3,
			initial:    time.Second,
			max:        10 * time.Second,
			multiplier: 2,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// statusError is a non-200 HTTP response.
type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// call performs one JSON-RPC call, retrying per c.retry.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() { observability.RecordRPCLatency(method, time.Since(start).Seconds()) }()

	id := c.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	delay := c.retry.initial
	var lastErr error
	for attempt := 0; attempt <= c.retry.retries; attempt++ {
		if attempt > 0 {
			wait := delay
			var se *statusError
			if errors.As(lastErr, &se) && se.retryAfter > wait {
				wait = se.retryAfter
			}
			c.logger.Debug("retrying rpc call",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = c.retry.next(delay)
		}

		var resp *rpcResponse
		resp, lastErr = c.roundTrip(ctx, body)
		if lastErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var se *statusError
			if errors.As(lastErr, &se) && !se.retryable() {
				return fmt.Errorf("%s: %w", method, lastErr)
			}
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if resp.ID != id {
			return fmt.Errorf("%s: response id %d does not match request id %d", method, resp.ID, id)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", method, c.retry.retries+1, lastErr)
}

func (c *HTTPClient) roundTrip(ctx context.Context, body []byte) (*rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(data))}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			se.retryAfter = time.Duration(secs) * time.Second
		}
		return nil, se
	}

	var out rpcResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

type readConfig struct {
	Encoding                       string `json:"encoding,omitempty"`
	Commitment                     string `json:"commitment,omitempty"`
	MaxSupportedTransactionVersion *int   `json:"maxSupportedTransactionVersion,omitempty"`
}

type signaturesConfig struct {
	Commitment string `json:"commitment,omitempty"`
	Before     string `json:"before,omitempty"`
	Until      string `json:"until,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// GetAccountInfo fetches an account with base64 data encoding.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, key PublicKey) (*AccountInfo, error) {
	var result struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"` // [payload, encoding]
			Executable bool     `json:"executable"`
		} `json:"value"`
	}
	cfg := readConfig{Encoding: "base64", Commitment: c.commitment}
	if err := c.call(ctx, "getAccountInfo", []interface{}{key.String(), cfg}, &result); err != nil {
		return nil, err
	}
	v := result.Value
	if v == nil {
		return nil, nil
	}

	owner, err := PublicKeyFromBase58(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("account %s owner: %w", key, err)
	}
	info := &AccountInfo{Lamports: v.Lamports, Owner: owner, Executable: v.Executable}
	if len(v.Data) > 0 {
		if info.Data, err = base64.StdEncoding.DecodeString(v.Data[0]); err != nil {
			return nil, fmt.Errorf("account %s data: %w", key, err)
		}
	}
	return info, nil
}

// GetTransaction fetches a transaction with its log messages.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var result *struct {
		Slot      int64            `json:"slot"`
		BlockTime *int64           `json:"blockTime"`
		Meta      *TransactionMeta `json:"meta"`
	}
	version := 0
	cfg := readConfig{Encoding: "json", Commitment: c.commitment, MaxSupportedTransactionVersion: &version}
	if err := c.call(ctx, "getTransaction", []interface{}{signature, cfg}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	tx := &Transaction{Slot: result.Slot, Signature: signature, Meta: result.Meta}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	return tx, nil
}

// GetSignaturesForAddress lists signatures for address, newest first.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address PublicKey, opts *SignaturesOpts) ([]SignatureInfo, error) {
	cfg := signaturesConfig{Commitment: c.commitment}
	if opts != nil {
		cfg.Before, cfg.Until, cfg.Limit = opts.Before, opts.Until, opts.Limit
	}

	var result []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address.String(), cfg}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSlot returns the slot the node has reached at the configured commitment.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var slot int64
	err := c.call(ctx, "getSlot", []interface{}{readConfig{Commitment: c.commitment}}, &slot)
	return slot, err
}
