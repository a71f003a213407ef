package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-bridge/internal/domain"
)

// WebhookHandler posts each request as JSON to URL. Any 2xx response
// accepts the request; anything else is retried by the relayer.
type WebhookHandler struct {
	URL    string
	Client *http.Client // Default: 10s timeout
}

// HandleRequest posts req to the webhook.
func (h *WebhookHandler) HandleRequest(ctx context.Context, req *domain.BridgeRequest) error {
	body, err := json.Marshal(viewOf(req))
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
