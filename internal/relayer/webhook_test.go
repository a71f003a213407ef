package relayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/domain"
)

func TestWebhookHandler(t *testing.T) {
	var got RequestView
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h := &WebhookHandler{URL: srv.URL}
	err := h.HandleRequest(context.Background(), &domain.BridgeRequest{
		RequestID: "req-1",
		Mint:      "mint-1",
		Amount:    1,
		Status:    domain.RequestPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "mint-1", got.Mint)
}

func TestWebhookHandler_RetriedOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := &WebhookHandler{URL: srv.URL}
	f := newFixture(t, h.HandleRequest)
	f.relayer.Process(context.Background(), notification("sig-1", 1, lockEvent("req-1")))

	req, err := f.requests.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDispatched, req.Status)
	assert.Equal(t, 2, req.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}
