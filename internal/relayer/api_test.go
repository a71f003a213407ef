package relayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage/memory"
)

func seededRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewRequestStore()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		status := domain.RequestPending
		if id == "c" {
			status = domain.RequestFailed
		}
		require.NoError(t, store.Insert(ctx, &domain.BridgeRequest{
			RequestID: id,
			Mint:      "mint-" + id,
			Status:    status,
			CreatedAt: int64(i),
		}))
	}
	return NewRouter(store)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAPI_Health(t *testing.T) {
	rec := get(t, seededRouter(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_Metrics(t *testing.T) {
	rec := get(t, seededRouter(t), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "solana_bridge_")
}

func TestAPI_GetRequest(t *testing.T) {
	h := seededRouter(t)

	rec := get(t, h, "/requests/b")
	require.Equal(t, http.StatusOK, rec.Code)
	var view RequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "b", view.RequestID)
	assert.Equal(t, "mint-b", view.Mint)
	assert.Equal(t, "PENDING", view.Status)

	rec = get(t, h, "/requests/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListByStatus(t *testing.T) {
	h := seededRouter(t)

	tests := []struct {
		name   string
		query  string
		code   int
		wantID []string
	}{
		{"default pending", "", http.StatusOK, []string{"a", "b"}},
		{"failed", "?status=failed", http.StatusOK, []string{"c"}},
		{"limit", "?status=PENDING&limit=1", http.StatusOK, []string{"a"}},
		{"none minted", "?status=MINTED", http.StatusOK, []string{}},
		{"bad status", "?status=LOST", http.StatusBadRequest, nil},
		{"bad limit", "?limit=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/requests"+tt.query)
			require.Equal(t, tt.code, rec.Code)
			if tt.wantID == nil {
				return
			}
			var views []RequestView
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
			ids := []string{}
			for _, v := range views {
				ids = append(ids, v.RequestID)
			}
			assert.Equal(t, tt.wantID, ids)
		})
	}
}
