package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/observability"
	"solana-bridge/internal/storage"
)

// APIResponse is the body of status and error replies.
type APIResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RequestView is the JSON form of a BridgeRequest.
type RequestView struct {
	RequestID        string  `json:"requestId"`
	Mint             string  `json:"mint"`
	UserTokenAccount string  `json:"userTokenAccount"`
	Amount           uint64  `json:"amount"`
	TxSignature      string  `json:"txSignature"`
	Slot             int64   `json:"slot"`
	Status           string  `json:"status"`
	Attempts         int     `json:"attempts"`
	LastError        string  `json:"lastError,omitempty"`
	WrappedMint      *string `json:"wrappedMint,omitempty"`
	CreatedAt        int64   `json:"createdAt"`
	UpdatedAt        int64   `json:"updatedAt"`
}

func viewOf(r *domain.BridgeRequest) RequestView {
	return RequestView{
		RequestID:        r.RequestID,
		Mint:             r.Mint,
		UserTokenAccount: r.UserTokenAccount,
		Amount:           r.Amount,
		TxSignature:      r.TxSignature,
		Slot:             r.Slot,
		Status:           r.Status.String(),
		Attempts:         r.Attempts,
		LastError:        r.LastError,
		WrappedMint:      r.WrappedMint,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// NewRouter returns the relayer's HTTP API:
//
//	GET /health
//	GET /metrics
//	GET /requests/{id}
//	GET /requests?status=PENDING&limit=100
func NewRouter(requests storage.RequestStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Get("/requests/{id}", func(w http.ResponseWriter, req *http.Request) {
		found, err := requests.GetByID(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			responseJSON(w, &APIResponse{Status: "error", Error: "request not found"}, http.StatusNotFound)
			return
		}
		if err != nil {
			responseJSON(w, &APIResponse{Status: "error", Error: err.Error()}, http.StatusInternalServerError)
			return
		}
		responseJSON(w, viewOf(found), http.StatusOK)
	})

	r.Get("/requests", func(w http.ResponseWriter, req *http.Request) {
		status := domain.RequestStatus(strings.ToUpper(req.URL.Query().Get("status")))
		if status == "" {
			status = domain.RequestPending
		}
		if !status.IsValid() {
			responseJSON(w, &APIResponse{Status: "error", Error: "invalid status"}, http.StatusBadRequest)
			return
		}

		limit := 100
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				responseJSON(w, &APIResponse{Status: "error", Error: "invalid limit"}, http.StatusBadRequest)
				return
			}
			limit = n
		}

		found, err := requests.GetByStatus(req.Context(), status, limit)
		if err != nil {
			responseJSON(w, &APIResponse{Status: "error", Error: err.Error()}, http.StatusInternalServerError)
			return
		}
		views := make([]RequestView, 0, len(found))
		for _, f := range found {
			views = append(views, viewOf(f))
		}
		responseJSON(w, views, http.StatusOK)
	})

	return r
}

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// Serve runs the HTTP API on addr until ctx is cancelled, then shuts down
// with a 5 second grace period.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("HTTP service started", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP service stopped")
	return nil
}
