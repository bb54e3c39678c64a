package api_gateway

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lnwallet-ledger/internal/api_gateway/middleware"
	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/payments"
	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCore struct{}

func (stubCore) AddInvoice(context.Context, shared.AddInvoiceRequest) (lightning.Invoice, error) {
	return lightning.Invoice{PaymentHash: "h"}, nil
}

func (stubCore) Balance(_ context.Context, walletID string) (wallet.Balance, error) {
	if walletID != "w1" {
		return wallet.Balance{}, &wallet.CouldNotFindWalletFromIDError{WalletID: walletID}
	}
	return wallet.Balance{WalletID: walletID, Sats: 42}, nil
}

func (stubCore) TransactionHistory(context.Context, string, int, int) ([]ledger.WalletTransaction, error) {
	return nil, nil
}

func (stubCore) PayInvoice(context.Context, shared.SendPaymentRequest) (payments.Result, error) {
	return payments.Result{Status: payments.StatusSuccess}, nil
}

func (stubCore) SendIntraLedger(context.Context, shared.IntraLedgerSendRequest) (payments.Result, error) {
	return payments.Result{Status: payments.StatusSuccess}, nil
}

func (stubCore) PayToPubkey(context.Context, shared.KeysendRequest) (payments.Result, error) {
	return payments.Result{Status: payments.StatusSuccess}, nil
}

func (stubCore) ListAccounts(context.Context) ([]string, error) { return []string{"Liabilities:w1"}, nil }

func (stubCore) GetAccountBalance(context.Context, string, string) (shared.Satoshis, error) {
	return 0, nil
}

func (stubCore) Summary(context.Context) (ledger_service.Balances, error) {
	return ledger_service.Balances{}, nil
}

func (stubCore) AccountsWithPendingEntries(context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("Liabilities:w1", nil)
	}
}

func newTestServer(m *metrics.Metrics) *Server {
	cfg := &config.Config{Server: config.ServerConfig{Port: 8080}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(logger, cfg, stubCore{}, stubCore{}, stubCore{}, m)
}

func TestServer_Routes(t *testing.T) {
	m := metrics.New()
	h := newTestServer(m).Handler()

	tests := []struct {
		method, path   string
		expectedStatus int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/wallets/w1/balance", http.StatusOK},
		{http.MethodGet, "/api/v1/wallets/w9/balance", http.StatusNotFound},
		{http.MethodGet, "/api/v1/wallets/w1/transactions", http.StatusOK},
		{http.MethodGet, "/api/v1/ledger/accounts", http.StatusOK},
		{http.MethodGet, "/api/v1/ledger/balances", http.StatusOK},
		{http.MethodGet, "/api/v1/ledger/pending-accounts", http.StatusOK},
		{http.MethodGet, "/api/v1/accounts", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.NotEmpty(t, rr.Header().Get(middleware.CorrelationIDHeader))
		})
	}

	t.Run("metrics endpoint exposes request counters", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `lnwallet_http_requests_total{method="GET",path="/api/v1/wallets/:id/balance",status="200"} 1`)
	})
}

func TestServer_BalanceEnvelope(t *testing.T) {
	h := newTestServer(nil).Handler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/w1/balance", nil)
	req.Header.Set(middleware.CorrelationIDHeader, "corr-1")
	h.ServeHTTP(rr, req)

	var body struct {
		Data          wallet.Balance `json:"data"`
		CorrelationID string         `json:"correlation_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, shared.Satoshis(42), body.Data.Sats)
	assert.Equal(t, "corr-1", body.CorrelationID)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
