package handler

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lnwallet-ledger/internal/api_gateway/middleware"
	"github.com/lnwallet-ledger/internal/api_gateway/service"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/payments"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) AddInvoice(ctx context.Context, req shared.AddInvoiceRequest) (lightning.Invoice, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(lightning.Invoice), args.Error(1)
}

func (m *MockWalletService) Balance(ctx context.Context, walletID string) (wallet.Balance, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(wallet.Balance), args.Error(1)
}

func (m *MockWalletService) TransactionHistory(ctx context.Context, walletID string, limit, offset int) ([]ledger.WalletTransaction, error) {
	args := m.Called(ctx, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.WalletTransaction), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) PayInvoice(ctx context.Context, req shared.SendPaymentRequest) (payments.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payments.Result), args.Error(1)
}

func (m *MockPaymentService) SendIntraLedger(ctx context.Context, req shared.IntraLedgerSendRequest) (payments.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payments.Result), args.Error(1)
}

func (m *MockPaymentService) PayToPubkey(ctx context.Context, req shared.KeysendRequest) (payments.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payments.Result), args.Error(1)
}

type MockLedgerQueries struct {
	mock.Mock
}

func (m *MockLedgerQueries) ListAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLedgerQueries) GetAccountBalance(ctx context.Context, account, currency string) (shared.Satoshis, error) {
	args := m.Called(ctx, account, currency)
	return args.Get(0).(shared.Satoshis), args.Error(1)
}

func (m *MockLedgerQueries) Summary(ctx context.Context) (ledger_service.Balances, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger_service.Balances), args.Error(1)
}

func (m *MockLedgerQueries) AccountsWithPendingEntries(ctx context.Context) iter.Seq2[string, error] {
	args := m.Called(ctx)
	return args.Get(0).(iter.Seq2[string, error])
}

var (
	_ service.WalletService  = (*MockWalletService)(nil)
	_ service.PaymentService = (*MockPaymentService)(nil)
	_ service.LedgerQueries  = (*MockLedgerQueries)(nil)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	return r
}

// serve sends body (if any) to the router and decodes the envelope.
func serve(t *testing.T, r *gin.Engine, method, path, body string) (int, Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var res Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res), rr.Body.String())
	return rr.Code, res
}

// decodeData re-decodes the generic data field into out.
func decodeData(t *testing.T, res Response, out any) {
	t.Helper()
	raw, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
