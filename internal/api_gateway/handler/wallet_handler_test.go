package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/price"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWalletHandler_CreateInvoice(t *testing.T) {
	expiresAt := time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC)
	invoice := lightning.Invoice{
		PaymentHash:    "hash-1",
		PaymentRequest: "lnbc21u1...",
		Amount:         2100,
		Description:    "coffee",
		ExpiresAt:      expiresAt,
	}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockWalletService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "creates an invoice",
			body: `{"amount":"2100","memo":"coffee"}`,
			setupMock: func(m *MockWalletService) {
				m.On("AddInvoice", mock.Anything, mock.MatchedBy(func(req shared.AddInvoiceRequest) bool {
					return req.WalletID == "w1" && req.Amount.Equal(decimal.NewFromInt(2100)) && req.Memo == "coffee"
				})).Return(invoice, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "amountless invoice",
			body: `{}`,
			setupMock: func(m *MockWalletService) {
				m.On("AddInvoice", mock.Anything, mock.MatchedBy(func(req shared.AddInvoiceRequest) bool {
					return req.Amount.IsZero()
				})).Return(invoice, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "malformed body",
			body:           `{"amount":`,
			setupMock:      func(*MockWalletService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   CodeBadRequest,
		},
		{
			name: "fiat wallet without amount",
			body: `{}`,
			setupMock: func(m *MockWalletService) {
				m.On("AddInvoice", mock.Anything, mock.Anything).
					Return(lightning.Invoice{}, &shared.MissingAmountError{Reason: "fiat invoices need an amount"}).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   CodeMissingAmount,
		},
		{
			name: "no spot price yet",
			body: `{"amount":"10"}`,
			setupMock: func(m *MockWalletService) {
				m.On("AddInvoice", mock.Anything, mock.Anything).
					Return(lightning.Invoice{}, &price.NoPriceAvailableError{}).Once()
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   CodePriceUnavailable,
		},
		{
			name: "unknown wallet",
			body: `{"amount":"10"}`,
			setupMock: func(m *MockWalletService) {
				m.On("AddInvoice", mock.Anything, mock.Anything).
					Return(lightning.Invoice{}, &wallet.CouldNotFindWalletFromIDError{WalletID: "w1"}).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   CodeWalletNotFound,
		},
		{
			name: "node failure",
			body: `{"amount":"10"}`,
			setupMock: func(m *MockWalletService) {
				m.On("AddInvoice", mock.Anything, mock.Anything).
					Return(lightning.Invoice{}, &lightning.LightningServiceError{Op: "AddInvoice", Err: errors.New("unavailable")}).Once()
			},
			expectedStatus: http.StatusBadGateway,
			expectedCode:   CodeLightningFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWalletService)
			tt.setupMock(svc)

			r := setupTestRouter()
			r.POST("/wallets/:id/invoices", NewWalletHandler(newTestLogger(), svc).CreateInvoice)

			status, res := serve(t, r, http.MethodPost, "/wallets/w1/invoices", tt.body)

			assert.Equal(t, tt.expectedStatus, status)
			assert.NotEmpty(t, res.CorrelationID)
			if tt.expectedCode != "" {
				require.NotNil(t, res.Error)
				assert.Equal(t, tt.expectedCode, res.Error.Code)
			} else {
				var got InvoiceResponse
				decodeData(t, res, &got)
				assert.Equal(t, "hash-1", got.PaymentHash)
				assert.Equal(t, "lnbc21u1...", got.PaymentRequest)
				assert.Equal(t, int64(2100), got.Amount)
				assert.Equal(t, "2024-05-01T12:01:00Z", got.ExpiresAt)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWalletHandler_Balance(t *testing.T) {
	t.Run("returns sats and fiat", func(t *testing.T) {
		svc := new(MockWalletService)
		svc.On("Balance", mock.Anything, "w1").Return(wallet.Balance{
			WalletID: "w1",
			Currency: shared.CurrencyBTC,
			Sats:     500_000,
			Fiat:     decimal.RequireFromString("10.00"),
		}, nil).Once()

		r := setupTestRouter()
		r.GET("/wallets/:id/balance", NewWalletHandler(newTestLogger(), svc).Balance)

		status, res := serve(t, r, "GET", "/wallets/w1/balance", "")
		require.Equal(t, http.StatusOK, status)

		var got wallet.Balance
		decodeData(t, res, &got)
		assert.Equal(t, shared.Satoshis(500_000), got.Sats)
		assert.True(t, got.Fiat.Equal(decimal.NewFromInt(10)))
	})

	t.Run("storage failure is hidden", func(t *testing.T) {
		svc := new(MockWalletService)
		svc.On("Balance", mock.Anything, "w1").
			Return(wallet.Balance{}, &shared.UnknownRepositoryError{Op: "balance", Err: errors.New("conn reset")}).Once()

		r := setupTestRouter()
		r.GET("/wallets/:id/balance", NewWalletHandler(newTestLogger(), svc).Balance)

		status, res := serve(t, r, "GET", "/wallets/w1/balance", "")
		assert.Equal(t, http.StatusInternalServerError, status)
		require.NotNil(t, res.Error)
		assert.Equal(t, CodeInternal, res.Error.Code)
		assert.NotContains(t, res.Error.Message, "conn reset")
	})
}

func TestWalletHandler_Transactions(t *testing.T) {
	history := []ledger.WalletTransaction{
		{ID: "tx-1", SettlementVia: ledger.SettlementLightning, SettlementAmount: 2100},
		{ID: "tx-2", SettlementVia: ledger.SettlementIntraLedger, SettlementAmount: -700},
	}

	tests := []struct {
		name           string
		query          string
		limit, offset  int
		result         []ledger.WalletTransaction
		expectedStatus int
		expectHasMore  bool
	}{
		{name: "default page", query: "", limit: 20, offset: 0, result: history, expectedStatus: http.StatusOK},
		{name: "full page has more", query: "?page=3&per_page=2", limit: 2, offset: 4, result: history, expectedStatus: http.StatusOK, expectHasMore: true},
		{name: "page size above the limit", query: "?per_page=500", expectedStatus: http.StatusBadRequest},
		{name: "page zero", query: "?page=0", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWalletService)
			if tt.result != nil {
				svc.On("TransactionHistory", mock.Anything, "w1", tt.limit, tt.offset).Return(tt.result, nil).Once()
			}

			r := setupTestRouter()
			r.GET("/wallets/:id/transactions", NewWalletHandler(newTestLogger(), svc).Transactions)

			status, res := serve(t, r, "GET", "/wallets/w1/transactions"+tt.query, "")
			assert.Equal(t, tt.expectedStatus, status)
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, res.Meta)
				assert.Equal(t, tt.limit, res.Meta.PerPage)
				assert.Equal(t, tt.expectHasMore, res.Meta.HasMore)

				var got []ledger.WalletTransaction
				decodeData(t, res, &got)
				assert.Len(t, got, 2)
			}
			svc.AssertExpectations(t)
		})
	}
}
