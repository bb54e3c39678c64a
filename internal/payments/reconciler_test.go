package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *MockGateway, *MockLnPaymentRepository, *MockLedger) {
	t.Helper()
	pool, err := workers.NewPool(newTestLogger(), &config.WorkerPoolConfig{Size: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	gateway := new(MockGateway)
	payments := new(MockLnPaymentRepository)
	ledgerSvc := new(MockLedger)
	r := NewReconciler(newTestLogger(), gateway, payments, ledgerSvc, pool, 50, 2, time.Minute, nil)
	r.now = func() time.Time { return testNow }
	return r, gateway, payments, ledgerSvc
}

func pendingPayment(hash string) *lightning.LnPayment {
	return &lightning.LnPayment{
		ID:          lightning.PaymentHash(hash),
		PaymentHash: lightning.PaymentHash(hash),
		WalletID:    "alice",
		Status:      lightning.PaymentStatusPending,
		CreatedAt:   testNow.Add(-10 * time.Second),
		Amount:      10_000,
		ReservedFee: 200,
	}
}

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	confirmedAt := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)

	t.Run("settled payment confirms the reservation", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h1")
		gateway.On("LookupPayment", ctx, lightning.PaymentHash("h1")).Return(lightning.PaymentLookup{
			Status: lightning.PaymentStatusSettled,
			Details: &lightning.PaymentDetails{
				ConfirmedAt:  &confirmedAt,
				MilliSatsFee: 3000,
				RoundedUpFee: 3,
			},
		}, nil)
		ledgerSvc.On("ConfirmPending", ctx, "h1", shared.Satoshis(3)).Return(nil)
		payments.On("Update", ctx, p).Return(nil)

		require.NoError(t, r.Reconcile(ctx, p))
		assert.Equal(t, lightning.PaymentStatusSettled, p.Status)
		assert.True(t, p.IsCompleteRecord)
		assert.Equal(t, []lightning.PaymentStatus{lightning.PaymentStatusSettled}, payments.statuses)
		ledgerSvc.AssertExpectations(t)
		ledgerSvc.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
	})

	t.Run("settled payment without a reservation is booked", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h1")
		gateway.On("LookupPayment", ctx, mock.Anything).Return(lightning.PaymentLookup{
			Status:  lightning.PaymentStatusSettled,
			Details: &lightning.PaymentDetails{RoundedUpFee: 3},
		}, nil)
		ledgerSvc.On("ConfirmPending", ctx, "h1", shared.Satoshis(3)).Return(&ledger.NoPendingEntriesError{PaymentHash: "h1"})
		ledgerSvc.On("Post", ctx, mock.MatchedBy(func(txn ledger.Transaction) bool {
			return txn.Type == ledger.TypePayment &&
				txn.IdempotencyKey == "h1" &&
				txn.Legs[0].Account == alicePath && txn.Legs[0].Debit == 10_003 && txn.Legs[0].Fee == 3 &&
				!txn.Legs[0].Pending &&
				txn.Legs[0].PaymentHash == "h1"
		})).Return(nil)
		payments.On("Update", ctx, p).Return(nil).Once()

		require.NoError(t, r.Reconcile(ctx, p))
		assert.Equal(t, []lightning.PaymentStatus{lightning.PaymentStatusSettled}, payments.statuses)
		ledgerSvc.AssertExpectations(t)
		payments.AssertExpectations(t)
	})

	t.Run("settled payment already booked by an earlier run", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h1")
		gateway.On("LookupPayment", ctx, mock.Anything).Return(lightning.PaymentLookup{
			Status:  lightning.PaymentStatusSettled,
			Details: &lightning.PaymentDetails{RoundedUpFee: 3},
		}, nil)
		ledgerSvc.On("ConfirmPending", ctx, "h1", shared.Satoshis(3)).Return(&ledger.NoPendingEntriesError{PaymentHash: "h1"})
		ledgerSvc.On("Post", ctx, mock.Anything).Return(&ledger.DuplicateTransactionError{IdempotencyKey: "h1"})
		payments.On("Update", ctx, p).Return(nil).Once()

		require.NoError(t, r.Reconcile(ctx, p))
		assert.Equal(t, []lightning.PaymentStatus{lightning.PaymentStatusSettled}, payments.statuses)
		payments.AssertExpectations(t)
	})

	t.Run("booking failure is returned", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h1")
		gateway.On("LookupPayment", ctx, mock.Anything).Return(lightning.PaymentLookup{
			Status:  lightning.PaymentStatusSettled,
			Details: &lightning.PaymentDetails{RoundedUpFee: 3},
		}, nil)
		ledgerSvc.On("ConfirmPending", ctx, "h1", shared.Satoshis(3)).Return(&ledger.NoPendingEntriesError{PaymentHash: "h1"})
		ledgerSvc.On("Post", ctx, mock.Anything).Return(errors.New("db down"))

		assert.Error(t, r.Reconcile(ctx, p))
		payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("failed payment releases the reserve", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h2")
		gateway.On("LookupPayment", ctx, lightning.PaymentHash("h2")).
			Return(lightning.PaymentLookup{Status: lightning.PaymentStatusFailed}, nil)
		ledgerSvc.On("VoidPending", ctx, "h2").Return(nil)
		payments.On("Update", ctx, p).Return(nil)

		require.NoError(t, r.Reconcile(ctx, p))
		assert.Equal(t, lightning.PaymentStatusFailed, p.Status)
		ledgerSvc.AssertExpectations(t)
	})

	t.Run("failed payment without reserve only updates the record", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h2")
		gateway.On("LookupPayment", ctx, mock.Anything).
			Return(lightning.PaymentLookup{Status: lightning.PaymentStatusFailed}, nil)
		ledgerSvc.On("VoidPending", ctx, "h2").Return(&ledger.NoPendingEntriesError{PaymentHash: "h2"})
		payments.On("Update", ctx, p).Return(nil).Once()

		require.NoError(t, r.Reconcile(ctx, p))
		payments.AssertExpectations(t)
	})

	t.Run("in flight and recently dispatched payments are left alone", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		gateway.On("LookupPayment", ctx, lightning.PaymentHash("h3")).
			Return(lightning.PaymentLookup{Status: lightning.PaymentStatusPending}, nil)
		gateway.On("LookupPayment", ctx, lightning.PaymentHash("h4")).
			Return(lightning.PaymentLookup{}, &lightning.PaymentNotFoundError{PaymentHash: "h4"})

		require.NoError(t, r.Reconcile(ctx, pendingPayment("h3")))
		require.NoError(t, r.Reconcile(ctx, pendingPayment("h4")))
		ledgerSvc.AssertNotCalled(t, "ConfirmPending", mock.Anything, mock.Anything, mock.Anything)
		ledgerSvc.AssertNotCalled(t, "VoidPending", mock.Anything, mock.Anything)
		payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("payment the node never saw is failed once stale", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h6")
		p.CreatedAt = testNow.Add(-2 * time.Minute)
		gateway.On("LookupPayment", ctx, lightning.PaymentHash("h6")).
			Return(lightning.PaymentLookup{}, &lightning.PaymentNotFoundError{PaymentHash: "h6"})
		ledgerSvc.On("VoidPending", ctx, "h6").Return(nil)
		payments.On("Update", ctx, p).Return(nil)

		require.NoError(t, r.Reconcile(ctx, p))
		assert.Equal(t, lightning.PaymentStatusFailed, p.Status)
		assert.True(t, p.IsCompleteRecord)
		assert.Equal(t, []lightning.PaymentStatus{lightning.PaymentStatusFailed}, payments.statuses)
		ledgerSvc.AssertExpectations(t)
	})

	t.Run("stale payment without a reservation only updates the record", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		p := pendingPayment("h6")
		p.CreatedAt = testNow.Add(-2 * time.Minute)
		gateway.On("LookupPayment", ctx, mock.Anything).
			Return(lightning.PaymentLookup{}, &lightning.PaymentNotFoundError{PaymentHash: "h6"})
		ledgerSvc.On("VoidPending", ctx, "h6").Return(&ledger.NoPendingEntriesError{PaymentHash: "h6"})
		payments.On("Update", ctx, p).Return(nil).Once()

		require.NoError(t, r.Reconcile(ctx, p))
		assert.Equal(t, []lightning.PaymentStatus{lightning.PaymentStatusFailed}, payments.statuses)
		payments.AssertExpectations(t)
	})

	t.Run("node errors are returned", func(t *testing.T) {
		r, gateway, _, _ := newTestReconciler(t)
		gateway.On("LookupPayment", ctx, mock.Anything).
			Return(lightning.PaymentLookup{}, &lightning.LightningServiceError{Op: "track payment", Timeout: true})

		err := r.Reconcile(ctx, pendingPayment("h5"))
		assert.True(t, lightning.IsTimeout(err))
	})
}

func TestReconciler_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("processes the pending batch", func(t *testing.T) {
		r, gateway, payments, ledgerSvc := newTestReconciler(t)
		settled, failed := pendingPayment("s"), pendingPayment("f")
		payments.On("ListPending", ctx, 50).Return([]*lightning.LnPayment{settled, failed}, nil)
		gateway.On("LookupPayment", mock.Anything, lightning.PaymentHash("s")).Return(lightning.PaymentLookup{
			Status:  lightning.PaymentStatusSettled,
			Details: &lightning.PaymentDetails{RoundedUpFee: 200},
		}, nil)
		gateway.On("LookupPayment", mock.Anything, lightning.PaymentHash("f")).
			Return(lightning.PaymentLookup{Status: lightning.PaymentStatusFailed}, nil)
		ledgerSvc.On("ConfirmPending", mock.Anything, "s", shared.Satoshis(200)).Return(nil)
		ledgerSvc.On("VoidPending", mock.Anything, "f").Return(nil)
		payments.On("Update", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, r.Run(ctx))
		assert.Equal(t, "payment-reconciler", r.Name())
		ledgerSvc.AssertExpectations(t)
	})

	t.Run("listing failure", func(t *testing.T) {
		r, _, payments, _ := newTestReconciler(t)
		payments.On("ListPending", ctx, 50).Return(nil, errors.New("db down"))
		assert.Error(t, r.Run(ctx))
	})
}
