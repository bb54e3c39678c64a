package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lnwallet-ledger/internal/api_gateway/handler"
	"github.com/lnwallet-ledger/internal/api_gateway/middleware"
	"github.com/lnwallet-ledger/internal/platform/metrics"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	m *metrics.Metrics,
	walletHandler *handler.WalletHandler,
	paymentHandler *handler.PaymentHandler,
	ledgerHandler *handler.LedgerHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))

	v1 := r.Group("/api/v1")
	{
		wallets := v1.Group("/wallets/:id")
		{
			wallets.POST("/invoices", walletHandler.CreateInvoice)
			wallets.POST("/payments", paymentHandler.PayInvoice)
			wallets.POST("/intraledger", paymentHandler.IntraLedger)
			wallets.GET("/balance", walletHandler.Balance)
			wallets.GET("/transactions", walletHandler.Transactions)
		}

		v1.POST("/keysend", paymentHandler.Keysend)

		ledger := v1.Group("/ledger")
		{
			ledger.GET("/accounts", ledgerHandler.Accounts)
			ledger.GET("/balances", ledgerHandler.Balances)
			ledger.GET("/pending-accounts", ledgerHandler.PendingAccounts)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
}
