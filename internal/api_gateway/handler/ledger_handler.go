package handler

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lnwallet-ledger/internal/api_gateway/service"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

const (
	defaultPendingAccountsLimit = 100
	maxPendingAccountsLimit     = 1000
)

// LedgerHandler serves operator views of the ledger.
type LedgerHandler struct {
	ledger service.LedgerQueries
	logger *slog.Logger
}

func NewLedgerHandler(logger *slog.Logger, ledger service.LedgerQueries) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Accounts lists every ledger account path.
func (h *LedgerHandler) Accounts(c *gin.Context) {
	accounts, err := h.ledger.ListAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	RespondOK(c, accounts)
}

// Balances returns the aggregate balances, or the balance of one account or
// prefix when ?account= is given.
func (h *LedgerHandler) Balances(c *gin.Context) {
	if account := c.Query("account"); account != "" {
		balance, err := h.ledger.GetAccountBalance(c.Request.Context(), account, shared.LedgerCurrency)
		if err != nil {
			respondError(c, err)
			return
		}
		RespondOK(c, AccountBalanceResponse{Account: account, Balance: int64(balance)})
		return
	}

	summary, err := h.ledger.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	RespondOK(c, summary)
}

// PendingAccounts lists the wallet accounts holding legs of in-flight
// payments, capped at ?limit= (default 100).
func (h *LedgerHandler) PendingAccounts(c *gin.Context) {
	limit := defaultPendingAccountsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPendingAccountsLimit {
			RespondBadRequest(c, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	accounts := make([]string, 0)
	for account, err := range h.ledger.AccountsWithPendingEntries(c.Request.Context()) {
		if err != nil {
			respondError(c, err)
			return
		}
		accounts = append(accounts, account)
		if len(accounts) == limit {
			break
		}
	}
	RespondOK(c, accounts)
}
