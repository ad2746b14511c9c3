package handlers

import (
	"net/http"

	"talktime/internal/auth"
	"talktime/internal/services"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	ledger *services.LedgerService
}

func NewWalletHandler(ledger *services.LedgerService) *WalletHandler {
	return &WalletHandler{
		ledger: ledger,
	}
}

// GetWallet returns the current user's wallet snapshot
// GET /api/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	wallet, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get wallet"})
		return
	}

	c.JSON(http.StatusOK, wallet)
}

// GetTransactions returns a page of the current user's audit log
// GET /api/wallet/transactions
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := parsePagination(c)

	txs, total, err := h.ledger.Transactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"total":        total,
	})
}
