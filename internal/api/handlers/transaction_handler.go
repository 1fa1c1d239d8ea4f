package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
)

// TransactionHandler serves the sale ledger.
type TransactionHandler struct {
	transactionService services.ITransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.ITransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// GetHistory handles GET /api/transactions/history for the authenticated
// user.
func (h *TransactionHandler) GetHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	history, err := h.transactionService.HistoryForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, history, len(history))
}

// GetUserHistory handles GET /api/transactions/user/:id, an admin view of
// another user's ledger.
func (h *TransactionHandler) GetUserHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.transactionService.HistoryForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, history, len(history))
}
