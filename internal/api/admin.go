package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"colorbet/internal/account"
	"colorbet/internal/admin"
	"colorbet/internal/apperr"
	"colorbet/internal/wallet"
)

func (h *Handler) PublicSettings(c *gin.Context) {
	st, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": st})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch admin.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	st, err := h.admin.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": st})
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": st})
}

func (h *Handler) Users(c *gin.Context) {
	users, err := h.accounts.ListWithStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) BlockUser(c *gin.Context) {
	acc, ok := h.currentAccount(c)
	if !ok {
		return
	}
	var req account.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	id := c.Param("id")
	if id == acc.ID && *req.IsBlocked {
		respondError(c, h.logger, fmt.Errorf("%w: admins cannot block themselves", apperr.ErrValidation))
		return
	}

	user, err := h.accounts.SetBlocked(c.Request.Context(), id, *req.IsBlocked, req.BlockReason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("account block changed",
		"account_id", id,
		"blocked", user.IsBlocked,
		"by", acc.ID)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) AllTransactions(c *gin.Context) {
	txs, err := h.wallets.AllTransactions(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) ReviewTransaction(c *gin.Context) {
	var req wallet.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	entry, err := h.wallets.ReviewTransaction(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}
