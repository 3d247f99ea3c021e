package api

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"colorbet/internal/apperr"
	"colorbet/internal/wallet"
)

var screenshotExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

func (h *Handler) GetWallet(c *gin.Context) {
	acc, ok := h.currentAccount(c)
	if !ok {
		return
	}
	w, err := h.wallets.Wallet(c.Request.Context(), acc.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": w})
}

func (h *Handler) MyTransactions(c *gin.Context) {
	acc, ok := h.currentAccount(c)
	if !ok {
		return
	}
	txs, err := h.wallets.Transactions(c.Request.Context(), acc.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// SubmitDeposit takes a multipart form with an amount and a payment
// screenshot. The file is kept even if review later rejects the deposit.
func (h *Handler) SubmitDeposit(c *gin.Context) {
	acc, ok := h.currentAccount(c)
	if !ok {
		return
	}

	amount, err := decimal.NewFromString(c.PostForm("amount"))
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: amount must be a number", apperr.ErrValidation))
		return
	}
	file, err := c.FormFile("screenshot")
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: payment screenshot is required", apperr.ErrValidation))
		return
	}
	if file.Size > h.uploads.MaxBytes {
		respondError(c, h.logger, fmt.Errorf("%w: screenshot exceeds %d bytes", apperr.ErrValidation, h.uploads.MaxBytes))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !screenshotExts[ext] {
		respondError(c, h.logger, fmt.Errorf("%w: screenshot must be an image", apperr.ErrValidation))
		return
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(h.uploads.Dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, h.logger, fmt.Errorf("save screenshot: %w", err))
		return
	}

	entry, err := h.wallets.SubmitDeposit(c.Request.Context(), wallet.DepositRequest{
		AccountID:   acc.ID,
		Amount:      amount,
		EvidenceURL: path.Join(h.uploads.PublicPrefix, name),
	})
	if err != nil {
		_ = os.Remove(dst)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": entry})
}
