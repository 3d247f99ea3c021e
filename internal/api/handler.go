package api

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"colorbet/internal/account"
	"colorbet/internal/admin"
	"colorbet/internal/apperr"
	"colorbet/internal/auth"
	"colorbet/internal/config"
	"colorbet/internal/game"
	"colorbet/internal/wallet"
)

type Handler struct {
	db       *gorm.DB
	engine   *game.Engine
	wallets  *wallet.Service
	admin    *admin.Service
	accounts account.Repository
	uploads  config.UploadsConfig
	logger   *slog.Logger
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger.Warn("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// currentAccount returns the authenticated account, answering 401 itself
// when there is none.
func (h *Handler) currentAccount(c *gin.Context) (*account.Account, bool) {
	acc, err := auth.AccountFrom(c)
	if err != nil {
		respondError(c, h.logger, apperr.ErrUnauthorized)
		return nil, false
	}
	return acc, true
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", apperr.ErrValidation)
	}
	return n, nil
}

func secondsLeft(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
