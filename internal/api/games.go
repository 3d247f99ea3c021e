package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"colorbet/internal/game"
)

func (h *Handler) CurrentRound(c *gin.Context) {
	ctx := c.Request.Context()
	round, err := h.engine.Current(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	now := time.Now().UTC()
	resp := gin.H{
		"round":       round,
		"time_left":   secondsLeft(round.TimeLeft(now)),
		"server_time": now,
	}
	previous, err := h.engine.History(ctx, 1)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(previous) > 0 {
		resp["previous"] = previous[0]
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PlaceBet(c *gin.Context) {
	acc, ok := h.currentAccount(c)
	if !ok {
		return
	}

	var req game.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	req.AccountID = acc.ID

	bet, err := h.engine.PlaceBet(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{"bet": bet}
	if w, err := h.wallets.Wallet(c.Request.Context(), acc.ID); err == nil {
		resp["balance"] = w.Balance
	} else {
		h.logger.Warn("balance lookup after bet failed", "account_id", acc.ID, "err", err)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) History(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	rounds, err := h.engine.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

func (h *Handler) MyBets(c *gin.Context) {
	acc, ok := h.currentAccount(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	bets, err := h.engine.Bets(c.Request.Context(), acc.ID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

func (h *Handler) CreateRound(c *gin.Context) {
	round, err := h.engine.CreateRound(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"round": round})
}

func (h *Handler) EndRound(c *gin.Context) {
	round, err := h.engine.EndRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round})
}

func (h *Handler) FixOutcome(c *gin.Context) {
	var req game.FixOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	round, err := h.engine.FixOutcome(c.Request.Context(), c.Param("id"), *req.FixedOutcome)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "fixed_outcome": *req.FixedOutcome})
}
