// Package api is the HTTP facade: routing, request binding and the mapping
// from domain errors to status codes.
package api

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"colorbet/internal/account"
	"colorbet/internal/admin"
	"colorbet/internal/auth"
	"colorbet/internal/config"
	"colorbet/internal/game"
	"colorbet/internal/live"
	"colorbet/internal/ratelimit"
	"colorbet/internal/wallet"
)

type Deps struct {
	DB       *gorm.DB
	Engine   *game.Engine
	Wallets  *wallet.Service
	Admin    *admin.Service
	Accounts account.Repository
	Verifier *auth.Verifier
	Hub      *live.Hub
	// Limiter is optional; without it bets are not rate limited.
	Limiter ratelimit.Limiter
	Game    config.GameConfig
	Uploads config.UploadsConfig
	Logger  *slog.Logger
}

func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.Uploads.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	h := &Handler{
		db:       d.DB,
		engine:   d.Engine,
		wallets:  d.Wallets,
		admin:    d.Admin,
		accounts: d.Accounts,
		uploads:  d.Uploads,
		logger:   d.Logger,
	}

	r := gin.Default()
	r.MaxMultipartMemory = d.Uploads.MaxBytes
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/healthz", h.Health)

	authn := auth.Authenticate(d.Verifier, d.Accounts, d.Logger)
	requireAdmin := auth.RequireAdmin()

	protected := r.Group("/api")
	protected.Use(authn)
	{
		protected.GET("/settings", h.PublicSettings)

		protected.GET("/wallet", h.GetWallet)
		protected.GET("/wallet/transactions", h.MyTransactions)
		protected.POST("/transactions/deposit", h.SubmitDeposit)

		games := protected.Group("/games")
		{
			betChain := []gin.HandlerFunc{h.PlaceBet}
			if d.Limiter != nil {
				limit := ratelimit.Middleware(d.Limiter, "bet", d.Game.BetRateLimit, d.Game.BetRateWindow, d.Logger)
				betChain = append([]gin.HandlerFunc{limit}, betChain...)
			}

			games.GET("/current", h.CurrentRound)
			games.POST("/bet", betChain...)
			games.GET("/history", h.History)
			games.GET("/bets", h.MyBets)
			games.POST("/create", requireAdmin, h.CreateRound)
			games.PUT("/:id/end", requireAdmin, h.EndRound)
		}

		protected.GET("/ws/rounds", d.Hub.ServeWS)

		admins := protected.Group("/admin")
		admins.Use(requireAdmin)
		{
			admins.GET("/stats", h.Stats)
			admins.GET("/users", h.Users)
			admins.PUT("/users/:id/block", h.BlockUser)
			admins.GET("/transactions", h.AllTransactions)
			admins.PUT("/transactions/:id", h.ReviewTransaction)
			admins.GET("/settings", h.PublicSettings)
			admins.PUT("/settings", h.UpdateSettings)
			admins.PUT("/games/:id/fix", h.FixOutcome)
		}
	}

	evidence := r.Group(d.Uploads.PublicPrefix, authn, requireAdmin)
	evidence.Static("/", d.Uploads.Dir)

	return r, nil
}
