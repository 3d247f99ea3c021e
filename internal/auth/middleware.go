package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"colorbet/internal/account"
)

const accountKey = "account"

// Provisioner resolves a verified identity to a stored account.
type Provisioner interface {
	EnsureFromClaims(ctx context.Context, id account.Identity) (*account.Account, error)
}

// Authenticate accepts a bearer token from the Authorization header, or from
// the token query parameter for websocket upgrades.
func Authenticate(v *Verifier, accounts Provisioner, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				return
			}
		}

		id, err := v.Verify(tokenString)
		if err != nil {
			logger.Debug("token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		acc, err := accounts.EnsureFromClaims(c.Request.Context(), id)
		if err != nil {
			logger.Error("account provisioning failed", "account_id", id.ID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if acc.IsBlocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account is blocked"})
			return
		}

		SetAccount(c, acc)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := AccountFrom(c)
		if err != nil || !acc.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

var errNoAccount = errors.New("no authenticated account on request")

func SetAccount(c *gin.Context, acc *account.Account) {
	c.Set(accountKey, acc)
}

func AccountFrom(c *gin.Context) (*account.Account, error) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, errNoAccount
	}
	acc, ok := v.(*account.Account)
	if !ok {
		return nil, errNoAccount
	}
	return acc, nil
}
