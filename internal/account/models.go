// Package account holds the player and operator identities known to the
// service. Accounts are provisioned from verified token claims on first use.
package account

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Account struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Email       string    `gorm:"column:email;type:varchar(255);index" json:"email"`
	Username    string    `gorm:"column:username;type:varchar(100)" json:"username"`
	Role        Role      `gorm:"column:role;type:varchar(10);not null;default:'user'" json:"role"`
	IsBlocked   bool      `gorm:"column:is_blocked;not null;default:false" json:"is_blocked"`
	BlockReason *string   `gorm:"column:block_reason;type:varchar(255)" json:"block_reason,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Identity is what a verified bearer token asserts about its holder.
type Identity struct {
	ID       string
	Email    string
	Username string
	Role     Role
}

// Summary is an account as listed in the back office.
type Summary struct {
	Account
	Balance   decimal.Decimal `gorm:"column:balance" json:"balance"`
	TotalBets int64           `gorm:"column:total_bets" json:"total_bets"`
	Wins      int64           `gorm:"column:wins" json:"-"`
	WinRate   float64         `gorm:"-" json:"win_rate"`
}

type BlockRequest struct {
	IsBlocked   *bool  `json:"is_blocked" binding:"required"`
	BlockReason string `json:"block_reason" binding:"max=255"`
}
