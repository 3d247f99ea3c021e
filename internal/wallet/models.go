package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit        Kind = "deposit"
	KindBet            Kind = "bet"
	KindWin            Kind = "win"
	KindLoss           Kind = "loss"
	KindPendingDeposit Kind = "pending_deposit"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Wallet struct {
	ID        string          `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	AccountID string          `gorm:"column:account_id;type:varchar(64);not null;uniqueIndex" json:"account_id"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
}

// Transaction is an append-only ledger entry. Every wallet-affecting event
// writes exactly one.
type Transaction struct {
	ID            string              `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	AccountID     string              `gorm:"column:account_id;type:varchar(64);not null;index" json:"account_id"`
	Kind          Kind                `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"` // signed
	BalanceAfter  decimal.NullDecimal `gorm:"column:balance_after;type:numeric(20,2)" json:"balance_after"`
	Description   string              `gorm:"column:description;type:varchar(255);not null" json:"description"`
	Status        Status              `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	EvidenceURL   *string             `gorm:"column:evidence_url;type:varchar(512)" json:"evidence_url,omitempty"`
	ReviewerNotes *string             `gorm:"column:reviewer_notes;type:text" json:"reviewer_notes,omitempty"`
	ReferenceID   *string             `gorm:"column:reference_id;type:varchar(64);index" json:"reference_id,omitempty"` // round, wager or reviewed entry
	CreatedAt     time.Time           `gorm:"column:created_at;not null;index" json:"created_at"`
	ReviewedAt    *time.Time          `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
}

type DepositRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	EvidenceURL string
}

type ReviewRequest struct {
	Status Status `json:"status" binding:"required,oneof=approved rejected"`
	Notes  string `json:"notes"`
}
