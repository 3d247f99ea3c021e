package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"colorbet/internal/apperr"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidTransition   = errors.New("transaction already reviewed")
	ErrWalletNotFound      = fmt.Errorf("wallet %w", apperr.ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", apperr.ErrNotFound)
)

// WalletRepository is the ledger store. Methods taking a tx run inside the
// caller's database transaction so several effects commit together.
type WalletRepository interface {
	GetWallet(ctx context.Context, accountID string) (*Wallet, error)
	EnsureWallet(ctx context.Context, tx *gorm.DB, accountID string) (*Wallet, error)
	Debit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *Transaction) error
	GetTransaction(ctx context.Context, tx *gorm.DB, id string) (*Transaction, error)
	MarkReviewed(ctx context.Context, tx *gorm.DB, id string, status Status, notes string, at time.Time) (bool, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	ListAllTransactions(ctx context.Context, limit int) ([]Transaction, error)
}

type WalletRepositoryImpl struct {
	db *gorm.DB
}

func NewWalletRepositoryImpl(db *gorm.DB) *WalletRepositoryImpl {
	return &WalletRepositoryImpl{db: db}
}

func (r *WalletRepositoryImpl) GetWallet(ctx context.Context, accountID string) (*Wallet, error) {
	var w Wallet
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

func (r *WalletRepositoryImpl) EnsureWallet(ctx context.Context, tx *gorm.DB, accountID string) (*Wallet, error) {
	w := Wallet{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Balance:   decimal.Zero,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(&w).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	var existing Wallet
	if err := tx.WithContext(ctx).Where("account_id = ?", accountID).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &existing, nil
}

// Debit subtracts amount in a single conditional statement so concurrent
// debits can never take the balance below zero. A missing wallet reads the
// same as an empty one.
func (r *WalletRepositoryImpl) Debit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	result := tx.WithContext(ctx).
		Model(&Wallet{}).
		Where("account_id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return decimal.Zero, fmt.Errorf("failed to debit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, ErrInsufficientFunds
	}
	return r.balance(ctx, tx, accountID)
}

// Credit adds amount as an atomic increment.
func (r *WalletRepositoryImpl) Credit(ctx context.Context, tx *gorm.DB, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	result := tx.WithContext(ctx).
		Model(&Wallet{}).
		Where("account_id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return decimal.Zero, fmt.Errorf("failed to credit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, ErrWalletNotFound
	}
	return r.balance(ctx, tx, accountID)
}

func (r *WalletRepositoryImpl) balance(ctx context.Context, tx *gorm.DB, accountID string) (decimal.Decimal, error) {
	var w Wallet
	if err := tx.WithContext(ctx).Select("balance").Where("account_id = ?", accountID).Take(&w).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return w.Balance, nil
}

func (r *WalletRepositoryImpl) CreateTransaction(ctx context.Context, tx *gorm.DB, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *WalletRepositoryImpl) GetTransaction(ctx context.Context, tx *gorm.DB, id string) (*Transaction, error) {
	var t Transaction
	err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// MarkReviewed moves a pending entry to status. It reports false when the
// entry was not pending, which is how a second reviewer loses the race.
func (r *WalletRepositoryImpl) MarkReviewed(ctx context.Context, tx *gorm.DB, id string, status Status, notes string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":      status,
		"reviewed_at": at,
	}
	if notes != "" {
		updates["reviewer_notes"] = notes
	}
	result := tx.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to review transaction: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *WalletRepositoryImpl) ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	var out []Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

func (r *WalletRepositoryImpl) ListAllTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	var out []Transaction
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}
