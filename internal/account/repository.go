package account

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"colorbet/internal/apperr"
)

var ErrAccountNotFound = fmt.Errorf("account %w", apperr.ErrNotFound)

type Repository interface {
	EnsureFromClaims(ctx context.Context, id Identity) (*Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	ListWithStats(ctx context.Context) ([]Summary, error)
	SetBlocked(ctx context.Context, id string, blocked bool, reason string) (*Account, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepositoryImpl(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// EnsureFromClaims creates the account on first sight and refreshes the
// profile fields afterwards. Block state is never taken from the token.
func (r *RepositoryImpl) EnsureFromClaims(ctx context.Context, id Identity) (*Account, error) {
	if id.ID == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
	}
	role := id.Role
	if role != RoleAdmin {
		role = RoleUser
	}

	now := time.Now().UTC()
	acc := Account{
		ID:        id.ID,
		Email:     id.Email,
		Username:  id.Username,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "username", "role", "updated_at"}),
		}).
		Create(&acc).Error
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	return r.Get(ctx, id.ID)
}

func (r *RepositoryImpl) Get(ctx context.Context, id string) (*Account, error) {
	var acc Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

func (r *RepositoryImpl) ListWithStats(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := r.db.WithContext(ctx).
		Table("accounts").
		Select(`accounts.*,
			COALESCE(wallets.balance, 0) AS balance,
			(SELECT COUNT(*) FROM bets WHERE bets.account_id = accounts.id) AS total_bets,
			(SELECT COUNT(*) FROM bets WHERE bets.account_id = accounts.id AND bets.outcome = 'win') AS wins`).
		Joins("LEFT JOIN wallets ON wallets.account_id = accounts.id").
		Order("accounts.created_at desc").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	for i := range out {
		out[i].WinRate = winRate(out[i].Wins, out[i].TotalBets)
	}
	return out, nil
}

// winRate is the percentage of wagers won, rounded to two places.
func winRate(wins, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(total)*10000) / 100
}

func (r *RepositoryImpl) SetBlocked(ctx context.Context, id string, blocked bool, reason string) (*Account, error) {
	updates := map[string]interface{}{
		"is_blocked":   blocked,
		"block_reason": nil,
	}
	if blocked && reason != "" {
		updates["block_reason"] = reason
	}
	result := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}
	return r.Get(ctx, id)
}
