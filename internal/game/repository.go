package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"colorbet/internal/apperr"
)

var (
	ErrInvalidRound  = errors.New("round is not accepting this operation")
	ErrRoundNotFound = fmt.Errorf("round %w", apperr.ErrNotFound)
)

// Repository persists rounds and wagers. Every method takes the handle to
// run on so engine steps can share one database transaction.
type Repository interface {
	FindOpenRound(ctx context.Context, tx *gorm.DB) (*Round, error)
	GetRound(ctx context.Context, tx *gorm.DB, id string) (*Round, error)
	LockRound(ctx context.Context, tx *gorm.DB, id string) (*Round, error)
	MaxSequence(ctx context.Context, tx *gorm.DB) (int64, error)
	CreateRound(ctx context.Context, tx *gorm.DB, r *Round) error
	OpenBetting(ctx context.Context, tx *gorm.DB, id string) (bool, error)
	CompleteRound(ctx context.Context, tx *gorm.DB, seen *Round, o Outcome, at time.Time) (bool, error)
	FixOutcome(ctx context.Context, tx *gorm.DB, id string, n int) (bool, error)
	ListCompleted(ctx context.Context, tx *gorm.DB, limit int) ([]Round, error)
	ReserveStake(ctx context.Context, tx *gorm.DB, roundID string, stake decimal.Decimal, now time.Time) (bool, error)
	CreateBet(ctx context.Context, tx *gorm.DB, b *Bet) error
	PendingBets(ctx context.Context, tx *gorm.DB, roundID string) ([]Bet, error)
	SettleBet(ctx context.Context, tx *gorm.DB, res SettlementResult, at time.Time) (bool, error)
	ListBets(ctx context.Context, tx *gorm.DB, accountID string, limit int) ([]Bet, error)
}

type RepositoryImpl struct{}

func NewRepositoryImpl() *RepositoryImpl {
	return &RepositoryImpl{}
}

// FindOpenRound returns the current round, or nil when none is open.
func (r *RepositoryImpl) FindOpenRound(ctx context.Context, tx *gorm.DB) (*Round, error) {
	var round Round
	err := tx.WithContext(ctx).
		Where("status IN ?", []Status{StatusWaiting, StatusBetting}).
		Order("sequence_number desc").
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open round: %w", err)
	}
	return &round, nil
}

func (r *RepositoryImpl) GetRound(ctx context.Context, tx *gorm.DB, id string) (*Round, error) {
	var round Round
	err := tx.WithContext(ctx).Where("id = ?", id).First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return &round, nil
}

// LockRound reads a round and holds its row lock until tx ends, so a fix
// committed elsewhere cannot slip in before the round completes.
func (r *RepositoryImpl) LockRound(ctx context.Context, tx *gorm.DB, id string) (*Round, error) {
	var round Round
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to lock round: %w", err)
	}
	return &round, nil
}

func (r *RepositoryImpl) MaxSequence(ctx context.Context, tx *gorm.DB) (int64, error) {
	var seq int64
	err := tx.WithContext(ctx).Model(&Round{}).Select("COALESCE(MAX(sequence_number), 0)").Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read round sequence: %w", err)
	}
	return seq, nil
}

func (r *RepositoryImpl) CreateRound(ctx context.Context, tx *gorm.DB, round *Round) error {
	if err := tx.WithContext(ctx).Create(round).Error; err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) OpenBetting(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&Round{}).
		Where("id = ? AND status = ?", id, StatusWaiting).
		Update("status", StatusBetting)
	if result.Error != nil {
		return false, fmt.Errorf("failed to open betting: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// CompleteRound is the settlement compare-and-swap. Only the caller that
// gets true may settle the round's wagers. The swap also fails when the
// round's fixed outcome no longer matches seen, so the outcome o was
// resolved from the state that is being completed.
func (r *RepositoryImpl) CompleteRound(ctx context.Context, tx *gorm.DB, seen *Round, o Outcome, at time.Time) (bool, error) {
	q := tx.WithContext(ctx).
		Model(&Round{}).
		Where("id = ? AND status IN ?", seen.ID, []Status{StatusWaiting, StatusBetting}).
		Where("is_fixed = ?", seen.IsFixed)
	if seen.FixedOutcome == nil {
		q = q.Where("fixed_outcome IS NULL")
	} else {
		q = q.Where("fixed_outcome = ?", *seen.FixedOutcome)
	}
	result := q.Updates(map[string]interface{}{
		"status":         StatusCompleted,
		"outcome_number": o.Number,
		"outcome_color":  o.Color,
		"outcome_size":   o.Size,
		"end_time":       at,
		"open_slot":      nil,
	})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete round: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *RepositoryImpl) FixOutcome(ctx context.Context, tx *gorm.DB, id string, n int) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&Round{}).
		Where("id = ? AND status IN ?", id, []Status{StatusWaiting, StatusBetting}).
		Updates(map[string]interface{}{
			"is_fixed":      true,
			"fixed_outcome": n,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to fix outcome: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *RepositoryImpl) ListCompleted(ctx context.Context, tx *gorm.DB, limit int) ([]Round, error) {
	var out []Round
	err := tx.WithContext(ctx).
		Where("status = ?", StatusCompleted).
		Order("sequence_number desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	return out, nil
}

// ReserveStake counts a wager against a round that is still taking bets.
// The row update serialises intake against the settlement swap: a bet either
// commits before settlement reads pending wagers or sees the round closed.
func (r *RepositoryImpl) ReserveStake(ctx context.Context, tx *gorm.DB, roundID string, stake decimal.Decimal, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&Round{}).
		Where("id = ? AND status = ? AND bets_close_at > ?", roundID, StatusBetting, now).
		Updates(map[string]interface{}{
			"bet_count":    gorm.Expr("bet_count + 1"),
			"total_staked": gorm.Expr("total_staked + ?", stake),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to reserve stake: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *RepositoryImpl) CreateBet(ctx context.Context, tx *gorm.DB, b *Bet) error {
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) PendingBets(ctx context.Context, tx *gorm.DB, roundID string) ([]Bet, error) {
	var out []Bet
	err := tx.WithContext(ctx).
		Where("round_id = ? AND outcome = ?", roundID, BetPending).
		Order("created_at asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending bets: %w", err)
	}
	return out, nil
}

func (r *RepositoryImpl) SettleBet(ctx context.Context, tx *gorm.DB, res SettlementResult, at time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&Bet{}).
		Where("id = ? AND outcome = ?", res.BetID, BetPending).
		Updates(map[string]interface{}{
			"outcome":    res.Outcome,
			"payout":     res.Payout,
			"settled_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to settle bet: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *RepositoryImpl) ListBets(ctx context.Context, tx *gorm.DB, accountID string, limit int) ([]Bet, error) {
	var out []Bet
	err := tx.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return out, nil
}
