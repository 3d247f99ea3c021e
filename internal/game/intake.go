package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"colorbet/internal/apperr"
	"colorbet/internal/wallet"
)

const (
	DefaultBetsLimit = 50
	MaxBetsLimit     = 200
)

// PlaceBet admits a wager. The round counter, the debit, the wager and its
// ledger entry commit together or not at all.
func (e *Engine) PlaceBet(ctx context.Context, req PlaceBetRequest) (*Bet, error) {
	if !req.Stake.IsPositive() {
		return nil, fmt.Errorf("%w: stake must be positive", apperr.ErrValidation)
	}
	if !req.Stake.Equal(req.Stake.Round(2)) {
		return nil, fmt.Errorf("%w: stake has more than two decimal places", apperr.ErrValidation)
	}
	if err := ValidateWager(req.Kind, req.Value); err != nil {
		return nil, err
	}

	now := e.clock()
	bet := &Bet{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		RoundID:   req.RoundID,
		Kind:      req.Kind,
		Value:     req.Value,
		Stake:     req.Stake,
		Outcome:   BetPending,
		Payout:    decimal.Zero,
		CreatedAt: now,
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := e.rounds.ReserveStake(ctx, tx, req.RoundID, req.Stake, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: round %s is not taking bets", ErrInvalidRound, req.RoundID)
		}

		balance, err := e.wallets.Debit(ctx, tx, req.AccountID, req.Stake)
		if err != nil {
			return err
		}
		if err := e.rounds.CreateBet(ctx, tx, bet); err != nil {
			return err
		}

		ref := bet.ID
		return e.wallets.CreateTransaction(ctx, tx, &wallet.Transaction{
			AccountID:    req.AccountID,
			Kind:         wallet.KindBet,
			Amount:       req.Stake.Neg(),
			BalanceAfter: decimal.NewNullDecimal(balance),
			Description:  fmt.Sprintf("Bet $%s on %s: %s", req.Stake.StringFixed(2), req.Kind, req.Value),
			Status:       wallet.StatusApproved,
			ReferenceID:  &ref,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("bet placed",
		"bet_id", bet.ID,
		"round_id", bet.RoundID,
		"account_id", bet.AccountID,
		"kind", string(bet.Kind),
		"value", bet.Value,
		"stake", bet.Stake.String())
	return bet, nil
}

// Bets lists an account's wagers, newest first.
func (e *Engine) Bets(ctx context.Context, accountID string, limit int) ([]Bet, error) {
	if limit <= 0 {
		limit = DefaultBetsLimit
	}
	if limit > MaxBetsLimit {
		limit = MaxBetsLimit
	}
	return e.rounds.ListBets(ctx, e.db, accountID, limit)
}
