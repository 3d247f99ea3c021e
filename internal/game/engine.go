package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"colorbet/internal/apperr"
	"colorbet/internal/wallet"
)

const (
	DefaultStartDelay = 10 * time.Second
	DefaultHistory    = 20
	MaxHistory        = 100

	maxSettleAttempts = 3
)

// DurationSource supplies the betting window applied to newly created rounds.
type DurationSource interface {
	BettingDuration(ctx context.Context) (time.Duration, error)
}

type FixedDuration time.Duration

func (d FixedDuration) BettingDuration(context.Context) (time.Duration, error) {
	return time.Duration(d), nil
}

type Options struct {
	// StartDelay is the countdown between creation and the betting window.
	StartDelay time.Duration
	Notifier   Notifier
	// Draw returns the outcome number for rounds without a fixed outcome.
	Draw   func() int
	Clock  func() time.Time
	Logger *slog.Logger
}

// Engine owns the round lifecycle and settlement. It keeps no round state
// of its own; everything lives in the database.
type Engine struct {
	db         *gorm.DB
	rounds     Repository
	wallets    wallet.WalletRepository
	durations  DurationSource
	notifier   Notifier
	draw       func() int
	now        func() time.Time
	logger     *slog.Logger
	startDelay time.Duration

	createMu sync.Mutex
}

func NewEngine(db *gorm.DB, rounds Repository, wallets wallet.WalletRepository, durations DurationSource, opts Options) *Engine {
	e := &Engine{
		db:         db,
		rounds:     rounds,
		wallets:    wallets,
		durations:  durations,
		notifier:   opts.Notifier,
		draw:       opts.Draw,
		now:        opts.Clock,
		logger:     opts.Logger,
		startDelay: opts.StartDelay,
	}
	if e.draw == nil {
		e.draw = func() int { return rand.IntN(10) }
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.startDelay <= 0 {
		e.startDelay = DefaultStartDelay
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// Current returns the open round after applying every transition that is due,
// creating a round when none is open.
func (e *Engine) Current(ctx context.Context) (*Round, error) {
	round, err := e.rounds.FindOpenRound(ctx, e.db)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return e.openRound(ctx, false)
	}

	now := e.clock()
	if round.Status == StatusWaiting && !now.Before(round.StartTime) {
		opened, err := e.rounds.OpenBetting(ctx, e.db, round.ID)
		if err != nil {
			return nil, err
		}
		if round, err = e.rounds.GetRound(ctx, e.db, round.ID); err != nil {
			return nil, err
		}
		if opened {
			e.logger.Info("round betting opened", "round_id", round.ID, "sequence", round.SequenceNumber)
			e.publish(EventRoundBetting, round, 0)
		}
	}

	if round.Status == StatusBetting && !now.Before(round.BetsCloseAt) {
		if _, err := e.settle(ctx, round.ID); err != nil && !errors.Is(err, ErrInvalidRound) {
			return nil, err
		}
		return e.openRound(ctx, false)
	}
	if round.Status == StatusCompleted {
		return e.openRound(ctx, false)
	}
	return round, nil
}

// Advance is one ticker step.
func (e *Engine) Advance(ctx context.Context) error {
	_, err := e.Current(ctx)
	return err
}

// CreateRound opens a new round on demand. It fails with ErrInvalidRound
// while another round is open.
func (e *Engine) CreateRound(ctx context.Context) (*Round, error) {
	return e.openRound(ctx, true)
}

// EndRound settles a round immediately, whatever its schedule.
func (e *Engine) EndRound(ctx context.Context, id string) (*Round, error) {
	return e.settle(ctx, id)
}

func (e *Engine) FixOutcome(ctx context.Context, id string, n int) (*Round, error) {
	if n < 0 || n > 9 {
		return nil, fmt.Errorf("%w: fixed outcome must be 0-9, got %d", apperr.ErrValidation, n)
	}
	ok, err := e.rounds.FixOutcome(ctx, e.db, id, n)
	if err != nil {
		return nil, err
	}
	round, err := e.rounds.GetRound(ctx, e.db, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: round %d is %s", ErrInvalidRound, round.SequenceNumber, round.Status)
	}
	e.logger.Info("round outcome fixed", "round_id", id, "sequence", round.SequenceNumber)
	return round, nil
}

func (e *Engine) Round(ctx context.Context, id string) (*Round, error) {
	return e.rounds.GetRound(ctx, e.db, id)
}

// History lists completed rounds, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	if limit > MaxHistory {
		limit = MaxHistory
	}
	return e.rounds.ListCompleted(ctx, e.db, limit)
}

// openRound creates the next round unless one is already open. With
// exclusive set an existing open round is an error instead of the result.
func (e *Engine) openRound(ctx context.Context, exclusive bool) (*Round, error) {
	duration, err := e.durations.BettingDuration(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read betting duration: %w", err)
	}

	e.createMu.Lock()
	defer e.createMu.Unlock()

	var (
		round   *Round
		created bool
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := e.rounds.FindOpenRound(ctx, tx)
		if err != nil {
			return err
		}
		if open != nil {
			if exclusive {
				return fmt.Errorf("%w: round %d is still %s", ErrInvalidRound, open.SequenceNumber, open.Status)
			}
			round = open
			return nil
		}

		seq, err := e.rounds.MaxSequence(ctx, tx)
		if err != nil {
			return err
		}
		now := e.clock()
		start := now.Add(e.startDelay)
		slot := 1
		round = &Round{
			ID:             uuid.NewString(),
			SequenceNumber: seq + 1,
			Status:         StatusWaiting,
			StartTime:      start,
			BetsCloseAt:    start.Add(duration),
			TotalStaked:    decimal.Zero,
			OpenSlot:       &slot,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		created = true
		return e.rounds.CreateRound(ctx, tx, round)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another process opened a round between our read and insert.
		if exclusive {
			return nil, fmt.Errorf("%w: a round is already open", ErrInvalidRound)
		}
		open, ferr := e.rounds.FindOpenRound(ctx, e.db)
		if ferr != nil {
			return nil, ferr
		}
		if open == nil {
			return nil, err
		}
		return open, nil
	}
	if err != nil {
		return nil, err
	}

	if created {
		e.logger.Info("round created",
			"round_id", round.ID,
			"sequence", round.SequenceNumber,
			"start_time", round.StartTime,
			"bets_close_at", round.BetsCloseAt)
		e.publish(EventRoundCreated, round, 0)
	}
	return round, nil
}

// settle completes the round and resolves its pending wagers in one
// transaction. A round that is already completed, or that another caller
// completes first, yields ErrInvalidRound and is left untouched.
func (e *Engine) settle(ctx context.Context, id string) (*Round, error) {
	var (
		round   *Round
		settled int
		credits int
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			current *Round
			outcome Outcome
			now     = e.clock()
		)
		for attempt := 1; ; attempt++ {
			var err error
			current, err = e.rounds.LockRound(ctx, tx, id)
			if err != nil {
				return err
			}
			if current.Status == StatusCompleted {
				return fmt.Errorf("%w: round %d is already completed", ErrInvalidRound, current.SequenceNumber)
			}

			outcome = DeriveOutcome(e.resolve(current))
			won, err := e.rounds.CompleteRound(ctx, tx, current, outcome, now)
			if err != nil {
				return err
			}
			if won {
				break
			}
			if attempt == maxSettleAttempts {
				return fmt.Errorf("%w: round %d kept changing during settlement", ErrInvalidRound, current.SequenceNumber)
			}
			e.logger.Warn("round changed before completion, retrying", "round_id", id, "attempt", attempt)
		}

		bets, err := e.rounds.PendingBets(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, res := range SettleWagers(outcome, bets) {
			ok, err := e.rounds.SettleBet(ctx, tx, res, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			settled++
			if res.Outcome != BetWin {
				continue
			}
			credited, err := e.creditWin(ctx, tx, current, res, now)
			if err != nil {
				return err
			}
			if credited {
				credits++
			}
		}

		round, err = e.rounds.GetRound(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("round settled",
		"round_id", round.ID,
		"sequence", round.SequenceNumber,
		"outcome", *round.OutcomeNumber,
		"bets", settled,
		"winners_credited", credits)
	e.publish(EventRoundCompleted, round, settled)
	return round, nil
}

func (e *Engine) resolve(r *Round) int {
	if r.IsFixed && r.FixedOutcome != nil {
		return *r.FixedOutcome
	}
	return e.draw()
}

// creditWin pays a winning wager. A missing wallet is an anomaly: the wager
// stays settled and the rest of the batch continues.
func (e *Engine) creditWin(ctx context.Context, tx *gorm.DB, round *Round, res SettlementResult, at time.Time) (bool, error) {
	balance, err := e.wallets.Credit(ctx, tx, res.AccountID, res.Payout)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		e.logger.Warn("settlement skipped credit for missing wallet",
			"round_id", round.ID,
			"bet_id", res.BetID,
			"account_id", res.AccountID,
			"payout", res.Payout.String())
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ref := res.BetID
	err = e.wallets.CreateTransaction(ctx, tx, &wallet.Transaction{
		AccountID:    res.AccountID,
		Kind:         wallet.KindWin,
		Amount:       res.Payout,
		BalanceAfter: decimal.NewNullDecimal(balance),
		Description:  fmt.Sprintf("Won $%s from %s bet on round %d", res.Payout.StringFixed(2), res.Kind, round.SequenceNumber),
		Status:       wallet.StatusApproved,
		ReferenceID:  &ref,
		CreatedAt:    at,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) publish(t EventType, r *Round, settled int) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(RoundEvent{Type: t, Round: *r, Settled: settled, At: e.clock()})
}
