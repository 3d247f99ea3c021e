package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusBetting   Status = "betting"
	StatusCompleted Status = "completed"
)

type Kind string

const (
	KindNumber Kind = "number"
	KindColor  Kind = "color"
	KindSize   Kind = "size"
)

type Color string

const (
	ColorRed   Color = "red"
	ColorGreen Color = "green"
)

type Size string

const (
	SizeBig   Size = "big"
	SizeSmall Size = "small"
)

type BetOutcome string

const (
	BetPending BetOutcome = "pending"
	BetWin     BetOutcome = "win"
	BetLoss    BetOutcome = "loss"
)

// Round is one play cycle. At most one round is open (waiting or betting);
// OpenSlot is 1 while it is and NULL afterwards, and its unique index makes
// the database refuse a second open round.
type Round struct {
	ID             string          `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	SequenceNumber int64           `gorm:"column:sequence_number;not null;uniqueIndex" json:"sequence_number"`
	Status         Status          `gorm:"column:status;type:varchar(10);not null;index" json:"status"`
	StartTime      time.Time       `gorm:"column:start_time;not null" json:"start_time"`
	BetsCloseAt    time.Time       `gorm:"column:bets_close_at;not null" json:"bets_close_at"`
	EndTime        *time.Time      `gorm:"column:end_time" json:"end_time,omitempty"`
	OutcomeNumber  *int            `gorm:"column:outcome_number" json:"outcome_number,omitempty"`
	OutcomeColor   *Color          `gorm:"column:outcome_color;type:varchar(10)" json:"outcome_color,omitempty"`
	OutcomeSize    *Size           `gorm:"column:outcome_size;type:varchar(10)" json:"outcome_size,omitempty"`
	IsFixed        bool            `gorm:"column:is_fixed;not null;default:false" json:"-"`
	FixedOutcome   *int            `gorm:"column:fixed_outcome" json:"-"`
	BetCount       int64           `gorm:"column:bet_count;not null;default:0" json:"bet_count"`
	TotalStaked    decimal.Decimal `gorm:"column:total_staked;type:numeric(20,2);not null;default:0" json:"total_staked"`
	OpenSlot       *int            `gorm:"column:open_slot;uniqueIndex" json:"-"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (r *Round) IsOpen() bool {
	return r.Status == StatusWaiting || r.Status == StatusBetting
}

// TimeLeft is how long until the next scheduled transition, never negative.
func (r *Round) TimeLeft(now time.Time) time.Duration {
	var until time.Time
	switch r.Status {
	case StatusWaiting:
		until = r.StartTime
	case StatusBetting:
		until = r.BetsCloseAt
	default:
		return 0
	}
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Outcome returns the settled outcome, or false while the round is open.
func (r *Round) Outcome() (Outcome, bool) {
	if r.Status != StatusCompleted || r.OutcomeNumber == nil {
		return Outcome{}, false
	}
	return DeriveOutcome(*r.OutcomeNumber), true
}

// Bet is a wager. Outcome and Payout leave pending exactly once.
type Bet struct {
	ID        string          `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	AccountID string          `gorm:"column:account_id;type:varchar(64);not null;index" json:"account_id"`
	RoundID   string          `gorm:"column:round_id;type:varchar(36);not null;index" json:"round_id"`
	Kind      Kind            `gorm:"column:kind;type:varchar(10);not null" json:"kind"`
	Value     string          `gorm:"column:value;type:varchar(10);not null" json:"value"`
	Stake     decimal.Decimal `gorm:"column:stake;type:numeric(20,2);not null" json:"stake"`
	Outcome   BetOutcome      `gorm:"column:outcome;type:varchar(10);not null;index" json:"outcome"`
	Payout    decimal.Decimal `gorm:"column:payout;type:numeric(20,2);not null;default:0" json:"payout"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;index" json:"created_at"`
	SettledAt *time.Time      `gorm:"column:settled_at" json:"settled_at,omitempty"`
}

type PlaceBetRequest struct {
	AccountID string          `json:"-"`
	RoundID   string          `json:"round_id" binding:"required"`
	Kind      Kind            `json:"kind" binding:"required,oneof=number color size"`
	Value     string          `json:"value" binding:"required,max=10"`
	Stake     decimal.Decimal `json:"stake" binding:"required,gt=0"`
}

type FixOutcomeRequest struct {
	FixedOutcome *int `json:"fixed_outcome" binding:"required,min=0,max=9"`
}

type EventType string

const (
	EventRoundCreated   EventType = "round.created"
	EventRoundBetting   EventType = "round.betting"
	EventRoundCompleted EventType = "round.completed"
)

type RoundEvent struct {
	Type    EventType `json:"type"`
	Round   Round     `json:"round"`
	Settled int       `json:"settled,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives round transitions after they commit. Implementations
// must not block.
type Notifier interface {
	Notify(event RoundEvent)
}
