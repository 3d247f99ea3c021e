package game

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"colorbet/internal/apperr"
)

var (
	numberMultiplier = decimal.NewFromInt(9)
	colorMultiplier  = decimal.NewFromInt(2)
	sizeMultiplier   = decimal.NewFromInt(2)
)

type Outcome struct {
	Number int   `json:"number"`
	Color  Color `json:"color"`
	Size   Size  `json:"size"`
}

// DeriveOutcome maps a drawn number to its color and size. Zero is green;
// other even numbers are red and odd numbers green. Five and above is big.
func DeriveOutcome(n int) Outcome {
	o := Outcome{Number: n, Color: ColorGreen, Size: SizeSmall}
	if n != 0 && n%2 == 0 {
		o.Color = ColorRed
	}
	if n >= 5 {
		o.Size = SizeBig
	}
	return o
}

// Multiplier is the payout factor applied to a winning stake.
func Multiplier(kind Kind) decimal.Decimal {
	switch kind {
	case KindNumber:
		return numberMultiplier
	case KindColor:
		return colorMultiplier
	case KindSize:
		return sizeMultiplier
	default:
		return decimal.Zero
	}
}

// ValidateWager checks that value is in the domain of kind.
func ValidateWager(kind Kind, value string) error {
	switch kind {
	case KindNumber:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 9 || strconv.Itoa(n) != value {
			return fmt.Errorf("%w: number bets take a digit 0-9, got %q", apperr.ErrValidation, value)
		}
	case KindColor:
		if Color(value) != ColorRed && Color(value) != ColorGreen {
			return fmt.Errorf("%w: color bets take red or green, got %q", apperr.ErrValidation, value)
		}
	case KindSize:
		if Size(value) != SizeBig && Size(value) != SizeSmall {
			return fmt.Errorf("%w: size bets take big or small, got %q", apperr.ErrValidation, value)
		}
	default:
		return fmt.Errorf("%w: unknown bet kind %q", apperr.ErrValidation, kind)
	}
	return nil
}

func wins(o Outcome, kind Kind, value string) bool {
	switch kind {
	case KindNumber:
		n, err := strconv.Atoi(value)
		return err == nil && n == o.Number
	case KindColor:
		return Color(value) == o.Color
	case KindSize:
		return Size(value) == o.Size
	}
	return false
}

type SettlementResult struct {
	BetID     string
	AccountID string
	Kind      Kind
	Value     string
	Stake     decimal.Decimal
	Outcome   BetOutcome
	Payout    decimal.Decimal
}

// SettleWagers resolves every wager against the outcome. It is pure; both
// scheduled and forced settlement go through it.
func SettleWagers(o Outcome, wagers []Bet) []SettlementResult {
	results := make([]SettlementResult, 0, len(wagers))
	for _, w := range wagers {
		res := SettlementResult{
			BetID:     w.ID,
			AccountID: w.AccountID,
			Kind:      w.Kind,
			Value:     w.Value,
			Stake:     w.Stake,
			Outcome:   BetLoss,
			Payout:    decimal.Zero,
		}
		if wins(o, w.Kind, w.Value) {
			res.Outcome = BetWin
			res.Payout = w.Stake.Mul(Multiplier(w.Kind))
		}
		results = append(results, res)
	}
	return results
}
