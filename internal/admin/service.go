// Package admin serves the back office: editable settings and the
// dashboard aggregates.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"colorbet/internal/account"
	"colorbet/internal/apperr"
	"colorbet/internal/game"
	"colorbet/internal/wallet"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Settings returns the current settings. The defaults are written only when
// the row is missing.
func (s *Service) Settings(ctx context.Context) (*Settings, error) {
	out, err := s.loadSettings(ctx)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return out, err
	}

	seed := defaultSettings()
	seed.UpdatedAt = s.now()
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&seed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}
	return s.loadSettings(ctx)
}

func (s *Service) loadSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	err := s.db.WithContext(ctx).Where("id = ?", settingsID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &out, nil
}

func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (*Settings, error) {
	if d := patch.GameDuration; d != nil && (*d < MinGameDuration || *d > MaxGameDuration) {
		return nil, fmt.Errorf("%w: game_duration must be between %d and %d seconds", apperr.ErrValidation, MinGameDuration, MaxGameDuration)
	}
	if _, err := s.Settings(ctx); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.QRCodeURL != nil {
		updates["qr_code_url"] = *patch.QRCodeURL
	}
	if patch.HeaderBannerText != nil {
		updates["header_banner_text"] = *patch.HeaderBannerText
	}
	if patch.HeaderBannerActive != nil {
		updates["header_banner_active"] = *patch.HeaderBannerActive
	}
	if patch.GameDuration != nil {
		updates["game_duration"] = *patch.GameDuration
	}
	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Model(&Settings{}).Where("id = ?", settingsID).Updates(updates).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update settings: %w", err)
		}
		s.logger.Info("settings updated", "fields", len(updates))
	}
	return s.Settings(ctx)
}

// BettingDuration is the window new rounds are created with. Rounds already
// open keep the window they were created with.
func (s *Service) BettingDuration(ctx context.Context) (time.Duration, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(st.GameDuration) * time.Second, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	midnight := s.now().Truncate(24 * time.Hour)

	var st Stats
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&st.TotalUsers, db.Model(&account.Account{})},
		{&st.BlockedUsers, db.Model(&account.Account{}).Where("is_blocked = ?", true)},
		{&st.PendingTransactions, db.Model(&wallet.Transaction{}).Where("status = ?", wallet.StatusPending)},
		{&st.ActiveGames, db.Model(&game.Round{}).Where("status IN ?", []game.Status{game.StatusWaiting, game.StatusBetting})},
		{&st.TodayBets, db.Model(&game.Bet{}).Where("created_at >= ?", midnight)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count stats: %w", err)
		}
	}

	var err error
	if st.TotalBalance, err = sum(db.Model(&wallet.Wallet{}), "balance"); err != nil {
		return nil, err
	}
	if st.TodayRevenue, err = sum(db.Model(&game.Bet{}).Where("created_at >= ?", midnight), "stake"); err != nil {
		return nil, err
	}
	return &st, nil
}

func sum(q *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.Select("COALESCE(SUM(" + column + "), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s: %w", column, err)
	}
	return total, nil
}
