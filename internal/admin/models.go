package admin

import (
	"time"

	"github.com/shopspring/decimal"
)

const settingsID = 1

const (
	DefaultQRCodeURL        = "https://via.placeholder.com/200x200?text=Payment+QR+Code"
	DefaultHeaderBannerText = "Welcome to ColorBet Casino!"
	DefaultGameDuration     = 60

	MinGameDuration = 10
	MaxGameDuration = 3600
)

// Settings is the single row of operator-editable settings.
type Settings struct {
	ID                 int       `gorm:"column:id;primaryKey;autoIncrement:false" json:"-"`
	QRCodeURL          string    `gorm:"column:qr_code_url;type:varchar(512);not null" json:"qr_code_url"`
	HeaderBannerText   string    `gorm:"column:header_banner_text;type:varchar(255);not null" json:"header_banner_text"`
	HeaderBannerActive bool      `gorm:"column:header_banner_active;not null" json:"header_banner_active"`
	GameDuration       int       `gorm:"column:game_duration;not null" json:"game_duration"` // seconds
	UpdatedAt          time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Settings) TableName() string {
	return "admin_settings"
}

func defaultSettings() Settings {
	return Settings{
		ID:                 settingsID,
		QRCodeURL:          DefaultQRCodeURL,
		HeaderBannerText:   DefaultHeaderBannerText,
		HeaderBannerActive: true,
		GameDuration:       DefaultGameDuration,
	}
}

// SettingsPatch updates only the fields that are set.
type SettingsPatch struct {
	QRCodeURL          *string `json:"qr_code_url" binding:"omitempty,url,max=512"`
	HeaderBannerText   *string `json:"header_banner_text" binding:"omitempty,max=255"`
	HeaderBannerActive *bool   `json:"header_banner_active"`
	GameDuration       *int    `json:"game_duration" binding:"omitempty,min=10,max=3600"`
}

type Stats struct {
	TotalUsers          int64           `json:"total_users"`
	TotalBalance        decimal.Decimal `json:"total_balance"`
	PendingTransactions int64           `json:"pending_transactions"`
	ActiveGames         int64           `json:"active_games"`
	TodayBets           int64           `json:"today_bets"`
	TodayRevenue        decimal.Decimal `json:"today_revenue"`
	BlockedUsers        int64           `json:"blocked_users"`
}
