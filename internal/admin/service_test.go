package admin_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"colorbet/internal/account"
	"colorbet/internal/admin"
	"colorbet/internal/apperr"
	"colorbet/internal/game"
	"colorbet/internal/testutil"
	"colorbet/internal/wallet"
)

func TestSettings_Defaults(t *testing.T) {
	db := testutil.NewDB(t, &admin.Settings{})
	svc := admin.NewService(db, nil)
	ctx := context.Background()

	st, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin.DefaultQRCodeURL, st.QRCodeURL)
	assert.Equal(t, admin.DefaultHeaderBannerText, st.HeaderBannerText)
	assert.True(t, st.HeaderBannerActive)
	assert.Equal(t, 60, st.GameDuration)

	d, err := svc.BettingDuration(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}

func TestSettings_SeedsOnlyWhenMissing(t *testing.T) {
	db := testutil.NewDB(t, &admin.Settings{})
	var inserts atomic.Int32
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("count_inserts", func(*gorm.DB) {
		inserts.Add(1)
	}))
	svc := admin.NewService(db, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Settings(ctx)
		require.NoError(t, err)
		_, err = svc.BettingDuration(ctx)
		require.NoError(t, err)
	}
	duration := 30
	_, err := svc.UpdateSettings(ctx, admin.SettingsPatch{GameDuration: &duration})
	require.NoError(t, err)

	assert.Equal(t, int32(1), inserts.Load())
	var rows int64
	require.NoError(t, db.Model(&admin.Settings{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestUpdateSettings_Partial(t *testing.T) {
	db := testutil.NewDB(t, &admin.Settings{})
	svc := admin.NewService(db, nil)
	ctx := context.Background()

	inactive := false
	duration := 30
	st, err := svc.UpdateSettings(ctx, admin.SettingsPatch{
		HeaderBannerActive: &inactive,
		GameDuration:       &duration,
	})
	require.NoError(t, err)
	assert.False(t, st.HeaderBannerActive)
	assert.Equal(t, 30, st.GameDuration)
	assert.Equal(t, admin.DefaultHeaderBannerText, st.HeaderBannerText)

	d, err := svc.BettingDuration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestUpdateSettings_RejectsDurationOutOfRange(t *testing.T) {
	db := testutil.NewDB(t, &admin.Settings{})
	svc := admin.NewService(db, nil)

	for _, secs := range []int{0, 9, 3601} {
		d := secs
		_, err := svc.UpdateSettings(context.Background(), admin.SettingsPatch{GameDuration: &d})
		assert.ErrorIs(t, err, apperr.ErrValidation, "duration %d", secs)
	}
}

func TestStats(t *testing.T) {
	db := testutil.NewDB(t, &account.Account{}, &wallet.Wallet{}, &wallet.Transaction{}, &game.Round{}, &game.Bet{}, &admin.Settings{})
	ctx := context.Background()

	accounts := account.NewRepositoryImpl(db)
	for _, id := range []string{"alice", "bob", "carol"} {
		_, err := accounts.EnsureFromClaims(ctx, account.Identity{ID: id, Username: id})
		require.NoError(t, err)
	}
	_, err := accounts.SetBlocked(ctx, "carol", true, "chargeback")
	require.NoError(t, err)

	wallets := wallet.NewWalletRepositoryImpl(db)
	walletSvc := wallet.NewService(db, wallets, nil)
	for id, amount := range map[string]int64{"alice": 100, "bob": 40} {
		_, err := wallets.EnsureWallet(ctx, db, id)
		require.NoError(t, err)
		_, err = wallets.Credit(ctx, db, id, decimal.NewFromInt(amount))
		require.NoError(t, err)
	}
	_, err = walletSvc.SubmitDeposit(ctx, wallet.DepositRequest{AccountID: "bob", Amount: decimal.NewFromInt(10), EvidenceURL: "/uploads/x.png"})
	require.NoError(t, err)

	svc := admin.NewService(db, nil)
	clock := time.Now().UTC()
	engine := game.NewEngine(db, game.NewRepositoryImpl(), wallets, svc, game.Options{
		Clock:      func() time.Time { return clock },
		StartDelay: time.Millisecond,
	})
	_, err = engine.Current(ctx)
	require.NoError(t, err)
	clock = clock.Add(time.Second)
	round, err := engine.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, game.StatusBetting, round.Status)

	_, err = engine.PlaceBet(ctx, game.PlaceBetRequest{AccountID: "alice", RoundID: round.ID, Kind: game.KindColor, Value: "red", Stake: decimal.NewFromInt(15)})
	require.NoError(t, err)
	_, err = engine.PlaceBet(ctx, game.PlaceBetRequest{AccountID: "bob", RoundID: round.ID, Kind: game.KindSize, Value: "big", Stake: decimal.NewFromInt(5)})
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalUsers)
	assert.Equal(t, int64(1), st.BlockedUsers)
	assert.Equal(t, int64(1), st.PendingTransactions)
	assert.Equal(t, int64(1), st.ActiveGames)
	assert.Equal(t, int64(2), st.TodayBets)
	assert.True(t, st.TodayRevenue.Equal(decimal.NewFromInt(20)), "revenue %s", st.TodayRevenue)
	assert.True(t, st.TotalBalance.Equal(decimal.NewFromInt(120)), "balance %s", st.TotalBalance)
}
