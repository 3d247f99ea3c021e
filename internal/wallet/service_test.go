package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"colorbet/internal/apperr"
	"colorbet/internal/testutil"
	"colorbet/internal/wallet"
)

func setup(t *testing.T) (*gorm.DB, *wallet.WalletRepositoryImpl, *wallet.Service) {
	t.Helper()
	db := testutil.NewDB(t, &wallet.Wallet{}, &wallet.Transaction{})
	repo := wallet.NewWalletRepositoryImpl(db)
	return db, repo, wallet.NewService(db, repo, nil)
}

func fund(t *testing.T, db *gorm.DB, repo *wallet.WalletRepositoryImpl, accountID string, amount string) {
	t.Helper()
	ctx := context.Background()
	_, err := repo.EnsureWallet(ctx, db, accountID)
	require.NoError(t, err)
	_, err = repo.Credit(ctx, db, accountID, decimal.RequireFromString(amount))
	require.NoError(t, err)
}

func TestWallet_CreatedLazily(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	w, err := svc.Wallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	again, err := svc.Wallet(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
}

func TestDebit_InsufficientFundsLeavesBalance(t *testing.T) {
	db, repo, _ := setup(t)
	ctx := context.Background()
	fund(t, db, repo, "player-1", "5")

	_, err := repo.Debit(ctx, db, "player-1", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	w, err := repo.GetWallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(5)))
}

func TestDebit_MissingWalletIsInsufficient(t *testing.T) {
	db, repo, _ := setup(t)
	_, err := repo.Debit(context.Background(), db, "nobody", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
}

func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	db, repo, _ := setup(t)
	ctx := context.Background()
	fund(t, db, repo, "player-1", "50")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Debit(ctx, db, "player-1", decimal.NewFromInt(10))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	w, err := repo.GetWallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero(), "balance %s", w.Balance)
}

func TestSubmitDeposit_Validation(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	_, err := svc.SubmitDeposit(ctx, wallet.DepositRequest{AccountID: "p", Amount: decimal.Zero, EvidenceURL: "/uploads/a.png"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SubmitDeposit(ctx, wallet.DepositRequest{AccountID: "p", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReviewTransaction_ApproveCreditsOnce(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	entry, err := svc.SubmitDeposit(ctx, wallet.DepositRequest{
		AccountID:   "player-1",
		Amount:      decimal.NewFromInt(50),
		EvidenceURL: "/uploads/proof.png",
	})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, entry.Status)

	w, err := svc.Wallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero(), "pending deposit must not credit")

	approve := wallet.ReviewRequest{Status: wallet.StatusApproved, Notes: "checked"}
	reviewed, err := svc.ReviewTransaction(ctx, entry.ID, approve)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)

	_, err = svc.ReviewTransaction(ctx, entry.ID, approve)
	require.NoError(t, err)

	w, err = svc.Wallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(50)), "balance %s", w.Balance)

	txs, err := svc.Transactions(ctx, "player-1")
	require.NoError(t, err)
	var deposits int
	for _, tx := range txs {
		if tx.Kind == wallet.KindDeposit {
			deposits++
			require.NotNil(t, tx.ReferenceID)
			assert.Equal(t, entry.ID, *tx.ReferenceID)
			assert.True(t, tx.BalanceAfter.Decimal.Equal(decimal.NewFromInt(50)))
		}
	}
	assert.Equal(t, 1, deposits)
}

func TestReviewTransaction_ConcurrentApprovalsCreditOnce(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	entry, err := svc.SubmitDeposit(ctx, wallet.DepositRequest{
		AccountID:   "player-1",
		Amount:      decimal.NewFromInt(25),
		EvidenceURL: "/uploads/proof.png",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReviewTransaction(ctx, entry.ID, wallet.ReviewRequest{Status: wallet.StatusApproved})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	w, err := svc.Wallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(25)), "balance %s", w.Balance)
}

func TestReviewTransaction_RejectThenApproveConflicts(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	entry, err := svc.SubmitDeposit(ctx, wallet.DepositRequest{
		AccountID:   "player-1",
		Amount:      decimal.NewFromInt(10),
		EvidenceURL: "/uploads/proof.png",
	})
	require.NoError(t, err)

	_, err = svc.ReviewTransaction(ctx, entry.ID, wallet.ReviewRequest{Status: wallet.StatusRejected, Notes: "blurry"})
	require.NoError(t, err)

	_, err = svc.ReviewTransaction(ctx, entry.ID, wallet.ReviewRequest{Status: wallet.StatusApproved})
	assert.True(t, errors.Is(err, wallet.ErrInvalidTransition))

	w, err := svc.Wallet(ctx, "player-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestReviewTransaction_Unknown(t *testing.T) {
	_, _, svc := setup(t)
	_, err := svc.ReviewTransaction(context.Background(), "missing", wallet.ReviewRequest{Status: wallet.StatusApproved})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
