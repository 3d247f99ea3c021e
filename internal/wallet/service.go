package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"colorbet/internal/apperr"
)

const (
	// RecentLimit bounds an account's own history listing.
	RecentLimit = 20
	// AdminLimit bounds the back-office listing.
	AdminLimit = 200
)

type Service struct {
	db     *gorm.DB
	repo   WalletRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, repo WalletRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Wallet returns the account's wallet, opening an empty one on first use.
func (s *Service) Wallet(ctx context.Context, accountID string) (*Wallet, error) {
	w, err := s.repo.GetWallet(ctx, accountID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}
	return s.repo.EnsureWallet(ctx, s.db, accountID)
}

func (s *Service) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, accountID, RecentLimit)
}

func (s *Service) AllTransactions(ctx context.Context) ([]Transaction, error) {
	return s.repo.ListAllTransactions(ctx, AdminLimit)
}

// SubmitDeposit records a deposit request awaiting review. Balance is not
// touched until an admin approves it.
func (s *Service) SubmitDeposit(ctx context.Context, req DepositRequest) (*Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", apperr.ErrValidation)
	}
	if req.EvidenceURL == "" {
		return nil, fmt.Errorf("%w: payment screenshot is required", apperr.ErrValidation)
	}

	evidence := req.EvidenceURL
	entry := &Transaction{
		AccountID:   req.AccountID,
		Kind:        KindPendingDeposit,
		Amount:      req.Amount,
		Description: fmt.Sprintf("Deposit request of $%s", req.Amount.StringFixed(2)),
		Status:      StatusPending,
		EvidenceURL: &evidence,
		CreatedAt:   s.now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.EnsureWallet(ctx, tx, req.AccountID); err != nil {
			return err
		}
		return s.repo.CreateTransaction(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit submitted",
		"account_id", req.AccountID,
		"transaction_id", entry.ID,
		"amount", req.Amount.String())
	return entry, nil
}

// ReviewTransaction approves or rejects a pending entry. Repeating the
// decision already recorded is a no-op; a conflicting decision fails with
// ErrInvalidTransition. Approval of a deposit credits the wallet exactly once.
func (s *Service) ReviewTransaction(ctx context.Context, id string, req ReviewRequest) (*Transaction, error) {
	if req.Status != StatusApproved && req.Status != StatusRejected {
		return nil, fmt.Errorf("%w: status must be approved or rejected", apperr.ErrValidation)
	}

	var (
		entry    *Transaction
		credited bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.MarkReviewed(ctx, tx, id, req.Status, req.Notes, s.now())
		if err != nil {
			return err
		}
		entry, err = s.repo.GetTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if !applied {
			if entry.Status == req.Status {
				return nil
			}
			return fmt.Errorf("%w: transaction %s is %s", ErrInvalidTransition, id, entry.Status)
		}
		if req.Status != StatusApproved || entry.Kind != KindPendingDeposit {
			return nil
		}

		if _, err := s.repo.EnsureWallet(ctx, tx, entry.AccountID); err != nil {
			return err
		}
		balance, err := s.repo.Credit(ctx, tx, entry.AccountID, entry.Amount)
		if err != nil {
			return err
		}
		ref := entry.ID
		credited = true
		return s.repo.CreateTransaction(ctx, tx, &Transaction{
			AccountID:    entry.AccountID,
			Kind:         KindDeposit,
			Amount:       entry.Amount,
			BalanceAfter: decimal.NewNullDecimal(balance),
			Description:  fmt.Sprintf("Approved deposit of $%s", entry.Amount.StringFixed(2)),
			Status:       StatusApproved,
			ReferenceID:  &ref,
			CreatedAt:    s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction reviewed",
		"transaction_id", id,
		"status", string(entry.Status),
		"credited", credited)
	return entry, nil
}
