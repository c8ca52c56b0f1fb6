package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// NonTerminalLoan returns the user's pending or active loan, if any.
func (s *Store) NonTerminalLoan(userID int64) (*models.Loan, error) {
	var loan models.Loan
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("user_id = ? AND status IN ?", userID,
			[]models.LoanStatus{models.LoanStatusPending, models.LoanStatusActive}).
			First(&loan).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// CreateLoan inserts a pending application, enforcing the single
// non-terminal-loan invariant inside the transaction.
func (s *Store) CreateLoan(loan *models.Loan) error {
	return s.WithTx(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Loan{}).
			Where("user_id = ? AND status IN ?", loan.UserID,
				[]models.LoanStatus{models.LoanStatusPending, models.LoanStatusActive}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("user %d already has a pending or active loan: %w",
				loan.UserID, models.ErrConflict)
		}
		return tx.Create(loan).Error
	})
}

func (s *Store) LoanByUniqueID(uniqueID string) (*models.Loan, error) {
	var loan models.Loan
	err := s.Read(func(db *gorm.DB) error {
		return db.First(&loan, "unique_id = ?", uniqueID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// TransitionLoanTx moves a loan between states inside the caller's
// transaction, guarded on the expected current status.
func (s *Store) TransitionLoanTx(tx *gorm.DB, loanID int64, from, to models.LoanStatus, reviewedBy int64) error {
	updates := map[string]interface{}{"status": to}
	if reviewedBy != 0 {
		updates["reviewed_by"] = reviewedBy
	}
	res := tx.Model(&models.Loan{}).
		Where("id = ? AND status = ?", loanID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("loan %d is not %s: %w", loanID, from, models.ErrConflict)
	}
	return nil
}

// MarkLoanWithdrawFlagTx records that a withdrawal succeeded while the
// user's loan was active, which bumps the interest tier.
func (s *Store) MarkLoanWithdrawFlagTx(tx *gorm.DB, userID int64) error {
	return tx.Model(&models.Loan{}).
		Where("user_id = ? AND status = ?", userID, models.LoanStatusActive).
		Update("withdrew_during_loan", true).Error
}

// OverdueActiveLoans lists active loans past their due date.
func (s *Store) OverdueActiveLoans(now time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("status = ? AND due_date < ?", models.LoanStatusActive, now).
			Find(&loans).Error
	})
	return loans, err
}

// TotalOutstandingPrincipalTx sums active-loan principal through the
// caller's transaction, so the global cap check serializes with the funding
// it gates.
func (s *Store) TotalOutstandingPrincipalTx(tx *gorm.DB) (decimal.Decimal, error) {
	var loans []models.Loan
	if err := tx.Where("status = ?", models.LoanStatusActive).Find(&loans).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range loans {
		total = total.Add(l.Principal)
	}
	return total, nil
}

// TotalOutstandingPrincipal is the standalone read used for reporting.
func (s *Store) TotalOutstandingPrincipal() (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.Read(func(db *gorm.DB) error {
		var inner error
		total, inner = s.TotalOutstandingPrincipalTx(db)
		return inner
	})
	return total, err
}

// ListLoans returns the newest loans, optionally filtered by status.
func (s *Store) ListLoans(status models.LoanStatus, limit int) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.Read(func(db *gorm.DB) error {
		q := db.Order("id DESC").Limit(limit)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q.Find(&loans).Error
	})
	return loans, err
}
