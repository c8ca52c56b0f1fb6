// Package loans implements the QC credit line: scored eligibility, admin
// review, tiered weekly interest, and automatic default on overdue loans.
package loans

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/backoff"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

const (
	MinPrincipalQC = 25
	MaxPrincipalQC = 2500

	MinDuration = 24 * time.Hour
	MaxDuration = 28 * 24 * time.Hour

	// Weekly interest tiers. The higher rate applies once the borrower cashes
	// out on-chain while the loan is active.
	WeeklyRate         = 0.07
	WeeklyRateWithdrew = 0.11

	// Eligibility floors.
	minDeposited = 50
	minWagered   = 250
	minNetPL     = -100

	defaultOutstandingCapQC = 100000
)

type Service struct {
	store   *store.Store
	houseID int64
	log     *zap.Logger
}

func New(s *store.Store, houseID int64, log *zap.Logger) *Service {
	return &Service{store: s, houseID: houseID, log: log}
}

// Eligibility is the scored result of a credit check.
type Eligibility struct {
	Eligible bool
	Reason   string
	// CapQC is the largest principal this account qualifies for.
	CapQC decimal.Decimal
}

// Check scores an account: deposits weigh double, wagering weighs single, and
// positive lifetime profit adds a capped bonus. A tenth of the score, clamped
// into the principal bounds, is the borrowing cap.
func (s *Service) Check(userID int64) (*Eligibility, error) {
	acct, err := s.store.GetOrCreateAccount(userID)
	if err != nil {
		return nil, err
	}

	switch {
	case acct.LoanBanned:
		return &Eligibility{Reason: "banned from borrowing after a default"}, nil
	case acct.TotalDepositedQC.LessThan(decimal.NewFromInt(minDeposited)):
		return &Eligibility{Reason: fmt.Sprintf("needs at least %d QC deposited", minDeposited)}, nil
	case acct.TotalWagered.LessThan(decimal.NewFromInt(minWagered)):
		return &Eligibility{Reason: fmt.Sprintf("needs at least %d QC wagered", minWagered)}, nil
	case acct.NetProfitLoss.LessThan(decimal.NewFromInt(minNetPL)):
		return &Eligibility{Reason: fmt.Sprintf("lifetime losses exceed %d QC", -minNetPL)}, nil
	}

	score := acct.TotalDepositedQC.Mul(decimal.NewFromInt(2)).Add(acct.TotalWagered)
	if acct.NetProfitLoss.Sign() > 0 {
		bonus := acct.NetProfitLoss.Mul(decimal.NewFromFloat(0.3))
		if bonus.GreaterThan(decimal.NewFromInt(500)) {
			bonus = decimal.NewFromInt(500)
		}
		score = score.Add(bonus)
	}

	cap := score.Div(decimal.NewFromInt(10)).Truncate(2)
	if cap.LessThan(decimal.NewFromInt(MinPrincipalQC)) {
		cap = decimal.NewFromInt(MinPrincipalQC)
	}
	if cap.GreaterThan(decimal.NewFromInt(MaxPrincipalQC)) {
		cap = decimal.NewFromInt(MaxPrincipalQC)
	}
	return &Eligibility{Eligible: true, CapQC: cap}, nil
}

// Apply files a loan application for admin review. The requested principal
// clamps into [min, personal cap]; a pending or active loan blocks a new one.
func (s *Service) Apply(userID int64, principal decimal.Decimal, duration time.Duration) (*models.Loan, error) {
	if duration < MinDuration || duration > MaxDuration {
		return nil, fmt.Errorf("%w: loan duration must be 1-28 days", models.ErrInvalidInput)
	}
	if err := models.ValidateStake(principal); err != nil {
		return nil, err
	}

	paused, err := s.Paused()
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, fmt.Errorf("loans are paused: %w", models.ErrConflict)
	}

	elig, err := s.Check(userID)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, fmt.Errorf("not eligible: %s: %w", elig.Reason, models.ErrInvalidInput)
	}

	if principal.LessThan(decimal.NewFromInt(MinPrincipalQC)) {
		principal = decimal.NewFromInt(MinPrincipalQC)
	}
	if principal.GreaterThan(elig.CapQC) {
		principal = elig.CapQC
	}

	loan := &models.Loan{
		UniqueID:  uuid.NewString(),
		UserID:    userID,
		Status:    models.LoanStatusPending,
		Principal: principal,
		Duration:  duration,
	}
	if err := s.store.CreateLoan(loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// Approve funds a pending loan from the house, subject to the global
// outstanding cap and house solvency. Admin only; the command layer gates it.
func (s *Service) Approve(uniqueID string, adminID int64) (*models.Loan, error) {
	loan, err := s.store.LoanByUniqueID(uniqueID)
	if err != nil {
		return nil, err
	}
	cap, err := s.OutstandingCap()
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().Add(loan.Duration)
	err = s.store.WithTx(func(tx *gorm.DB) error {
		// The cap check runs inside the funding transaction; two
		// interleaved approvals cannot both pass it.
		outstanding, err := s.store.TotalOutstandingPrincipalTx(tx)
		if err != nil {
			return err
		}
		if outstanding.Add(loan.Principal).GreaterThan(cap) {
			return fmt.Errorf("outstanding cap %s reached: %w", cap, models.ErrConflict)
		}
		if err := s.store.TransitionLoanTx(tx, loan.ID,
			models.LoanStatusPending, models.LoanStatusActive, adminID); err != nil {
			return err
		}
		if err := tx.Model(&models.Loan{}).Where("id = ?", loan.ID).
			Update("due_date", dueDate).Error; err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, s.houseID, loan.Principal.Neg()); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, loan.UserID, loan.Principal); err != nil {
			return err
		}
		return s.store.RecordTransactionTx(tx, loan.UserID, models.TransactionCredit,
			"loan", loan.Principal, fmt.Sprintf("Loan %s approved", uniqueID))
	})
	if err != nil {
		return nil, err
	}

	loan.Status = models.LoanStatusActive
	loan.DueDate = dueDate
	loan.ReviewedBy = adminID
	return loan, nil
}

// Deny closes a pending application without moving money.
func (s *Service) Deny(uniqueID string, adminID int64) error {
	loan, err := s.store.LoanByUniqueID(uniqueID)
	if err != nil {
		return err
	}
	return s.store.WithTx(func(tx *gorm.DB) error {
		return s.store.TransitionLoanTx(tx, loan.ID,
			models.LoanStatusPending, models.LoanStatusDenied, adminID)
	})
}

// Interest computes what a loan accrues over its full term: principal times
// the weekly tier rate, scaled by the term in weeks.
func Interest(loan *models.Loan) decimal.Decimal {
	rate := WeeklyRate
	if loan.WithdrewDuringLoan {
		rate = WeeklyRateWithdrew
	}
	weeks := decimal.NewFromFloat(loan.Duration.Hours() / (7 * 24))
	return loan.Principal.Mul(decimal.NewFromFloat(rate)).Mul(weeks).Truncate(2)
}

// Repay settles an active loan in full: principal plus interest back to the
// house, the interest counted against the borrower's lifetime P/L.
func (s *Service) Repay(userID int64) (paid decimal.Decimal, err error) {
	loan, err := s.store.NonTerminalLoan(userID)
	if err != nil {
		return decimal.Zero, err
	}
	if loan.Status != models.LoanStatusActive {
		return decimal.Zero, fmt.Errorf("loan %s is %s, not active: %w",
			loan.UniqueID, loan.Status, models.ErrConflict)
	}

	interest := Interest(loan)
	total := loan.Principal.Add(interest)

	err = s.store.WithTx(func(tx *gorm.DB) error {
		if err := s.store.TransitionLoanTx(tx, loan.ID,
			models.LoanStatusActive, models.LoanStatusRepaid, 0); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, userID, total.Neg()); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, s.houseID, total); err != nil {
			return err
		}
		if err := s.store.AddStatsTx(tx, userID,
			models.StatDeltas{NetProfitLoss: interest.Neg()}); err != nil {
			return err
		}
		return s.store.RecordTransactionTx(tx, userID, models.TransactionDebit,
			"loan_repay", total, fmt.Sprintf("Loan %s repaid (%s interest)", loan.UniqueID, interest))
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Run marks overdue loans defaulted until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	backoff.Loop(ctx, interval, func(ctx context.Context) {
		s.SweepDefaults(time.Now())
	})
}

// SweepDefaults moves every overdue active loan to defaulted and bans the
// borrower from further loans. The debt itself stays on the books as the
// unreturned principal.
func (s *Service) SweepDefaults(now time.Time) {
	overdue, err := s.store.OverdueActiveLoans(now)
	if err != nil {
		s.log.Error("list overdue loans", zap.Error(err))
		return
	}
	for _, loan := range overdue {
		err := s.store.WithTx(func(tx *gorm.DB) error {
			return s.store.TransitionLoanTx(tx, loan.ID,
				models.LoanStatusActive, models.LoanStatusDefaulted, 0)
		})
		if err != nil {
			s.log.Error("default loan", zap.String("loan_id", loan.UniqueID), zap.Error(err))
			continue
		}
		if err := s.store.SetLoanBanned(loan.UserID, true); err != nil {
			s.log.Error("ban defaulted borrower", zap.Int64("user_id", loan.UserID), zap.Error(err))
		}
		s.log.Warn("loan defaulted",
			zap.String("loan_id", loan.UniqueID),
			zap.Int64("user_id", loan.UserID),
			zap.String("principal", loan.Principal.String()))
	}
}

// Paused reports the admin pause flag.
func (s *Service) Paused() (bool, error) {
	val, err := s.store.GetMeta(models.MetaLoansPaused, "false")
	if err != nil {
		return false, err
	}
	return val == "true", nil
}

// SetPaused flips the admin pause flag.
func (s *Service) SetPaused(paused bool) error {
	return s.store.SetMeta(models.MetaLoansPaused, strconv.FormatBool(paused))
}

// OutstandingCap returns the global active-principal ceiling.
func (s *Service) OutstandingCap() (decimal.Decimal, error) {
	val, err := s.store.GetMeta(models.MetaLoansOutstandingQC,
		strconv.Itoa(defaultOutstandingCapQC))
	if err != nil {
		return decimal.Zero, err
	}
	cap, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad outstanding cap %q: %w", val, err)
	}
	return cap, nil
}

// SetOutstandingCap replaces the global ceiling.
func (s *Service) SetOutstandingCap(cap decimal.Decimal) error {
	if cap.Sign() < 0 {
		return fmt.Errorf("%w: cap must be non-negative", models.ErrInvalidInput)
	}
	return s.store.SetMeta(models.MetaLoansOutstandingQC, cap.String())
}

// SetBanned flips the per-user loan ban by hand, outside the default sweep.
func (s *Service) SetBanned(userID int64, banned bool) error {
	return s.store.SetLoanBanned(userID, banned)
}
