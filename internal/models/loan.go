package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusRepaid    LoanStatus = "repaid"
	LoanStatusDenied    LoanStatus = "denied"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// Terminal reports whether no further transitions are possible.
func (s LoanStatus) Terminal() bool {
	switch s {
	case LoanStatusRepaid, LoanStatusDenied, LoanStatusDefaulted:
		return true
	}
	return false
}

// Loan is one application. A user may hold at most one non-terminal
// (pending or active) loan at a time.
type Loan struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"-"`
	UniqueID string `gorm:"uniqueIndex;not null" json:"unique_id"`
	UserID   int64  `gorm:"index;not null" json:"user_id"`

	Status    LoanStatus      `gorm:"index;not null;default:'pending'" json:"status"`
	Principal decimal.Decimal `gorm:"type:text;not null" json:"principal"`
	Duration  time.Duration   `gorm:"not null" json:"duration"`
	DueDate   time.Time       `gorm:"index" json:"due_date"`

	// WithdrewDuringLoan selects the interest tier: the higher weekly rate
	// applies once any withdrawal succeeds while the loan is active.
	WithdrewDuringLoan bool `gorm:"not null;default:false" json:"withdrew_during_loan"`

	ReviewedBy int64 `json:"reviewed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
