package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-user ledger record. One row exists per Discord user ID,
// including the reserved house account. Rows are created lazily on first
// reference and never deleted.
//
// All QC amounts are decimals persisted as TEXT; balance mutations go through
// Store.AdjustBalance exclusively, which applies a signed delta under an
// exclusive-write transaction with a non-negative guard.
type Account struct {
	UserID int64 `gorm:"primaryKey" json:"user_id"`

	Balance       decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"balance"`
	TotalWagered  decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"total_wagered"`
	NetProfitLoss decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"net_profit_loss"`

	TotalDepositedQC  decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"total_deposited_qc"`
	TotalWithdrawnQC  decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"total_withdrawn_qc"`
	TotalSOLDeposited decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"total_sol_deposited"`

	// DepositAddress is the custodial on-chain address bound to this account,
	// empty until the user requests one. DepositSecret is its base58-encoded
	// signing key, needed for sweeps.
	DepositAddress string `gorm:"index" json:"deposit_address,omitempty"`
	DepositSecret  string `json:"-"`

	// LastObservedLamports is the reconciler's snapshot for delta detection.
	// The reconciler is the only writer of this column.
	LastObservedLamports int64 `gorm:"not null;default:0" json:"last_observed_lamports"`

	LoanBanned     bool       `gorm:"not null;default:false" json:"loan_banned"`
	LastDailyClaim *time.Time `json:"last_daily_claim,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatDeltas carries signed adjustments applied alongside a settlement or
// deposit in the same transaction as the balance change.
type StatDeltas struct {
	TotalWagered      decimal.Decimal
	NetProfitLoss     decimal.Decimal
	TotalDepositedQC  decimal.Decimal
	TotalWithdrawnQC  decimal.Decimal
	TotalSOLDeposited decimal.Decimal
}
