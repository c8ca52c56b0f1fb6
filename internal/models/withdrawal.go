package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusConfirmed WithdrawalStatus = "confirmed"
	WithdrawalStatusSent      WithdrawalStatus = "sent"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
	WithdrawalStatusCancelled WithdrawalStatus = "cancelled"
)

// Withdrawal tracks one on-chain payout. The QC debit happens when the row
// is created as pending; a transfer that was submitted but whose confirmation
// could not be fetched stays pending for follow-up rather than being assumed
// sent or failed.
type Withdrawal struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID int64  `gorm:"index;not null" json:"user_id"`

	Status      WithdrawalStatus `gorm:"index;not null;default:'pending'" json:"status"`
	AmountQC    decimal.Decimal  `gorm:"type:text;not null" json:"amount_qc"`
	Destination string           `gorm:"not null" json:"destination"`

	Signature   string `json:"signature,omitempty"`
	FeeLamports int64  `json:"fee_lamports,omitempty"`
	NetLamports int64  `json:"net_lamports,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionKind string

const (
	TransactionDebit  TransactionKind = "debit"
	TransactionCredit TransactionKind = "credit"
)

// Transaction is the append-only audit trail; every settlement, deposit,
// withdrawal, tip, and pool distribution records one row per affected side.
type Transaction struct {
	ID       int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   int64           `gorm:"index;not null" json:"user_id"`
	Kind     TransactionKind `gorm:"not null" json:"kind"`
	Category string          `gorm:"index;not null" json:"category"`
	Amount   decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	Note     string          `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
