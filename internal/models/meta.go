package models

// Meta is a small key/value table for operator-tunable flags such as
// loans_paused and the global outstanding-loan cap.
type Meta struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

const (
	MetaLoansPaused        = "loans_paused"
	MetaLoansOutstandingQC = "loans_outstanding_cap_qc"
)
