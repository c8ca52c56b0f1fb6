package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// GetOrCreateAccount loads the account for id, creating an empty one if it
// does not exist yet. Accounts are created lazily on first reference.
func (s *Store) GetOrCreateAccount(id int64) (*models.Account, error) {
	var acct models.Account
	err := s.WithTx(func(tx *gorm.DB) error {
		return getOrCreateAccountTx(tx, id, &acct)
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func getOrCreateAccountTx(tx *gorm.DB, id int64, out *models.Account) error {
	err := tx.First(out, "user_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		*out = models.Account{UserID: id, Balance: decimal.Zero}
		return tx.Create(out).Error
	}
	return err
}

// GetAccount is a read-only lookup; returns models.ErrNotFound if the user
// has never been seen.
func (s *Store) GetAccount(id int64) (*models.Account, error) {
	var acct models.Account
	err := s.Read(func(db *gorm.DB) error {
		return db.First(&acct, "user_id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetAccountTx loads an account through the caller's transaction, creating it
// if needed, so the read serializes with the writes the caller makes on it.
func (s *Store) GetAccountTx(tx *gorm.DB, id int64) (*models.Account, error) {
	var acct models.Account
	if err := getOrCreateAccountTx(tx, id, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// AdjustBalanceTx applies a signed delta to one account's balance inside the
// caller's transaction. This is the only balance mutation primitive in the
// codebase; a delta that would take the balance negative fails with
// ErrInsufficientFunds and writes nothing.
func (s *Store) AdjustBalanceTx(tx *gorm.DB, id int64, delta decimal.Decimal) error {
	var acct models.Account
	if err := getOrCreateAccountTx(tx, id, &acct); err != nil {
		return err
	}
	newBalance := acct.Balance.Add(delta)
	if newBalance.Sign() < 0 {
		return fmt.Errorf("account %d: need %s, have %s: %w",
			id, delta.Neg(), acct.Balance, models.ErrInsufficientFunds)
	}
	return tx.Model(&models.Account{}).
		Where("user_id = ?", id).
		Update("balance", newBalance).Error
}

// AddStatsTx applies signed stat deltas alongside a settlement or deposit,
// in the same transaction as the balance change.
func (s *Store) AddStatsTx(tx *gorm.DB, id int64, d models.StatDeltas) error {
	var acct models.Account
	if err := getOrCreateAccountTx(tx, id, &acct); err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if !d.TotalWagered.IsZero() {
		updates["total_wagered"] = acct.TotalWagered.Add(d.TotalWagered)
	}
	if !d.NetProfitLoss.IsZero() {
		updates["net_profit_loss"] = acct.NetProfitLoss.Add(d.NetProfitLoss)
	}
	if !d.TotalDepositedQC.IsZero() {
		updates["total_deposited_qc"] = acct.TotalDepositedQC.Add(d.TotalDepositedQC)
	}
	if !d.TotalWithdrawnQC.IsZero() {
		updates["total_withdrawn_qc"] = acct.TotalWithdrawnQC.Add(d.TotalWithdrawnQC)
	}
	if !d.TotalSOLDeposited.IsZero() {
		updates["total_sol_deposited"] = acct.TotalSOLDeposited.Add(d.TotalSOLDeposited)
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Account{}).Where("user_id = ?", id).Updates(updates).Error
}

// Transfer moves amount from one account to another atomically, recording
// both audit rows. Used by tips and pool distributions.
func (s *Store) Transfer(from, to int64, amount decimal.Decimal, category, note string) error {
	if err := models.ValidateStake(amount); err != nil {
		return err
	}
	return s.WithTx(func(tx *gorm.DB) error {
		if err := s.AdjustBalanceTx(tx, from, amount.Neg()); err != nil {
			return err
		}
		if err := s.AdjustBalanceTx(tx, to, amount); err != nil {
			return err
		}
		if err := s.RecordTransactionTx(tx, from, models.TransactionDebit, category, amount, note); err != nil {
			return err
		}
		return s.RecordTransactionTx(tx, to, models.TransactionCredit, category, amount, note)
	})
}

// RecordTransactionTx appends one audit row inside the caller's transaction.
func (s *Store) RecordTransactionTx(tx *gorm.DB, userID int64, kind models.TransactionKind, category string, amount decimal.Decimal, note string) error {
	return tx.Create(&models.Transaction{
		UserID:   userID,
		Kind:     kind,
		Category: category,
		Amount:   amount,
		Note:     note,
	}).Error
}

// RecentTransactions returns the newest audit rows for a user.
func (s *Store) RecentTransactions(userID int64, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).
			Order("id DESC").Limit(limit).Find(&rows).Error
	})
	return rows, err
}

// BindDepositAddress stores the custodial address and signing key generated
// for a user. Fails with ErrConflict if one is already bound.
func (s *Store) BindDepositAddress(id int64, address, secret string) error {
	return s.WithTx(func(tx *gorm.DB) error {
		var acct models.Account
		if err := getOrCreateAccountTx(tx, id, &acct); err != nil {
			return err
		}
		if acct.DepositAddress != "" {
			return fmt.Errorf("account %d already has a deposit address: %w", id, models.ErrConflict)
		}
		return tx.Model(&models.Account{}).Where("user_id = ?", id).Updates(map[string]interface{}{
			"deposit_address": address,
			"deposit_secret":  secret,
		}).Error
	})
}

// AccountsWithDepositAddress lists every account the reconciler must poll.
func (s *Store) AccountsWithDepositAddress() ([]models.Account, error) {
	var accts []models.Account
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("deposit_address <> ''").Find(&accts).Error
	})
	return accts, err
}

// ApplyDeposit credits a detected on-chain delta and advances the lamport
// snapshot in one transaction. The credit and the snapshot update must never
// be split: a crash between them would double-credit or drop the deposit.
func (s *Store) ApplyDeposit(id int64, liveLamports int64, qc, sol decimal.Decimal) error {
	return s.WithTx(func(tx *gorm.DB) error {
		if err := s.AdjustBalanceTx(tx, id, qc); err != nil {
			return err
		}
		if err := s.AddStatsTx(tx, id, models.StatDeltas{
			TotalDepositedQC:  qc,
			TotalSOLDeposited: sol,
		}); err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).Where("user_id = ?", id).
			Update("last_observed_lamports", liveLamports).Error; err != nil {
			return err
		}
		return s.RecordTransactionTx(tx, id, models.TransactionCredit, "deposit", qc, "On-chain deposit")
	})
}

// LowerDepositSnapshot rebases the lamport snapshot after an observed
// outflow (the sweep draining the address). No QC moves; without the rebase
// the next deposit would only credit the part above the old high-water mark.
// The guard makes it a no-op if a concurrent deposit already raised the
// snapshot past the observed balance.
func (s *Store) LowerDepositSnapshot(id int64, liveLamports int64) error {
	return s.WithTx(func(tx *gorm.DB) error {
		return tx.Model(&models.Account{}).
			Where("user_id = ? AND last_observed_lamports > ?", id, liveLamports).
			Update("last_observed_lamports", liveLamports).Error
	})
}

// SetLoanBanned flips the persistent loan ban flag.
func (s *Store) SetLoanBanned(id int64, banned bool) error {
	return s.WithTx(func(tx *gorm.DB) error {
		var acct models.Account
		if err := getOrCreateAccountTx(tx, id, &acct); err != nil {
			return err
		}
		return tx.Model(&models.Account{}).Where("user_id = ?", id).
			Update("loan_banned", banned).Error
	})
}

// ClaimDaily credits the daily reward if at least 24h have passed since the
// last claim. Returns ErrConflict when claimed too recently.
func (s *Store) ClaimDaily(id, houseID int64, amount decimal.Decimal, now time.Time) error {
	return s.WithTx(func(tx *gorm.DB) error {
		var acct models.Account
		if err := getOrCreateAccountTx(tx, id, &acct); err != nil {
			return err
		}
		if acct.LastDailyClaim != nil && now.Sub(*acct.LastDailyClaim) < 24*time.Hour {
			return fmt.Errorf("daily reward already claimed: %w", models.ErrConflict)
		}
		if err := s.AdjustBalanceTx(tx, houseID, amount.Neg()); err != nil {
			return err
		}
		if err := s.AdjustBalanceTx(tx, id, amount); err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).Where("user_id = ?", id).
			Update("last_daily_claim", now).Error; err != nil {
			return err
		}
		return s.RecordTransactionTx(tx, id, models.TransactionCredit, "daily", amount, "Daily reward")
	})
}
