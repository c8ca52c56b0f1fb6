package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// CreateWithdrawalTx records a pending withdrawal inside the caller's
// transaction, alongside the QC debit.
func (s *Store) CreateWithdrawalTx(tx *gorm.DB, w *models.Withdrawal) error {
	return tx.Create(w).Error
}

func (s *Store) GetWithdrawal(id string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.Read(func(db *gorm.DB) error {
		return db.First(&w, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("withdrawal %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWithdrawalTx applies status/signature/fee updates.
func (s *Store) UpdateWithdrawalTx(tx *gorm.DB, id string, updates map[string]interface{}) error {
	return tx.Model(&models.Withdrawal{}).Where("id = ?", id).Updates(updates).Error
}

// PendingWithdrawals lists rows awaiting confirmation follow-up.
func (s *Store) PendingWithdrawals() ([]models.Withdrawal, error) {
	var rows []models.Withdrawal
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("status = ?", models.WithdrawalStatusPending).Find(&rows).Error
	})
	return rows, err
}
