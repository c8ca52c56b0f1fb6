package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// GetMeta returns the value for key, or fallback when the key is unset.
func (s *Store) GetMeta(key, fallback string) (string, error) {
	var row models.Meta
	err := s.Read(func(db *gorm.DB) error {
		return db.First(&row, "key = ?", key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *Store) SetMeta(key, value string) error {
	return s.WithTx(func(tx *gorm.DB) error {
		return tx.Save(&models.Meta{Key: key, Value: value}).Error
	})
}
