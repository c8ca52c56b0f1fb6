package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// GetCommitmentTx loads the active commitment for (user, family) inside the
// caller's transaction. Returns gorm.ErrRecordNotFound when none exists yet.
func (s *Store) GetCommitmentTx(tx *gorm.DB, userID int64, family string) (*models.Commitment, error) {
	var c models.Commitment
	err := tx.First(&c, "user_id = ? AND game_family = ?", userID, family).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCommitmentTx inserts or updates a commitment inside the caller's
// transaction. Nonce advancement always goes through here so the increment
// commits atomically with whatever consumed the draw.
func (s *Store) SaveCommitmentTx(tx *gorm.DB, c *models.Commitment) error {
	return tx.Save(c).Error
}

// GetCommitment is the read-only variant used for disclosure and status.
func (s *Store) GetCommitment(userID int64, family string) (*models.Commitment, error) {
	var c models.Commitment
	err := s.Read(func(db *gorm.DB) error {
		return db.First(&c, "user_id = ? AND game_family = ?", userID, family).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
