package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

func (s *Store) CreatePoolTx(tx *gorm.DB, p *models.Pool) error {
	return tx.Create(p).Error
}

// GetPoolTx loads a pool for update inside the caller's transaction.
func (s *Store) GetPoolTx(tx *gorm.DB, id string) (*models.Pool, error) {
	var p models.Pool
	err := tx.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pool %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPool(id string) (*models.Pool, error) {
	var p *models.Pool
	err := s.Read(func(db *gorm.DB) error {
		var inner error
		p, inner = s.GetPoolTx(db, id)
		return inner
	})
	return p, err
}

// AddPoolEntryTx registers membership. The unique (pool, user) index makes a
// duplicate join fail, surfaced as ErrConflict.
func (s *Store) AddPoolEntryTx(tx *gorm.DB, poolID string, userID int64) error {
	var count int64
	if err := tx.Model(&models.PoolEntry{}).
		Where("pool_id = ? AND user_id = ?", poolID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("user %d already joined pool %s: %w", userID, poolID, models.ErrConflict)
	}
	return tx.Create(&models.PoolEntry{
		PoolID:   poolID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}).Error
}

// PoolEntriesTx lists participants in join order.
func (s *Store) PoolEntriesTx(tx *gorm.DB, poolID string) ([]models.PoolEntry, error) {
	var entries []models.PoolEntry
	err := tx.Where("pool_id = ?", poolID).Order("id ASC").Find(&entries).Error
	return entries, err
}

func (s *Store) PoolEntries(poolID string) ([]models.PoolEntry, error) {
	var entries []models.PoolEntry
	err := s.Read(func(db *gorm.DB) error {
		var inner error
		entries, inner = s.PoolEntriesTx(db, poolID)
		return inner
	})
	return entries, err
}

// DuePools returns open pools of a kind whose deadline has passed.
func (s *Store) DuePools(kind models.PoolKind, now time.Time) ([]models.Pool, error) {
	var pools []models.Pool
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("kind = ? AND status = ? AND deadline <= ?",
			kind, models.PoolStatusOpen, now).Find(&pools).Error
	})
	return pools, err
}

// OpenPools lists open pools of a kind, newest first.
func (s *Store) OpenPools(kind models.PoolKind) ([]models.Pool, error) {
	var pools []models.Pool
	err := s.Read(func(db *gorm.DB) error {
		return db.Where("kind = ? AND status = ?", kind, models.PoolStatusOpen).
			Order("created_at DESC").Find(&pools).Error
	})
	return pools, err
}

// TransitionPoolTx moves a pool out of open inside the caller's transaction.
// The WHERE clause on the current status is the settlement guard: if another
// settlement already fired, zero rows match and ErrConflict is returned, so
// the distribution runs at most once per pool.
func (s *Store) TransitionPoolTx(tx *gorm.DB, poolID string, to models.PoolStatus, winnerID int64) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     to,
		"settled_at": &now,
	}
	if winnerID != 0 {
		updates["winner_id"] = winnerID
	}
	res := tx.Model(&models.Pool{}).
		Where("id = ? AND status = ?", poolID, models.PoolStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("pool %s is not open: %w", poolID, models.ErrConflict)
	}
	return nil
}

// AddPoolReservedTx grows the escrowed pot (lottery entries).
func (s *Store) AddPoolReservedTx(tx *gorm.DB, poolID string, amount decimal.Decimal) error {
	p, err := s.GetPoolTx(tx, poolID)
	if err != nil {
		return err
	}
	return tx.Model(&models.Pool{}).Where("id = ?", poolID).
		Update("reserved", p.Reserved.Add(amount)).Error
}
