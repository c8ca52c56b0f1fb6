package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PoolKind string

const (
	PoolKindLottery PoolKind = "lottery"
	PoolKindAirdrop PoolKind = "airdrop"
	PoolKindBattle  PoolKind = "battle"
)

type PoolStatus string

const (
	PoolStatusOpen      PoolStatus = "open"
	PoolStatusSettled   PoolStatus = "settled"
	PoolStatusCancelled PoolStatus = "cancelled"
)

// Pool is one time-bounded escrow event: a lottery round, an airdrop, or a
// battle-royale lobby. Reserved holds the QC already debited into the pool;
// at settlement it is distributed, refunded, or split, never partially lost.
// Settled and cancelled are terminal.
type Pool struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	Kind      PoolKind   `gorm:"index;not null" json:"kind"`
	Status    PoolStatus `gorm:"index;not null;default:'open'" json:"status"`
	ChannelID string     `json:"channel_id"`

	// CreatorID funded the pool (airdrop/battle) or opened the round
	// (lottery). Refund-on-cancel goes back here.
	CreatorID int64 `gorm:"not null" json:"creator_id"`

	// EntryCost applies to lotteries; Reserved is the escrowed pot.
	EntryCost decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"entry_cost"`
	Reserved  decimal.Decimal `gorm:"type:text;not null;default:'0'" json:"reserved"`

	// Ratio is the battle placement split, e.g. "70-30". MaxPlayers and
	// MinPlayers bound battle lobbies.
	Ratio      string `json:"ratio,omitempty"`
	MaxPlayers int    `json:"max_players,omitempty"`
	MinPlayers int    `json:"min_players,omitempty"`

	Deadline time.Time `gorm:"index;not null" json:"deadline"`

	WinnerID  int64      `json:"winner_id,omitempty"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PoolEntry records one participant. The (pool, user) unique index is what
// makes membership a set; a second join attempt violates it and is reported
// as ErrConflict.
type PoolEntry struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	PoolID   string    `gorm:"uniqueIndex:idx_pool_entry;not null" json:"pool_id"`
	UserID   int64     `gorm:"uniqueIndex:idx_pool_entry;not null" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
