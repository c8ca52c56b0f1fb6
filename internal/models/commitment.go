package models

import "time"

// Commitment is the provably-fair seed state for one (user, game family)
// pair. ServerHash is disclosed before any outcome using ServerSeed is
// computed; ServerSeed itself is revealed only on rotation or on demand
// after play.
type Commitment struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID     int64  `gorm:"uniqueIndex:idx_commitment_user_family;not null" json:"user_id"`
	GameFamily string `gorm:"uniqueIndex:idx_commitment_user_family;not null" json:"game_family"`

	ServerSeed string `json:"-"`
	ServerHash string `json:"server_hash"`
	ClientSeed string `json:"client_seed"`
	// Nonce is the next value to be consumed; it strictly increases per draw
	// and resets to zero only when the client seed changes.
	Nonce int64 `gorm:"not null;default:0" json:"nonce"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
