package provable

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"

	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

// Engine owns per-(user, game family) seed commitments. The server seed is
// generated secretly and its SHA-256 hash disclosed before any outcome is
// derived from it; outcomes are HMAC-SHA256 values over the client seed and
// a strictly increasing nonce, so any third party can recompute them once
// the server seed is revealed.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Stream hands out outcome values at successive nonces starting from the
// commitment's current nonce. Games draw as many values as they need (a
// coinflip takes one, a blackjack round takes one per card); the nonces
// consumed are committed atomically with the round that used them.
type Stream struct {
	ServerSeed string
	ServerHash string
	ClientSeed string
	Start      int64

	used int64
	// drew marks that Next served integer values, which pins every consumed
	// nonce to the integer derivation.
	drew bool
}

// Next returns the value at the next unconsumed nonce.
func (s *Stream) Next() uint64 {
	v := Outcome(s.ServerSeed, s.ClientSeed, s.Start+s.used)
	s.used++
	s.drew = true
	return v
}

// NextFloat maps the next value onto [0, 1).
func (s *Stream) NextFloat() float64 {
	return float64(s.Next()) / math.Pow(2, 52)
}

// Digest returns the full HMAC digest for the stream's nonce and the given
// chunk index. Keno consumes these as a byte stream; the whole round costs
// exactly one nonce regardless of how many chunks it reads. A stream that
// already served integer draws refuses digests: both would derive from the
// same nonce.
func (s *Stream) Digest(chunk int) (string, error) {
	if s.drew {
		return "", fmt.Errorf("stream already served integer draws at nonce %d: %w",
			s.Start, models.ErrConflict)
	}
	if s.used == 0 {
		s.used = 1
	}
	return DigestChunk(s.ServerSeed, s.ClientSeed, s.Start, chunk), nil
}

// Used reports how many nonces this stream consumed.
func (s *Stream) Used() int64 {
	return s.used
}

// End is the last nonce consumed, for disclosure as "nonce range start..end".
func (s *Stream) End() int64 {
	if s.used == 0 {
		return s.Start
	}
	return s.Start + s.used - 1
}

// GetOrCreateTx returns the active commitment inside the caller's
// transaction, creating one with fresh seeds on first use.
func (e *Engine) GetOrCreateTx(tx *gorm.DB, userID int64, family string) (*models.Commitment, error) {
	c, err := e.store.GetCommitmentTx(tx, userID, family)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	serverSeed, err := models.GenerateServerSeed()
	if err != nil {
		return nil, err
	}
	clientSeed, err := models.GenerateClientSeed(userID)
	if err != nil {
		return nil, err
	}
	c = &models.Commitment{
		UserID:     userID,
		GameFamily: family,
		ServerSeed: serverSeed,
		ServerHash: HashSeed(serverSeed),
		ClientSeed: clientSeed,
		Nonce:      0,
	}
	if err := e.store.SaveCommitmentTx(tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreate is the standalone variant used for disclosure before play.
func (e *Engine) GetOrCreate(userID int64, family string) (*models.Commitment, error) {
	var c *models.Commitment
	err := e.store.WithTx(func(tx *gorm.DB) error {
		var inner error
		c, inner = e.GetOrCreateTx(tx, userID, family)
		return inner
	})
	return c, err
}

// StreamTx opens a stream at the commitment's current nonce inside the
// caller's transaction. The caller must pass the stream back to
// CommitStreamTx in the same transaction so the nonce advance and the round
// that consumed it are inseparable.
func (e *Engine) StreamTx(tx *gorm.DB, userID int64, family string) (*Stream, error) {
	c, err := e.GetOrCreateTx(tx, userID, family)
	if err != nil {
		return nil, err
	}
	return &Stream{
		ServerSeed: c.ServerSeed,
		ServerHash: c.ServerHash,
		ClientSeed: c.ClientSeed,
		Start:      c.Nonce,
	}, nil
}

// CommitStreamTx advances the commitment past every nonce the stream
// consumed. No-op for a stream that drew nothing.
func (e *Engine) CommitStreamTx(tx *gorm.DB, userID int64, family string, s *Stream) error {
	if s.used == 0 {
		return nil
	}
	c, err := e.store.GetCommitmentTx(tx, userID, family)
	if err != nil {
		return err
	}
	if c.Nonce != s.Start {
		return fmt.Errorf("commitment nonce moved during round: %w", models.ErrConflict)
	}
	c.Nonce = s.Start + s.used
	return e.store.SaveCommitmentTx(tx, c)
}

// SetClientSeed replaces the client seed and resets the nonce to zero. The
// server seed is deliberately left alone; rotating it here would let the
// house discard a committed hash.
func (e *Engine) SetClientSeed(userID int64, family, newSeed string) (*models.Commitment, error) {
	if newSeed == "" || len(newSeed) > 128 {
		return nil, fmt.Errorf("%w: client seed must be 1-128 characters", models.ErrInvalidInput)
	}
	var c *models.Commitment
	err := e.store.WithTx(func(tx *gorm.DB) error {
		var inner error
		c, inner = e.GetOrCreateTx(tx, userID, family)
		if inner != nil {
			return inner
		}
		c.ClientSeed = newSeed
		c.Nonce = 0
		return e.store.SaveCommitmentTx(tx, c)
	})
	return c, err
}

// RotateServerSeed generates a fresh server seed, publishes its hash, and
// returns the retired seed so past rounds become fully verifiable.
func (e *Engine) RotateServerSeed(userID int64, family string) (oldSeed string, c *models.Commitment, err error) {
	err = e.store.WithTx(func(tx *gorm.DB) error {
		var inner error
		c, inner = e.GetOrCreateTx(tx, userID, family)
		if inner != nil {
			return inner
		}
		oldSeed = c.ServerSeed
		newSeed, inner := models.GenerateServerSeed()
		if inner != nil {
			return inner
		}
		c.ServerSeed = newSeed
		c.ServerHash = HashSeed(newSeed)
		c.Nonce = 0
		return e.store.SaveCommitmentTx(tx, c)
	})
	return oldSeed, c, err
}

// HashSeed is the published commitment for a server seed.
func HashSeed(serverSeed string) string {
	hash := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(hash[:])
}

// Outcome derives the 52-bit integer for (serverSeed, clientSeed, nonce).
// Pure; this is the verification entry point.
func Outcome(serverSeed, clientSeed string, nonce int64) uint64 {
	return first52(digest(serverSeed, fmt.Sprintf("%s:%d", clientSeed, nonce)))
}

// OutcomeFloat maps Outcome onto [0, 1).
func OutcomeFloat(serverSeed, clientSeed string, nonce int64) float64 {
	return float64(Outcome(serverSeed, clientSeed, nonce)) / math.Pow(2, 52)
}

// DigestChunk is the full hex digest for one (nonce, chunk index) pair,
// consumed as a byte stream by draws that need many values per nonce.
func DigestChunk(serverSeed, clientSeed string, nonce int64, chunk int) string {
	return digest(serverSeed, fmt.Sprintf("%s:%d:%d", clientSeed, nonce, chunk))
}

func digest(serverSeed, message string) string {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// first52 takes the first 52 bits (13 hex characters) of a digest.
func first52(hexDigest string) uint64 {
	n := new(big.Int)
	n.SetString(hexDigest[:13], 16)
	return n.Uint64()
}
