// Package tictactoe runs PvP tic-tac-toe challenges with an optional QC
// stake. Both stakes escrow into the house when a challenge is accepted; the
// winner takes both with no house cut, a draw or an abandoned game refunds
// both sides.
package tictactoe

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

type Status string

const (
	StatusChallenged Status = "challenged"
	StatusPlaying    Status = "playing"
	StatusFinished   Status = "finished"
)

const (
	markX = 'X'
	markO = 'O'
)

// Game is one match. At most one live game per channel.
type Game struct {
	ID        string
	ChannelID string

	// ChallengerID plays X and moves first.
	ChallengerID int64
	OpponentID   int64
	Stake        decimal.Decimal

	Status   Status
	Board    [9]byte
	TurnID   int64
	WinnerID int64

	UpdatedAt time.Time
}

// Render draws the board with cell numbers in empty squares.
func (g *Game) Render() string {
	var b strings.Builder
	for i, cell := range g.Board {
		if cell == 0 {
			b.WriteByte(byte('1' + i))
		} else {
			b.WriteByte(cell)
		}
		if i%3 == 2 {
			if i < 8 {
				b.WriteByte('\n')
			}
		} else {
			b.WriteByte('|')
		}
	}
	return b.String()
}

func (g *Game) mark(userID int64) byte {
	if userID == g.ChallengerID {
		return markX
	}
	return markO
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func (g *Game) winningMark() byte {
	for _, l := range lines {
		if g.Board[l[0]] != 0 && g.Board[l[0]] == g.Board[l[1]] && g.Board[l[1]] == g.Board[l[2]] {
			return g.Board[l[0]]
		}
	}
	return 0
}

func (g *Game) full() bool {
	for _, c := range g.Board {
		if c == 0 {
			return false
		}
	}
	return true
}

// Manager holds live games in memory, one per channel, and settles stakes
// through the ledger.
type Manager struct {
	store   *store.Store
	houseID int64
	log     *zap.Logger

	mu    sync.Mutex
	games map[string]*Game
}

func NewManager(s *store.Store, houseID int64, log *zap.Logger) *Manager {
	return &Manager{store: s, houseID: houseID, log: log, games: map[string]*Game{}}
}

// Challenge opens a match offer. No money moves until the opponent accepts.
func (m *Manager) Challenge(channelID string, challengerID, opponentID int64, stake decimal.Decimal) (*Game, error) {
	if challengerID == opponentID {
		return nil, fmt.Errorf("%w: cannot challenge yourself", models.ErrInvalidInput)
	}
	if stake.Sign() < 0 {
		return nil, fmt.Errorf("%w: stake cannot be negative", models.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[channelID]; ok {
		return nil, fmt.Errorf("a game is already running in this channel: %w", models.ErrConflict)
	}

	game := &Game{
		ID:           uuid.NewString(),
		ChannelID:    channelID,
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		Stake:        stake,
		Status:       StatusChallenged,
		TurnID:       challengerID,
		UpdatedAt:    time.Now(),
	}
	m.games[channelID] = game
	return game, nil
}

// Accept escrows both stakes atomically and starts the game. If either side
// cannot cover the stake, nothing moves and the challenge stays open.
func (m *Manager) Accept(channelID string, userID int64) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[channelID]
	if !ok {
		return nil, fmt.Errorf("no open challenge here: %w", models.ErrNotFound)
	}
	if game.Status != StatusChallenged || game.OpponentID != userID {
		return nil, fmt.Errorf("challenge is not yours to accept: %w", models.ErrConflict)
	}

	if game.Stake.Sign() > 0 {
		err := m.store.WithTx(func(tx *gorm.DB) error {
			for _, id := range []int64{game.ChallengerID, game.OpponentID} {
				if err := m.store.AdjustBalanceTx(tx, id, game.Stake.Neg()); err != nil {
					return err
				}
				if err := m.store.AdjustBalanceTx(tx, m.houseID, game.Stake); err != nil {
					return err
				}
				if err := m.store.RecordTransactionTx(tx, id, models.TransactionDebit,
					"tictactoe", game.Stake, fmt.Sprintf("TicTacToe %s stake", game.ID)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	game.Status = StatusPlaying
	game.UpdatedAt = time.Now()
	return game, nil
}

// Decline withdraws a pending challenge; either player may do it.
func (m *Manager) Decline(channelID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[channelID]
	if !ok {
		return fmt.Errorf("no open challenge here: %w", models.ErrNotFound)
	}
	if game.Status != StatusChallenged {
		return fmt.Errorf("game already started: %w", models.ErrConflict)
	}
	if userID != game.ChallengerID && userID != game.OpponentID {
		return fmt.Errorf("not your challenge: %w", models.ErrInvalidInput)
	}
	delete(m.games, channelID)
	return nil
}

// Apply is the single move entry point: it validates the turn, places the
// mark, detects the terminal state, and settles the stakes when the game
// ends.
func (m *Manager) Apply(channelID string, userID int64, cell int) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[channelID]
	if !ok {
		return nil, fmt.Errorf("no game here: %w", models.ErrNotFound)
	}
	if game.Status != StatusPlaying {
		return nil, fmt.Errorf("game is not in progress: %w", models.ErrConflict)
	}
	if userID != game.TurnID {
		return nil, fmt.Errorf("not your turn: %w", models.ErrConflict)
	}
	if cell < 1 || cell > 9 {
		return nil, fmt.Errorf("%w: cell must be 1-9", models.ErrInvalidInput)
	}
	if game.Board[cell-1] != 0 {
		return nil, fmt.Errorf("%w: cell %d is taken", models.ErrInvalidInput, cell)
	}

	game.Board[cell-1] = game.mark(userID)
	game.UpdatedAt = time.Now()

	if win := game.winningMark(); win != 0 {
		winner := game.ChallengerID
		if win == markO {
			winner = game.OpponentID
		}
		if err := m.finish(game, winner); err != nil {
			return nil, err
		}
		return game, nil
	}
	if game.full() {
		if err := m.finish(game, 0); err != nil {
			return nil, err
		}
		return game, nil
	}

	if userID == game.ChallengerID {
		game.TurnID = game.OpponentID
	} else {
		game.TurnID = game.ChallengerID
	}
	return game, nil
}

// Resign forfeits a running game to the other player.
func (m *Manager) Resign(channelID string, userID int64) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[channelID]
	if !ok {
		return nil, fmt.Errorf("no game here: %w", models.ErrNotFound)
	}
	if game.Status != StatusPlaying {
		return nil, fmt.Errorf("game is not in progress: %w", models.ErrConflict)
	}
	winner := game.ChallengerID
	if userID == game.ChallengerID {
		winner = game.OpponentID
	} else if userID != game.OpponentID {
		return nil, fmt.Errorf("not your game: %w", models.ErrInvalidInput)
	}
	if err := m.finish(game, winner); err != nil {
		return nil, err
	}
	return game, nil
}

// SweepAbandoned refunds and removes games idle past the timeout.
func (m *Manager) SweepAbandoned(now time.Time, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for channelID, game := range m.games {
		if now.Sub(game.UpdatedAt) < timeout {
			continue
		}
		if game.Status == StatusPlaying {
			if err := m.settle(game, 0); err != nil {
				m.log.Error("refund abandoned game",
					zap.String("game_id", game.ID), zap.Error(err))
				continue
			}
		}
		delete(m.games, channelID)
	}
}

// Get returns the live game in a channel, if any.
func (m *Manager) Get(channelID string) (*Game, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[channelID]
	return g, ok
}

func (m *Manager) finish(game *Game, winnerID int64) error {
	if err := m.settle(game, winnerID); err != nil {
		return err
	}
	game.Status = StatusFinished
	game.WinnerID = winnerID
	delete(m.games, game.ChannelID)
	return nil
}

// settle pays both stakes to the winner, or refunds each side when winnerID
// is zero (draw or abandonment). PvP pots carry no house edge.
func (m *Manager) settle(game *Game, winnerID int64) error {
	if game.Stake.Sign() == 0 {
		return nil
	}
	return m.store.WithTx(func(tx *gorm.DB) error {
		if winnerID != 0 {
			pot := game.Stake.Mul(decimal.NewFromInt(2))
			if err := m.store.AdjustBalanceTx(tx, m.houseID, pot.Neg()); err != nil {
				return err
			}
			if err := m.store.AdjustBalanceTx(tx, winnerID, pot); err != nil {
				return err
			}
			return m.store.RecordTransactionTx(tx, winnerID, models.TransactionCredit,
				"tictactoe", pot, fmt.Sprintf("TicTacToe %s win", game.ID))
		}
		for _, id := range []int64{game.ChallengerID, game.OpponentID} {
			if err := m.store.AdjustBalanceTx(tx, m.houseID, game.Stake.Neg()); err != nil {
				return err
			}
			if err := m.store.AdjustBalanceTx(tx, id, game.Stake); err != nil {
				return err
			}
			if err := m.store.RecordTransactionTx(tx, id, models.TransactionCredit,
				"tictactoe_refund", game.Stake, fmt.Sprintf("TicTacToe %s refund", game.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}
