package tictactoe_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
	"github.com/sushantdhakal00/discord-bot/internal/tictactoe"
)

const houseID = int64(999)

func setup(t *testing.T) (*tictactoe.Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return tictactoe.NewManager(s, houseID, zap.NewNop()), s
}

func fund(t *testing.T, s *store.Store, id int64, amount int64) {
	t.Helper()
	require.NoError(t, s.WithTx(func(tx *gorm.DB) error {
		return s.AdjustBalanceTx(tx, id, decimal.NewFromInt(amount))
	}))
}

func balance(t *testing.T, s *store.Store, id int64) decimal.Decimal {
	t.Helper()
	acct, err := s.GetOrCreateAccount(id)
	require.NoError(t, err)
	return acct.Balance
}

func startGame(t *testing.T, m *tictactoe.Manager, s *store.Store, stake int64) *tictactoe.Game {
	t.Helper()
	fund(t, s, 1, 100)
	fund(t, s, 2, 100)
	_, err := m.Challenge("chan", 1, 2, decimal.NewFromInt(stake))
	require.NoError(t, err)
	game, err := m.Accept("chan", 2)
	require.NoError(t, err)
	return game
}

func TestWinnerTakesBothStakes(t *testing.T) {
	m, s := setup(t)
	startGame(t, m, s, 10)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(90)))
	require.True(t, balance(t, s, 2).Equal(decimal.NewFromInt(90)))

	// X: 1, 2, 3 across the top.
	moves := []struct {
		user int64
		cell int
	}{{1, 1}, {2, 4}, {1, 2}, {2, 5}, {1, 3}}
	var game *tictactoe.Game
	var err error
	for _, mv := range moves {
		game, err = m.Apply("chan", mv.user, mv.cell)
		require.NoError(t, err)
	}

	require.Equal(t, tictactoe.StatusFinished, game.Status)
	require.Equal(t, int64(1), game.WinnerID)
	// Winner takes the 20 QC pot, no house cut.
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(110)))
	require.True(t, balance(t, s, 2).Equal(decimal.NewFromInt(90)))
	require.True(t, balance(t, s, houseID).IsZero())

	_, ok := m.Get("chan")
	require.False(t, ok, "finished game is removed from the channel")
}

func TestDrawRefundsBoth(t *testing.T) {
	m, s := setup(t)
	startGame(t, m, s, 10)

	// X X O / O O X / X O X — full board, nobody wins.
	moves := []struct {
		user int64
		cell int
	}{{1, 1}, {2, 3}, {1, 2}, {2, 5}, {1, 6}, {2, 4}, {1, 7}, {2, 8}, {1, 9}}
	var game *tictactoe.Game
	var err error
	for _, mv := range moves {
		game, err = m.Apply("chan", mv.user, mv.cell)
		require.NoError(t, err)
	}

	require.Equal(t, tictactoe.StatusFinished, game.Status)
	require.Equal(t, int64(0), game.WinnerID)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, 2).Equal(decimal.NewFromInt(100)))
}

func TestMoveValidation(t *testing.T) {
	m, s := setup(t)
	startGame(t, m, s, 10)

	_, err := m.Apply("chan", 2, 1)
	require.ErrorIs(t, err, models.ErrConflict, "challenger moves first")

	_, err = m.Apply("chan", 1, 0)
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = m.Apply("chan", 1, 5)
	require.NoError(t, err)
	_, err = m.Apply("chan", 2, 5)
	require.ErrorIs(t, err, models.ErrInvalidInput, "occupied cell")
	_, err = m.Apply("chan", 1, 6)
	require.ErrorIs(t, err, models.ErrConflict, "turn alternates")
}

func TestAcceptNeedsBothStakesCovered(t *testing.T) {
	m, s := setup(t)
	fund(t, s, 1, 100)
	// User 2 is broke.
	_, err := m.Challenge("chan", 1, 2, decimal.NewFromInt(50))
	require.NoError(t, err)

	_, err = m.Accept("chan", 2)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)), "nothing escrows on a failed accept")

	// Only the challenged opponent can accept.
	fund(t, s, 2, 100)
	_, err = m.Accept("chan", 3)
	require.ErrorIs(t, err, models.ErrConflict)
	_, err = m.Accept("chan", 2)
	require.NoError(t, err)
}

func TestOneGamePerChannel(t *testing.T) {
	m, s := setup(t)
	startGame(t, m, s, 0)

	_, err := m.Challenge("chan", 3, 4, decimal.Zero)
	require.ErrorIs(t, err, models.ErrConflict)

	_, err = m.Challenge("other", 3, 4, decimal.Zero)
	require.NoError(t, err)
}

func TestResignForfeitsPot(t *testing.T) {
	m, s := setup(t)
	startGame(t, m, s, 25)

	game, err := m.Resign("chan", 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), game.WinnerID)
	require.True(t, balance(t, s, 2).Equal(decimal.NewFromInt(125)))
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(75)))
}

func TestAbandonedGameRefunds(t *testing.T) {
	m, s := setup(t)
	startGame(t, m, s, 10)
	_, err := m.Apply("chan", 1, 1)
	require.NoError(t, err)

	// Not yet stale.
	m.SweepAbandoned(time.Now(), time.Hour)
	_, ok := m.Get("chan")
	require.True(t, ok)

	m.SweepAbandoned(time.Now().Add(2*time.Hour), time.Hour)
	_, ok = m.Get("chan")
	require.False(t, ok)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, 2).Equal(decimal.NewFromInt(100)))
}
