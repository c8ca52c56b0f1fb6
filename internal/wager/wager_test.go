package wager_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/games"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
	"github.com/sushantdhakal00/discord-bot/internal/store"
	"github.com/sushantdhakal00/discord-bot/internal/wager"
)

const houseID = int64(999)

func setup(t *testing.T) (*wager.Service, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	engine := provable.New(s)
	return wager.New(s, engine, houseID, 0.01), s
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

func totalMoney(t *testing.T, s *store.Store, ids ...int64) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, id := range ids {
		total = total.Add(balance(t, s, id))
	}
	return total
}

func TestPlaceRejectsInvalidStake(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	_, err := svc.Place(1, decimal.Zero)
	require.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.Place(1, decimal.NewFromInt(-5))
	require.ErrorIs(t, err, models.ErrInvalidInput)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
}

func TestPlaceWithZeroBalance(t *testing.T) {
	svc, s := setup(t)

	// Spec scenario: 0 balance, 10 QC wager -> InsufficientFunds, nothing moves.
	_, err := svc.Place(1, decimal.NewFromInt(10))
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.True(t, balance(t, s, 1).IsZero())
	require.True(t, balance(t, s, houseID).IsZero())
}

func TestCoinflipWinPays149(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)
	fund(t, s, houseID, 1000)

	// 100 - 50 + 50*2*0.99 = 149.
	escrow, err := svc.Place(1, decimal.NewFromInt(50))
	require.NoError(t, err)
	settlement, err := svc.Settle(escrow, games.Result{Kind: games.Win, Raw: 2})
	require.NoError(t, err)

	require.True(t, settlement.Payout.Equal(decimal.NewFromInt(99)))
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(149)))
	require.True(t, balance(t, s, houseID).Equal(decimal.NewFromInt(951)))

	acct, err := s.GetOrCreateAccount(1)
	require.NoError(t, err)
	require.True(t, acct.NetProfitLoss.Equal(decimal.NewFromInt(49)))
	require.True(t, acct.TotalWagered.Equal(decimal.NewFromInt(50)))
}

func TestLossRetainsStake(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)
	fund(t, s, houseID, 1000)

	escrow, err := svc.Place(1, decimal.NewFromInt(40))
	require.NoError(t, err)
	settlement, err := svc.Settle(escrow, games.Result{Kind: games.Lose})
	require.NoError(t, err)

	require.True(t, settlement.Payout.IsZero())
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(60)))
	require.True(t, balance(t, s, houseID).Equal(decimal.NewFromInt(1040)))

	acct, _ := s.GetOrCreateAccount(1)
	require.True(t, acct.NetProfitLoss.Equal(decimal.NewFromInt(-40)))
}

func TestPushRefundsExactlyStake(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)
	fund(t, s, houseID, 1000)

	escrow, err := svc.Place(1, decimal.NewFromInt(25))
	require.NoError(t, err)
	settlement, err := svc.Settle(escrow, games.Result{Kind: games.Push})
	require.NoError(t, err)

	// No house edge on a push.
	require.True(t, settlement.Payout.Equal(decimal.NewFromInt(25)))
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, houseID).Equal(decimal.NewFromInt(1000)))

	acct, _ := s.GetOrCreateAccount(1)
	require.True(t, acct.NetProfitLoss.IsZero())
	require.True(t, acct.TotalWagered.Equal(decimal.NewFromInt(25)))
}

func TestHouseInsolventReversesEscrow(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)
	// House has only the escrowed stake; a 100x win cannot be covered.

	escrow, err := svc.Place(1, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(50)))
	require.True(t, balance(t, s, houseID).Equal(decimal.NewFromInt(50)))

	_, err = svc.Settle(escrow, games.Result{Kind: games.Win, Raw: 100})
	require.ErrorIs(t, err, models.ErrHouseInsolvent)

	// Net effect zero on both sides.
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, houseID).IsZero())

	acct, _ := s.GetOrCreateAccount(1)
	require.True(t, acct.TotalWagered.IsZero())
	require.True(t, acct.NetProfitLoss.IsZero())
}

func TestPlayConservesMoney(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 1000)
	fund(t, s, houseID, 10000)
	before := totalMoney(t, s, 1, houseID)

	for i := 0; i < 25; i++ {
		_, _, err := svc.Play(1, games.FamilyDice, decimal.NewFromInt(10),
			func(st *provable.Stream) (games.Result, error) {
				return games.Dice(st, 50)
			})
		require.NoError(t, err)
	}

	// Wagers only move money between user and house.
	require.True(t, totalMoney(t, s, 1, houseID).Equal(before))
}

func TestPlayAdvancesNoncePerRound(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 1000)
	fund(t, s, houseID, 10000)

	_, first, err := svc.Play(1, games.FamilyCoinflip, decimal.NewFromInt(5),
		func(st *provable.Stream) (games.Result, error) {
			return games.Coinflip(st, "heads")
		})
	require.NoError(t, err)
	_, second, err := svc.Play(1, games.FamilyCoinflip, decimal.NewFromInt(5),
		func(st *provable.Stream) (games.Result, error) {
			return games.Coinflip(st, "heads")
		})
	require.NoError(t, err)

	require.Equal(t, int64(0), first.Start)
	require.Equal(t, int64(1), second.Start)
	require.Equal(t, first.ServerSeed, second.ServerSeed)
}

func TestPlayRefundsOnInvalidParams(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)
	fund(t, s, houseID, 1000)

	_, _, err := svc.Play(1, games.FamilyDice, decimal.NewFromInt(10),
		func(st *provable.Stream) (games.Result, error) {
			return games.Dice(st, 200)
		})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	// The escrow came back and no nonce was burned.
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, houseID).Equal(decimal.NewFromInt(1000)))
}
