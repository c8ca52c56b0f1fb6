package pools_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/pools"
	"github.com/sushantdhakal00/discord-bot/internal/store"
	"go.uber.org/zap"
)

const houseID = int64(999)

func setup(t *testing.T) (*pools.Service, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return pools.New(s, houseID, zap.NewNop()), s
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

func TestLotteryThreeEntrants(t *testing.T) {
	svc, s := setup(t)
	entrants := []int64{1, 2, 3}
	for _, id := range entrants {
		fund(t, s, id, 100)
	}

	pool, err := svc.CreateLottery(1, "chan", decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)
	for _, id := range entrants {
		require.NoError(t, svc.JoinLottery(pool.ID, id))
	}

	stored, err := s.GetPool(pool.ID)
	require.NoError(t, err)
	require.True(t, stored.Reserved.Equal(decimal.NewFromInt(30)))
	require.True(t, balance(t, s, houseID).Equal(decimal.NewFromInt(30)))

	require.NoError(t, svc.SettleLottery(pool.ID))

	settled, err := s.GetPool(pool.ID)
	require.NoError(t, err)
	require.Equal(t, models.PoolStatusSettled, settled.Status)
	require.Contains(t, entrants, settled.WinnerID)

	// The whole pot went to the winner; the house holds nothing.
	require.True(t, balance(t, s, houseID).IsZero())
	require.True(t, balance(t, s, settled.WinnerID).Equal(decimal.NewFromInt(120)))
	total := decimal.Zero
	for _, id := range entrants {
		total = total.Add(balance(t, s, id))
	}
	require.True(t, total.Equal(decimal.NewFromInt(300)))
}

func TestLotterySettleIsIdempotent(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	pool, err := svc.CreateLottery(1, "chan", decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.JoinLottery(pool.ID, 1))

	require.NoError(t, svc.SettleLottery(pool.ID))
	after := balance(t, s, 1)

	require.ErrorIs(t, svc.SettleLottery(pool.ID), models.ErrConflict)
	require.True(t, balance(t, s, 1).Equal(after), "a second settlement must not pay again")
}

func TestLotteryJoinRules(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	pool, err := svc.CreateLottery(1, "chan", decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.JoinLottery(pool.ID, 1))
	require.ErrorIs(t, svc.JoinLottery(pool.ID, 1), models.ErrConflict)

	// A broke user's join rolls back entirely, including membership.
	require.ErrorIs(t, svc.JoinLottery(pool.ID, 2), models.ErrInsufficientFunds)
	entries, err := s.PoolEntries(pool.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, svc.SettleLottery(pool.ID))
	require.ErrorIs(t, svc.JoinLottery(pool.ID, 1), models.ErrExpired)
}

func TestLotteryNoEntrantsCancelled(t *testing.T) {
	svc, s := setup(t)
	pool, err := svc.CreateLottery(1, "chan", decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.SettleLottery(pool.ID))
	settled, err := s.GetPool(pool.ID)
	require.NoError(t, err)
	require.Equal(t, models.PoolStatusCancelled, settled.Status)
	require.True(t, balance(t, s, houseID).IsZero())
}

func TestAirdropEvenSplitWithDust(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	pool, err := svc.CreateAirdrop(1, "chan", decimal.NewFromInt(10), time.Minute)
	require.NoError(t, err)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(90)))

	for _, id := range []int64{2, 3, 4} {
		require.NoError(t, svc.ClaimAirdrop(pool.ID, id))
	}
	// Claims move no money before settlement.
	require.True(t, balance(t, s, 2).IsZero())

	require.NoError(t, svc.SettleAirdrop(pool.ID))

	// 10 / 3 = 3.33 each, 0.01 dust back to the creator.
	share := decimal.NewFromFloat(3.33)
	for _, id := range []int64{2, 3, 4} {
		require.True(t, balance(t, s, id).Equal(share), "claimant %d got %s", id, balance(t, s, id))
	}
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromFloat(90.01)))
	require.True(t, balance(t, s, houseID).IsZero())
}

func TestAirdropNoClaimantsRefundsCreator(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	pool, err := svc.CreateAirdrop(1, "chan", decimal.NewFromInt(25), time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.SettleAirdrop(pool.ID))

	settled, err := s.GetPool(pool.ID)
	require.NoError(t, err)
	require.Equal(t, models.PoolStatusCancelled, settled.Status)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, houseID).IsZero())
}

func TestBattleRatioSplit(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 200)

	pool, err := svc.CreateBattle(1, "chan", decimal.NewFromInt(100), "70-30", 2, 10, time.Minute)
	require.NoError(t, err)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))

	for _, id := range []int64{2, 3, 4} {
		require.NoError(t, svc.JoinBattle(pool.ID, id))
	}

	require.NoError(t, svc.StartBattle(pool.ID, 1))

	settled, err := s.GetPool(pool.ID)
	require.NoError(t, err)
	require.Equal(t, models.PoolStatusSettled, settled.Status)
	require.Contains(t, []int64{2, 3, 4}, settled.WinnerID)

	// 70 + 30 paid out across first and second place, nothing stranded.
	require.True(t, balance(t, s, houseID).IsZero())
	require.True(t, balance(t, s, settled.WinnerID).Equal(decimal.NewFromInt(70)))
	total := balance(t, s, 1)
	for _, id := range []int64{2, 3, 4} {
		total = total.Add(balance(t, s, id))
	}
	require.True(t, total.Equal(decimal.NewFromInt(200)))
}

func TestBattleTooFewPlayersRefundsHost(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	pool, err := svc.CreateBattle(1, "chan", decimal.NewFromInt(50), "70-30", 3, 10, time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.JoinBattle(pool.ID, 2))

	require.NoError(t, svc.SettleBattle(pool.ID))

	settled, err := s.GetPool(pool.ID)
	require.NoError(t, err)
	require.Equal(t, models.PoolStatusCancelled, settled.Status)
	require.True(t, balance(t, s, 1).Equal(decimal.NewFromInt(100)))
	require.True(t, balance(t, s, 2).IsZero())
}

func TestBattleLobbyLimits(t *testing.T) {
	svc, s := setup(t)
	fund(t, s, 1, 100)

	_, err := svc.CreateBattle(1, "chan", decimal.NewFromInt(50), "nonsense", 2, 10, time.Minute)
	require.ErrorIs(t, err, models.ErrInvalidInput)

	pool, err := svc.CreateBattle(1, "chan", decimal.NewFromInt(50), "100", 2, 2, time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.JoinBattle(pool.ID, 2))
	require.NoError(t, svc.JoinBattle(pool.ID, 3))
	require.ErrorIs(t, svc.JoinBattle(pool.ID, 4), models.ErrConflict)

	require.ErrorIs(t, svc.StartBattle(pool.ID, 2), models.ErrInvalidInput)
}
