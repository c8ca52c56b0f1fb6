package pools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

const (
	battleMinPlayersFloor = 2
	battleMaxPlayersCap   = 50
)

// CreateBattle opens a battle-royale lobby. The host escrows the whole pot up
// front; joining is free and the pot splits over the final placements by the
// host's ratio.
func (s *Service) CreateBattle(hostID int64, channelID string, pot decimal.Decimal, ratio string, minPlayers, maxPlayers int, duration time.Duration) (*models.Pool, error) {
	if err := models.ValidateStake(pot); err != nil {
		return nil, err
	}
	if _, err := models.ParseRatio(ratio); err != nil {
		return nil, err
	}
	duration, err := checkDuration(duration)
	if err != nil {
		return nil, err
	}
	if minPlayers < battleMinPlayersFloor {
		minPlayers = battleMinPlayersFloor
	}
	if maxPlayers < minPlayers || maxPlayers > battleMaxPlayersCap {
		return nil, fmt.Errorf("%w: max players must be %d-%d and at least min players",
			models.ErrInvalidInput, minPlayers, battleMaxPlayersCap)
	}

	pool := &models.Pool{
		ID:         uuid.NewString(),
		Kind:       models.PoolKindBattle,
		Status:     models.PoolStatusOpen,
		ChannelID:  channelID,
		CreatorID:  hostID,
		Reserved:   pot,
		Ratio:      ratio,
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
		Deadline:   time.Now().Add(duration),
	}
	err = s.store.WithTx(func(tx *gorm.DB) error {
		if err := s.store.AdjustBalanceTx(tx, hostID, pot.Neg()); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, s.houseID, pot); err != nil {
			return err
		}
		if err := s.store.CreatePoolTx(tx, pool); err != nil {
			return err
		}
		return s.store.RecordTransactionTx(tx, hostID, models.TransactionDebit,
			"battle", pot, fmt.Sprintf("Battle %s pot", pool.ID))
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// JoinBattle adds a fighter to an open lobby, bounded by max players.
func (s *Service) JoinBattle(poolID string, userID int64) error {
	return s.store.WithTx(func(tx *gorm.DB) error {
		pool, err := s.store.GetPoolTx(tx, poolID)
		if err != nil {
			return err
		}
		if err := joinable(pool, models.PoolKindBattle, time.Now()); err != nil {
			return err
		}
		entries, err := s.store.PoolEntriesTx(tx, poolID)
		if err != nil {
			return err
		}
		if len(entries) >= pool.MaxPlayers {
			return fmt.Errorf("battle %s is full: %w", poolID, models.ErrConflict)
		}
		return s.store.AddPoolEntryTx(tx, poolID, userID)
	})
}

// StartBattle lets the host fire the fight before the deadline.
func (s *Service) StartBattle(poolID string, hostID int64) error {
	pool, err := s.store.GetPool(poolID)
	if err != nil {
		return err
	}
	if pool.CreatorID != hostID {
		return fmt.Errorf("only the host can start battle %s: %w", poolID, models.ErrInvalidInput)
	}
	return s.SettleBattle(poolID)
}

// RunBattle settles lobbies whose deadline passed without a manual start.
func (s *Service) RunBattle(ctx context.Context, interval time.Duration) {
	s.runDue(ctx, interval, models.PoolKindBattle, s.SettleBattle)
}

// SettleBattle resolves a lobby: short of min players it cancels and refunds
// the host; otherwise it simulates eliminations and splits the pot over the
// final placements by ratio, rounding remainder back to the host. The
// elimination order is presentation randomness, not part of the fairness
// scheme, so plain math/rand is fine here.
func (s *Service) SettleBattle(poolID string) error {
	var outcome Outcome
	err := s.store.WithTx(func(tx *gorm.DB) error {
		pool, err := s.store.GetPoolTx(tx, poolID)
		if err != nil {
			return err
		}
		entries, err := s.store.PoolEntriesTx(tx, poolID)
		if err != nil {
			return err
		}

		if len(entries) < pool.MinPlayers {
			if err := s.store.TransitionPoolTx(tx, poolID, models.PoolStatusCancelled, 0); err != nil {
				return err
			}
			if err := s.payout(tx, pool.CreatorID, pool.Reserved, "battle_refund",
				fmt.Sprintf("Battle %s cancelled, too few players", poolID)); err != nil {
				return err
			}
			outcome = Outcome{Pool: pool}
			return nil
		}

		placements := s.simulate(entries)
		ratio, err := models.ParseRatio(pool.Ratio)
		if err != nil {
			return err
		}
		if len(ratio) > len(placements) {
			ratio = ratio[:len(placements)]
		}
		var ratioSum float64
		for _, r := range ratio {
			ratioSum += r
		}

		if err := s.store.TransitionPoolTx(tx, poolID, models.PoolStatusSettled, placements[0]); err != nil {
			return err
		}

		outcome = Outcome{Pool: pool}
		paid := decimal.Zero
		for i, r := range ratio {
			share := pool.Reserved.
				Mul(decimal.NewFromFloat(r)).
				Div(decimal.NewFromFloat(ratioSum)).
				Truncate(2)
			if err := s.payout(tx, placements[i], share, "battle",
				fmt.Sprintf("Battle %s place %d", poolID, i+1)); err != nil {
				return err
			}
			paid = paid.Add(share)
			outcome.Winners = append(outcome.Winners, placements[i])
			outcome.Shares = append(outcome.Shares, share)
		}
		if dust := pool.Reserved.Sub(paid); dust.Sign() > 0 {
			if err := s.payout(tx, pool.CreatorID, dust, "battle_dust",
				fmt.Sprintf("Battle %s rounding remainder", poolID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.announce(outcome)
	return nil
}

// simulate eliminates fighters one at a time and returns final placements,
// best first.
func (s *Service) simulate(entries []models.PoolEntry) []int64 {
	alive := make([]int64, len(entries))
	for i, e := range entries {
		alive[i] = e.UserID
	}

	placements := make([]int64, 0, len(alive))
	for len(alive) > 0 {
		i := s.rng.Intn(len(alive))
		// Eliminated first places last.
		placements = append([]int64{alive[i]}, placements...)
		alive = append(alive[:i], alive[i+1:]...)
	}
	return placements
}
