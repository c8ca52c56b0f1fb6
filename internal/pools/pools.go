// Package pools runs the time-bounded escrow events: lottery rounds,
// airdrops, and battle-royale lobbies. All pooled QC sits in the house
// account while a pool is open; settlement distributes or refunds it in one
// transaction with the status transition, so re-settling is a no-op.
package pools

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/backoff"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

// maxPoolDuration caps every deadline; a typo'd duration must not lock a pot
// for a month.
const maxPoolDuration = 24 * time.Hour

// Outcome is handed to the announcement callback after a pool resolves.
type Outcome struct {
	Pool    *models.Pool
	Winners []int64
	Shares  []decimal.Decimal
}

type Service struct {
	store   *store.Store
	houseID int64
	log     *zap.Logger
	rng     *rand.Rand

	// onSettled, when set, is called outside the settlement transaction.
	onSettled func(Outcome)
}

func New(s *store.Store, houseID int64, log *zap.Logger) *Service {
	return &Service{
		store:   s,
		houseID: houseID,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnSettled registers the announcement callback.
func (s *Service) OnSettled(fn func(Outcome)) {
	s.onSettled = fn
}

func checkDuration(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive", models.ErrInvalidInput)
	}
	if d > maxPoolDuration {
		d = maxPoolDuration
	}
	return d, nil
}

// joinable re-checks what Join relies on inside the transaction: the pool is
// still open and its deadline has not passed.
func joinable(p *models.Pool, kind models.PoolKind, now time.Time) error {
	if p.Kind != kind {
		return fmt.Errorf("pool %s is a %s: %w", p.ID, p.Kind, models.ErrInvalidInput)
	}
	if p.Status != models.PoolStatusOpen {
		return fmt.Errorf("pool %s is %s: %w", p.ID, p.Status, models.ErrExpired)
	}
	if now.After(p.Deadline) {
		return fmt.Errorf("pool %s deadline passed: %w", p.ID, models.ErrExpired)
	}
	return nil
}

// CreateLottery opens a round anyone can buy into until the deadline.
func (s *Service) CreateLottery(creatorID int64, channelID string, entryCost decimal.Decimal, duration time.Duration) (*models.Pool, error) {
	if err := models.ValidateStake(entryCost); err != nil {
		return nil, err
	}
	duration, err := checkDuration(duration)
	if err != nil {
		return nil, err
	}

	pool := &models.Pool{
		ID:        uuid.NewString(),
		Kind:      models.PoolKindLottery,
		Status:    models.PoolStatusOpen,
		ChannelID: channelID,
		CreatorID: creatorID,
		EntryCost: entryCost,
		Reserved:  decimal.Zero,
		Deadline:  time.Now().Add(duration),
	}
	err = s.store.WithTx(func(tx *gorm.DB) error {
		return s.store.CreatePoolTx(tx, pool)
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// JoinLottery buys one ticket: membership, the entry debit, and the pot
// growth commit together.
func (s *Service) JoinLottery(poolID string, userID int64) error {
	return s.store.WithTx(func(tx *gorm.DB) error {
		pool, err := s.store.GetPoolTx(tx, poolID)
		if err != nil {
			return err
		}
		if err := joinable(pool, models.PoolKindLottery, time.Now()); err != nil {
			return err
		}
		if err := s.store.AddPoolEntryTx(tx, poolID, userID); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, userID, pool.EntryCost.Neg()); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, s.houseID, pool.EntryCost); err != nil {
			return err
		}
		if err := s.store.AddPoolReservedTx(tx, poolID, pool.EntryCost); err != nil {
			return err
		}
		return s.store.RecordTransactionTx(tx, userID, models.TransactionDebit,
			"lottery", pool.EntryCost, fmt.Sprintf("Lottery %s entry", poolID))
	})
}

// RunLottery settles due lottery rounds until ctx is cancelled.
func (s *Service) RunLottery(ctx context.Context, interval time.Duration) {
	s.runDue(ctx, interval, models.PoolKindLottery, s.SettleLottery)
}

// SettleLottery draws a uniform winner over the entrants and pays out the
// whole pot. With no entrants the round is cancelled; no QC was reserved.
func (s *Service) SettleLottery(poolID string) error {
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

		if len(entries) == 0 {
			if err := s.store.TransitionPoolTx(tx, poolID, models.PoolStatusCancelled, 0); err != nil {
				return err
			}
			outcome = Outcome{Pool: pool}
			return nil
		}

		winner := entries[s.rng.Intn(len(entries))].UserID
		if err := s.store.TransitionPoolTx(tx, poolID, models.PoolStatusSettled, winner); err != nil {
			return err
		}
		if err := s.payout(tx, winner, pool.Reserved, "lottery",
			fmt.Sprintf("Lottery %s win", poolID)); err != nil {
			return err
		}
		outcome = Outcome{Pool: pool, Winners: []int64{winner}, Shares: []decimal.Decimal{pool.Reserved}}
		return nil
	})
	if err != nil {
		return err
	}
	s.announce(outcome)
	return nil
}

// CreateAirdrop escrows the creator's pot up front and opens a claim window.
func (s *Service) CreateAirdrop(creatorID int64, channelID string, pot decimal.Decimal, duration time.Duration) (*models.Pool, error) {
	if err := models.ValidateStake(pot); err != nil {
		return nil, err
	}
	duration, err := checkDuration(duration)
	if err != nil {
		return nil, err
	}

	pool := &models.Pool{
		ID:        uuid.NewString(),
		Kind:      models.PoolKindAirdrop,
		Status:    models.PoolStatusOpen,
		ChannelID: channelID,
		CreatorID: creatorID,
		Reserved:  pot,
		Deadline:  time.Now().Add(duration),
	}
	err = s.store.WithTx(func(tx *gorm.DB) error {
		if err := s.store.AdjustBalanceTx(tx, creatorID, pot.Neg()); err != nil {
			return err
		}
		if err := s.store.AdjustBalanceTx(tx, s.houseID, pot); err != nil {
			return err
		}
		if err := s.store.CreatePoolTx(tx, pool); err != nil {
			return err
		}
		return s.store.RecordTransactionTx(tx, creatorID, models.TransactionDebit,
			"airdrop", pot, fmt.Sprintf("Airdrop %s funded", pool.ID))
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// ClaimAirdrop registers a claimant. Money moves only at settlement.
func (s *Service) ClaimAirdrop(poolID string, userID int64) error {
	return s.store.WithTx(func(tx *gorm.DB) error {
		pool, err := s.store.GetPoolTx(tx, poolID)
		if err != nil {
			return err
		}
		if err := joinable(pool, models.PoolKindAirdrop, time.Now()); err != nil {
			return err
		}
		return s.store.AddPoolEntryTx(tx, poolID, userID)
	})
}

// RunAirdrop settles expired airdrops until ctx is cancelled.
func (s *Service) RunAirdrop(ctx context.Context, interval time.Duration) {
	s.runDue(ctx, interval, models.PoolKindAirdrop, s.SettleAirdrop)
}

// SettleAirdrop splits the pot evenly across claimants, sub-cent dust going
// back to the creator. With zero claimants the whole pot refunds the creator.
func (s *Service) SettleAirdrop(poolID string) error {
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

		if len(entries) == 0 {
			if err := s.store.TransitionPoolTx(tx, poolID, models.PoolStatusCancelled, 0); err != nil {
				return err
			}
			if err := s.payout(tx, pool.CreatorID, pool.Reserved, "airdrop_refund",
				fmt.Sprintf("Airdrop %s had no claimants", poolID)); err != nil {
				return err
			}
			outcome = Outcome{Pool: pool}
			return nil
		}

		share := pool.Reserved.Div(decimal.NewFromInt(int64(len(entries)))).Truncate(2)
		dust := pool.Reserved.Sub(share.Mul(decimal.NewFromInt(int64(len(entries)))))

		if err := s.store.TransitionPoolTx(tx, poolID, models.PoolStatusSettled, 0); err != nil {
			return err
		}
		outcome = Outcome{Pool: pool}
		for _, e := range entries {
			if err := s.payout(tx, e.UserID, share, "airdrop",
				fmt.Sprintf("Airdrop %s share", poolID)); err != nil {
				return err
			}
			outcome.Winners = append(outcome.Winners, e.UserID)
			outcome.Shares = append(outcome.Shares, share)
		}
		if dust.Sign() > 0 {
			if err := s.payout(tx, pool.CreatorID, dust, "airdrop_dust",
				fmt.Sprintf("Airdrop %s rounding remainder", poolID)); err != nil {
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

// payout moves QC out of the house escrow inside the caller's transaction.
func (s *Service) payout(tx *gorm.DB, userID int64, amount decimal.Decimal, category, note string) error {
	if amount.Sign() <= 0 {
		return nil
	}
	if err := s.store.AdjustBalanceTx(tx, s.houseID, amount.Neg()); err != nil {
		return err
	}
	if err := s.store.AdjustBalanceTx(tx, userID, amount); err != nil {
		return err
	}
	return s.store.RecordTransactionTx(tx, userID, models.TransactionCredit, category, amount, note)
}

// runDue is the shared settle loop. A pool another path already settled
// surfaces as ErrConflict and is skipped silently.
func (s *Service) runDue(ctx context.Context, interval time.Duration, kind models.PoolKind, settle func(string) error) {
	backoff.Loop(ctx, interval, func(ctx context.Context) {
		due, err := s.store.DuePools(kind, time.Now())
		if err != nil {
			s.log.Error("list due pools", zap.String("kind", string(kind)), zap.Error(err))
			return
		}
		for _, pool := range due {
			if ctx.Err() != nil {
				return
			}
			if err := settle(pool.ID); err != nil && !isConflict(err) {
				s.log.Error("settle pool",
					zap.String("kind", string(kind)),
					zap.String("pool_id", pool.ID),
					zap.Error(err))
			}
		}
	})
}

func (s *Service) announce(o Outcome) {
	if s.onSettled != nil && o.Pool != nil {
		s.onSettled(o)
	}
}

func isConflict(err error) bool {
	return errors.Is(err, models.ErrConflict)
}
