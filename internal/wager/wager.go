package wager

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/games"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

// Service is the one money-movement path shared by every game: escrow the
// stake into the house account, resolve the round, pay out or retain. The
// per-game logic only decides win/lose/push and the raw multiplier; how QC
// moves is identical everywhere.
type Service struct {
	store     *store.Store
	engine    *provable.Engine
	houseID   int64
	houseEdge float64
}

func New(s *store.Store, engine *provable.Engine, houseID int64, houseEdge float64) *Service {
	return &Service{store: s, engine: engine, houseID: houseID, houseEdge: houseEdge}
}

func (s *Service) HouseID() int64 {
	return s.houseID
}

// Escrow is a stake already moved into the house account, awaiting
// settlement or reversal.
type Escrow struct {
	UserID int64
	Stake  decimal.Decimal
}

// Settlement is the final accounting for one round.
type Settlement struct {
	Result games.Result
	Stake  decimal.Decimal
	Payout decimal.Decimal
	Net    decimal.Decimal
}

// Payout applies the uniform house-edge formula for winning rounds:
// stake * raw * (1 - edge). Pushes and refunds never pass through here.
func (s *Service) Payout(stake decimal.Decimal, raw float64) decimal.Decimal {
	return stake.Mul(decimal.NewFromFloat(raw)).Mul(decimal.NewFromFloat(1 - s.houseEdge))
}

// Place validates the stake and moves it from the user to the house in one
// transaction. The balance check runs inside the same transaction as the
// debit, closing the race between check and act.
func (s *Service) Place(userID int64, stake decimal.Decimal) (*Escrow, error) {
	if err := models.ValidateStake(stake); err != nil {
		return nil, err
	}
	err := s.store.WithTx(func(tx *gorm.DB) error {
		if err := s.store.AdjustBalanceTx(tx, userID, stake.Neg()); err != nil {
			return err
		}
		return s.store.AdjustBalanceTx(tx, s.houseID, stake)
	})
	if err != nil {
		return nil, err
	}
	return &Escrow{UserID: userID, Stake: stake}, nil
}

// Refund reverses an escrow whose round never resolved (validation failure
// after debit, interaction timeout). Stake must never stay trapped in the
// house account.
func (s *Service) Refund(e *Escrow) error {
	return s.store.WithTx(func(tx *gorm.DB) error {
		return s.reverseTx(tx, e)
	})
}

func (s *Service) reverseTx(tx *gorm.DB, e *Escrow) error {
	if err := s.store.AdjustBalanceTx(tx, s.houseID, e.Stake.Neg()); err != nil {
		return err
	}
	return s.store.AdjustBalanceTx(tx, e.UserID, e.Stake)
}

// Settle resolves an escrow against a game result. Wins pay
// stake*raw*(1-edge); pushes refund exactly the stake with zero P/L change;
// losses pay nothing. If the house cannot cover a winning payout, the escrow
// is fully reversed and ErrHouseInsolvent returned, leaving both balances
// exactly as before the wager.
func (s *Service) Settle(e *Escrow, result games.Result) (*Settlement, error) {
	var payout decimal.Decimal
	switch result.Kind {
	case games.Win:
		payout = s.Payout(e.Stake, result.Raw)
	case games.Push:
		payout = e.Stake
	}

	insolvent := false
	err := s.store.WithTx(func(tx *gorm.DB) error {
		if payout.Sign() > 0 {
			house, err := s.store.GetAccountTx(tx, s.houseID)
			if err != nil {
				return err
			}
			if house.Balance.LessThan(payout) {
				insolvent = true
				if err := s.reverseTx(tx, e); err != nil {
					return err
				}
				return s.store.RecordTransactionTx(tx, e.UserID, models.TransactionCredit,
					"wager_refund", e.Stake, "House could not cover payout")
			}
			if err := s.store.AdjustBalanceTx(tx, s.houseID, payout.Neg()); err != nil {
				return err
			}
			if err := s.store.AdjustBalanceTx(tx, e.UserID, payout); err != nil {
				return err
			}
		}
		net := payout.Sub(e.Stake)
		if err := s.store.AddStatsTx(tx, e.UserID, models.StatDeltas{
			TotalWagered:  e.Stake,
			NetProfitLoss: net,
		}); err != nil {
			return err
		}
		return s.store.RecordTransactionTx(tx, e.UserID, models.TransactionDebit,
			"wager", e.Stake, fmt.Sprintf("%s: %s", result.Kind, result.Detail))
	})
	if err != nil {
		return nil, err
	}
	if insolvent {
		return nil, fmt.Errorf("payout %s: %w", payout, models.ErrHouseInsolvent)
	}

	return &Settlement{
		Result: result,
		Stake:  e.Stake,
		Payout: payout,
		Net:    payout.Sub(e.Stake),
	}, nil
}

// Play runs one full provably-fair round: escrow, draw, settle. The nonce
// advance commits atomically with the round that consumed it. A reroll is
// just another Play call; it debits the stake again at the next nonce.
func (s *Service) Play(userID int64, family string, stake decimal.Decimal,
	play func(*provable.Stream) (games.Result, error)) (*Settlement, *provable.Stream, error) {

	escrow, err := s.Place(userID, stake)
	if err != nil {
		return nil, nil, err
	}

	var stream *provable.Stream
	var result games.Result
	err = s.store.WithTx(func(tx *gorm.DB) error {
		var inner error
		stream, inner = s.engine.StreamTx(tx, userID, family)
		if inner != nil {
			return inner
		}
		result, inner = play(stream)
		if inner != nil {
			return inner
		}
		return s.engine.CommitStreamTx(tx, userID, family, stream)
	})
	if err != nil {
		// The round never resolved; the stake must come back.
		if refundErr := s.Refund(escrow); refundErr != nil {
			return nil, nil, fmt.Errorf("refund after failed round: %v: %w", refundErr, err)
		}
		return nil, nil, err
	}

	settlement, err := s.Settle(escrow, result)
	if err != nil {
		return nil, stream, err
	}
	return settlement, stream, nil
}
