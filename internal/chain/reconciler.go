package chain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sushantdhakal00/discord-bot/internal/backoff"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

// Reconciler detects deposits by comparing each custodial address's live
// lamport balance against the account's stored snapshot. It is the only
// writer of last_observed_lamports; crediting the delta and advancing the
// snapshot happen in one transaction, so a crash at any point either credits
// a deposit exactly once or leaves it to be picked up next cycle.
type Reconciler struct {
	store    *store.Store
	client   Client
	qcPerSOL decimal.Decimal
	interval time.Duration
	log      *zap.Logger

	// onDeposit fires after a successful credit; the sweeper hangs off it.
	onDeposit func(userID int64, address string)
}

func NewReconciler(s *store.Store, c Client, qcPerSOL float64, interval time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    s,
		client:   c,
		qcPerSOL: decimal.NewFromFloat(qcPerSOL),
		interval: interval,
		log:      log,
	}
}

// OnDeposit registers a callback invoked after each credited deposit.
func (r *Reconciler) OnDeposit(fn func(userID int64, address string)) {
	r.onDeposit = fn
}

// Run polls until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	backoff.Loop(ctx, r.interval, r.Poll)
}

// Poll scans every bound address once. An RPC failure skips that address for
// this cycle; the snapshot is untouched, so nothing is lost.
func (r *Reconciler) Poll(ctx context.Context) {
	accts, err := r.store.AccountsWithDepositAddress()
	if err != nil {
		r.log.Error("list deposit addresses", zap.Error(err))
		return
	}

	for _, acct := range accts {
		if ctx.Err() != nil {
			return
		}
		live, err := r.client.GetBalance(ctx, acct.DepositAddress)
		if err != nil {
			r.log.Warn("balance check failed, skipping address",
				zap.String("address", acct.DepositAddress), zap.Error(err))
			continue
		}
		if live < acct.LastObservedLamports {
			// The sweeper (or any other outflow) drained the address. Lower
			// the baseline so the next deposit credits in full; only this
			// loop ever writes the snapshot.
			if err := r.store.LowerDepositSnapshot(acct.UserID, live); err != nil {
				r.log.Error("lower deposit snapshot",
					zap.Int64("user_id", acct.UserID), zap.Error(err))
			}
			continue
		}
		if live == acct.LastObservedLamports {
			continue
		}

		deltaLamports := live - acct.LastObservedLamports
		sol := decimal.NewFromInt(deltaLamports).Div(decimal.NewFromInt(LamportsPerSOL))
		qc := sol.Mul(r.qcPerSOL)

		if err := r.store.ApplyDeposit(acct.UserID, live, qc, sol); err != nil {
			r.log.Error("apply deposit",
				zap.Int64("user_id", acct.UserID), zap.Error(err))
			continue
		}
		r.log.Info("deposit credited",
			zap.Int64("user_id", acct.UserID),
			zap.String("qc", qc.String()),
			zap.String("sol", sol.String()))

		if r.onDeposit != nil {
			r.onDeposit(acct.UserID, acct.DepositAddress)
		}
	}
}
