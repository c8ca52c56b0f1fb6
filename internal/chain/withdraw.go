package chain

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

// Withdrawer pays QC out as on-chain SOL from the house wallet. The QC debit
// commits before the transfer is attempted; a failed transfer refunds it in
// full, a successful one finalizes the row as sent.
type Withdrawer struct {
	store    *store.Store
	client   Client
	houseKey ed25519.PrivateKey
	qcPerSOL decimal.Decimal
	log      *zap.Logger
}

func NewWithdrawer(s *store.Store, c Client, houseKey ed25519.PrivateKey, qcPerSOL float64, log *zap.Logger) *Withdrawer {
	return &Withdrawer{
		store:    s,
		client:   c,
		houseKey: houseKey,
		qcPerSOL: decimal.NewFromFloat(qcPerSOL),
		log:      log,
	}
}

// Withdraw converts sol worth of QC off the user's balance and sends the SOL,
// minus the network fee, to dest.
func (w *Withdrawer) Withdraw(ctx context.Context, userID int64, sol decimal.Decimal, dest string) (*models.Withdrawal, error) {
	if sol.Sign() <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive: %w", models.ErrInvalidInput)
	}
	if !ValidAddress(dest) {
		return nil, fmt.Errorf("destination %q is not a valid address: %w", dest, models.ErrInvalidInput)
	}

	qc := sol.Mul(w.qcPerSOL)
	lamports := sol.Mul(decimal.NewFromInt(LamportsPerSOL)).IntPart()

	fee, err := w.client.EstimateFee(ctx)
	if err != nil {
		return nil, err
	}
	net := lamports - fee
	if net <= 0 {
		return nil, fmt.Errorf("amount does not cover the network fee: %w", models.ErrInvalidInput)
	}

	withdrawal := &models.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      models.WithdrawalStatusPending,
		AmountQC:    qc,
		Destination: dest,
		FeeLamports: fee,
		NetLamports: net,
	}

	// Debit first. Money leaves the ledger before it leaves the wallet, never
	// the other way around.
	err = w.store.WithTx(func(tx *gorm.DB) error {
		if err := w.store.AdjustBalanceTx(tx, userID, qc.Neg()); err != nil {
			return err
		}
		if err := w.store.AddStatsTx(tx, userID, models.StatDeltas{TotalWithdrawnQC: qc}); err != nil {
			return err
		}
		if err := w.store.CreateWithdrawalTx(tx, withdrawal); err != nil {
			return err
		}
		return w.store.RecordTransactionTx(tx, userID, models.TransactionDebit,
			"withdrawal", qc, fmt.Sprintf("Withdrawal %s to %s", withdrawal.ID, dest))
	})
	if err != nil {
		return nil, err
	}

	sig, sendErr := w.client.Transfer(ctx, w.houseKey, dest, net)
	if sendErr != nil {
		if refundErr := w.refund(withdrawal, qc); refundErr != nil {
			// The debit stands with the row still pending; an operator has to
			// resolve it by hand.
			w.log.Error("refund after failed withdrawal",
				zap.String("withdrawal_id", withdrawal.ID), zap.Error(refundErr))
			return nil, fmt.Errorf("refund failed: %v: %w", refundErr, sendErr)
		}
		withdrawal.Status = models.WithdrawalStatusFailed
		return withdrawal, fmt.Errorf("on-chain transfer: %w", sendErr)
	}

	err = w.store.WithTx(func(tx *gorm.DB) error {
		if err := w.store.UpdateWithdrawalTx(tx, withdrawal.ID, map[string]interface{}{
			"status":    models.WithdrawalStatusSent,
			"signature": sig,
		}); err != nil {
			return err
		}
		// A cash-out during an active loan bumps its interest tier.
		return w.store.MarkLoanWithdrawFlagTx(tx, userID)
	})
	if err != nil {
		return nil, err
	}

	withdrawal.Status = models.WithdrawalStatusSent
	withdrawal.Signature = sig
	w.log.Info("withdrawal sent",
		zap.Int64("user_id", userID),
		zap.String("qc", qc.String()),
		zap.String("signature", sig))
	return withdrawal, nil
}

func (w *Withdrawer) refund(withdrawal *models.Withdrawal, qc decimal.Decimal) error {
	return w.store.WithTx(func(tx *gorm.DB) error {
		if err := w.store.AdjustBalanceTx(tx, withdrawal.UserID, qc); err != nil {
			return err
		}
		if err := w.store.AddStatsTx(tx, withdrawal.UserID,
			models.StatDeltas{TotalWithdrawnQC: qc.Neg()}); err != nil {
			return err
		}
		if err := w.store.UpdateWithdrawalTx(tx, withdrawal.ID, map[string]interface{}{
			"status": models.WithdrawalStatusFailed,
		}); err != nil {
			return err
		}
		return w.store.RecordTransactionTx(tx, withdrawal.UserID, models.TransactionCredit,
			"withdrawal_refund", qc, fmt.Sprintf("Withdrawal %s failed", withdrawal.ID))
	})
}
