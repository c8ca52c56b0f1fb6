package chain

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sushantdhakal00/discord-bot/internal/backoff"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

// feeBufferLamports is left on top of rent + fee so a sweep never races the
// fee estimate into an unfundable transaction.
const feeBufferLamports = 10_000

// Sweeper drains credited custodial addresses into the house wallet, leaving
// the rent-exempt minimum plus fee and buffer behind. It never touches the QC
// ledger or the lamport snapshot; the reconciler owns both. Failed addresses
// retry with per-address exponential backoff.
type Sweeper struct {
	store     *store.Store
	client    Client
	houseAddr string
	interval  time.Duration
	log       *zap.Logger

	sem   *semaphore.Weighted
	retry *backoff.Exponential
}

func NewSweeper(s *store.Store, c Client, houseAddr string, interval time.Duration, concurrency int, log *zap.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		store:     s,
		client:    c,
		houseAddr: houseAddr,
		interval:  interval,
		log:       log,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		retry:     backoff.NewExponential(30*time.Second, 30*time.Minute),
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	backoff.Loop(ctx, s.interval, s.Sweep)
}

// Sweep walks every bound address once, bounded by the semaphore.
func (s *Sweeper) Sweep(ctx context.Context) {
	accts, err := s.store.AccountsWithDepositAddress()
	if err != nil {
		s.log.Error("list sweep addresses", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, acct := range accts {
		if !s.retry.Ready(acct.DepositAddress, time.Now()) {
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(address, secret string) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.sweepAddress(ctx, address, secret)
		}(acct.DepositAddress, acct.DepositSecret)
	}
	wg.Wait()
}

func (s *Sweeper) sweepAddress(ctx context.Context, address, secret string) {
	balance, err := s.client.GetBalance(ctx, address)
	if err != nil {
		s.fail(address, "balance check", err)
		return
	}

	fee, err := s.client.EstimateFee(ctx)
	if err != nil {
		s.fail(address, "fee estimate", err)
		return
	}

	reserve := RentExemptLamports + fee + feeBufferLamports
	if balance <= reserve {
		s.retry.Success(address)
		return
	}

	key, err := LoadKey(secret)
	if err != nil {
		s.fail(address, "load key", err)
		return
	}

	amount := balance - reserve
	sig, err := s.client.Transfer(ctx, key, s.houseAddr, amount)
	if err != nil {
		s.fail(address, "transfer", err)
		return
	}

	s.retry.Success(address)
	s.log.Info("swept address",
		zap.String("address", address),
		zap.Int64("lamports", amount),
		zap.String("signature", sig))
}

func (s *Sweeper) fail(address, stage string, err error) {
	delay := s.retry.Failure(address, time.Now())
	s.log.Warn("sweep failed",
		zap.String("address", address),
		zap.String("stage", stage),
		zap.Duration("retry_in", delay),
		zap.Error(err))
}
