package chain_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sushantdhakal00/discord-bot/internal/chain"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

type transfer struct {
	from     string
	to       string
	lamports int64
}

type fakeClient struct {
	mu         sync.Mutex
	balances   map[string]int64
	balanceErr map[string]error

	transferErr error
	transfers   []transfer
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		balances:   map[string]int64{},
		balanceErr: map[string]error{},
	}
}

func (f *fakeClient) GetBalance(_ context.Context, addr string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.balanceErr[addr]; err != nil {
		return 0, err
	}
	return f.balances[addr], nil
}

func (f *fakeClient) CreateAccount(context.Context) (string, string, error) {
	return chain.NewKeypair()
}

func (f *fakeClient) Transfer(_ context.Context, key ed25519.PrivateKey, to string, lamports int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, transfer{from: chain.Address(key), to: to, lamports: lamports})
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return fmt.Sprintf("sig-%d", len(f.transfers)), nil
}

func (f *fakeClient) EstimateFee(context.Context) (int64, error) {
	return 5000, nil
}

func (f *fakeClient) setBalance(addr string, lamports int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = lamports
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fundQC(t *testing.T, s *store.Store, id int64, amount int64) {
	t.Helper()
	require.NoError(t, s.WithTx(func(tx *gorm.DB) error {
		return s.AdjustBalanceTx(tx, id, decimal.NewFromInt(amount))
	}))
}

func TestKeypairFormats(t *testing.T) {
	addr, secret, err := chain.NewKeypair()
	require.NoError(t, err)
	require.True(t, chain.ValidAddress(addr))
	require.False(t, chain.ValidAddress("not-an-address"))

	key, err := chain.LoadKey(secret)
	require.NoError(t, err)
	require.Equal(t, addr, chain.Address(key))

	// The same key as a JSON byte array and as base64. json.Marshal on a
	// []byte emits a base64 string, so build the array from ints.
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	asJSON, err := json.Marshal(ints)
	require.NoError(t, err)
	fromJSON, err := chain.LoadKey(string(asJSON))
	require.NoError(t, err)
	require.Equal(t, addr, chain.Address(fromJSON))

	fromB64, err := chain.LoadKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, addr, chain.Address(fromB64))

	_, err = chain.LoadKey("")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestReconcilerCreditsExactlyOnce(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	addr, secret, err := chain.NewKeypair()
	require.NoError(t, err)
	require.NoError(t, s.BindDepositAddress(1, addr, secret))

	r := chain.NewReconciler(s, client, 1000, time.Second, zap.NewNop())

	// 0.002 SOL lands on the address.
	client.setBalance(addr, 2_000_000)
	r.Poll(context.Background())

	acct, err := s.GetAccount(1)
	require.NoError(t, err)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(2)), "balance %s", acct.Balance)
	require.Equal(t, int64(2_000_000), acct.LastObservedLamports)
	require.True(t, acct.TotalSOLDeposited.Equal(decimal.NewFromFloat(0.002)))

	// A second poll over the same chain state credits nothing.
	r.Poll(context.Background())
	acct, _ = s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(2)))

	// A further deposit credits only the delta.
	client.setBalance(addr, 5_000_000)
	r.Poll(context.Background())
	acct, _ = s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(5)))
	require.Equal(t, int64(5_000_000), acct.LastObservedLamports)
}

func TestReconcilerCreditsFullDepositAfterSweep(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	addr, secret, err := chain.NewKeypair()
	require.NoError(t, err)
	require.NoError(t, s.BindDepositAddress(1, addr, secret))

	r := chain.NewReconciler(s, client, 1000, time.Second, zap.NewNop())

	// First deposit: 0.002 SOL → 2 QC.
	client.setBalance(addr, 2_000_000)
	r.Poll(context.Background())
	acct, err := s.GetAccount(1)
	require.NoError(t, err)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(2)))

	// The sweeper drains the address to its rent reserve. The next poll
	// rebases the snapshot without crediting anything.
	reserve := int64(chain.RentExemptLamports + 5000 + 10_000)
	client.setBalance(addr, reserve)
	r.Poll(context.Background())
	acct, _ = s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(2)), "an outflow must not credit")
	require.Equal(t, reserve, acct.LastObservedLamports, "snapshot follows the drained balance down")

	// A post-sweep deposit of 0.002 SOL credits the full 2 QC, not just the
	// slice above the pre-sweep high-water mark.
	client.setBalance(addr, reserve+2_000_000)
	r.Poll(context.Background())
	acct, _ = s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(4)), "balance %s", acct.Balance)
	require.True(t, acct.TotalSOLDeposited.Equal(decimal.NewFromFloat(0.004)))
	require.Equal(t, reserve+2_000_000, acct.LastObservedLamports)
}

func TestReconcilerSkipsAddressOnRPCError(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	addr, secret, _ := chain.NewKeypair()
	require.NoError(t, s.BindDepositAddress(1, addr, secret))

	r := chain.NewReconciler(s, client, 1000, time.Second, zap.NewNop())

	client.setBalance(addr, 3_000_000)
	client.balanceErr[addr] = models.ErrExternalUnavailable
	r.Poll(context.Background())

	acct, _ := s.GetOrCreateAccount(1)
	require.True(t, acct.Balance.IsZero(), "no credit while the RPC is down")
	require.Equal(t, int64(0), acct.LastObservedLamports)

	// The deposit is picked up once the RPC recovers.
	client.balanceErr[addr] = nil
	r.Poll(context.Background())
	acct, _ = s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(3)))
}

func TestSweeperDrainsAboveReserve(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	addr, secret, _ := chain.NewKeypair()
	require.NoError(t, s.BindDepositAddress(1, addr, secret))

	houseAddr, _, _ := chain.NewKeypair()
	sw := chain.NewSweeper(s, client, houseAddr, time.Second, 2, zap.NewNop())

	reserve := int64(chain.RentExemptLamports + 5000 + 10_000)
	client.setBalance(addr, reserve+1_000_000)
	sw.Sweep(context.Background())

	require.Len(t, client.transfers, 1)
	require.Equal(t, transfer{from: addr, to: houseAddr, lamports: 1_000_000}, client.transfers[0])

	// At or below the reserve nothing moves.
	client.setBalance(addr, reserve)
	sw.Sweep(context.Background())
	require.Len(t, client.transfers, 1)

	// The ledger is untouched either way.
	acct, _ := s.GetOrCreateAccount(1)
	require.True(t, acct.Balance.IsZero())
	require.Equal(t, int64(0), acct.LastObservedLamports)
}

func TestSweeperBacksOffFailedAddress(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	addr, secret, _ := chain.NewKeypair()
	require.NoError(t, s.BindDepositAddress(1, addr, secret))

	houseAddr, _, _ := chain.NewKeypair()
	sw := chain.NewSweeper(s, client, houseAddr, time.Second, 2, zap.NewNop())

	client.setBalance(addr, chain.RentExemptLamports+10_000_000)
	client.transferErr = models.ErrExternalUnavailable
	sw.Sweep(context.Background())
	require.Len(t, client.transfers, 1)

	// An immediate re-sweep skips the backed-off address.
	sw.Sweep(context.Background())
	require.Len(t, client.transfers, 1)
}

func TestWithdrawSuccess(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	_, houseSecret, _ := chain.NewKeypair()
	houseKey, err := chain.LoadKey(houseSecret)
	require.NoError(t, err)

	fundQC(t, s, 1, 1000)
	require.NoError(t, s.CreateLoan(&models.Loan{
		UniqueID:  "loan-1",
		UserID:    1,
		Status:    models.LoanStatusActive,
		Principal: decimal.NewFromInt(100),
		DueDate:   time.Now().Add(24 * time.Hour),
	}))

	w := chain.NewWithdrawer(s, client, houseKey, 1000, zap.NewNop())
	dest, _, _ := chain.NewKeypair()

	// 0.5 SOL costs 500 QC and sends 0.5 SOL minus the fee.
	withdrawal, err := w.Withdraw(context.Background(), 1, decimal.NewFromFloat(0.5), dest)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalStatusSent, withdrawal.Status)
	require.NotEmpty(t, withdrawal.Signature)

	acct, _ := s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(500)))
	require.True(t, acct.TotalWithdrawnQC.Equal(decimal.NewFromInt(500)))

	require.Len(t, client.transfers, 1)
	require.Equal(t, int64(500_000_000-5000), client.transfers[0].lamports)

	loan, err := s.NonTerminalLoan(1)
	require.NoError(t, err)
	require.True(t, loan.WithdrewDuringLoan, "cashing out during a loan bumps the interest tier")

	stored, err := s.GetWithdrawal(withdrawal.ID)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalStatusSent, stored.Status)
}

func TestWithdrawFailureRefunds(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	client.transferErr = models.ErrExternalUnavailable
	_, houseSecret, _ := chain.NewKeypair()
	houseKey, _ := chain.LoadKey(houseSecret)

	fundQC(t, s, 1, 1000)
	w := chain.NewWithdrawer(s, client, houseKey, 1000, zap.NewNop())
	dest, _, _ := chain.NewKeypair()

	withdrawal, err := w.Withdraw(context.Background(), 1, decimal.NewFromFloat(0.5), dest)
	require.ErrorIs(t, err, models.ErrExternalUnavailable)
	require.Equal(t, models.WithdrawalStatusFailed, withdrawal.Status)

	acct, _ := s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(1000)), "failed send refunds the QC")
	require.True(t, acct.TotalWithdrawnQC.IsZero())
}

func TestWithdrawRejectsBadInput(t *testing.T) {
	s := openStore(t)
	client := newFakeClient()
	_, houseSecret, _ := chain.NewKeypair()
	houseKey, _ := chain.LoadKey(houseSecret)
	w := chain.NewWithdrawer(s, client, houseKey, 1000, zap.NewNop())

	fundQC(t, s, 1, 1000)
	dest, _, _ := chain.NewKeypair()

	_, err := w.Withdraw(context.Background(), 1, decimal.Zero, dest)
	require.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = w.Withdraw(context.Background(), 1, decimal.NewFromFloat(0.1), "junk")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	// Debiting more QC than held fails before anything is sent.
	_, err = w.Withdraw(context.Background(), 1, decimal.NewFromInt(5), dest)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Empty(t, client.transfers)

	acct, _ := s.GetAccount(1)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(1000)))
}
