package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

const (
	LamportsPerSOL = 1_000_000_000

	// Rent-exempt minimum for a zero-data system account. Left on every
	// custodial address so the runtime never garbage-collects it.
	RentExemptLamports = 890_880

	systemProgram = "11111111111111111111111111111111"
)

// Client is the on-chain surface the reconciler, sweeper, and withdrawal path
// depend on. Tests substitute a fake.
type Client interface {
	GetBalance(ctx context.Context, addr string) (int64, error)
	CreateAccount(ctx context.Context) (addr, secret string, err error)
	Transfer(ctx context.Context, key ed25519.PrivateKey, to string, lamports int64) (signature string, err error)
	EstimateFee(ctx context.Context) (lamports int64, err error)
}

// RPC talks Solana JSON-RPC over plain HTTP.
type RPC struct {
	url  string
	http *http.Client
}

func NewRPC(url string) *RPC {
	return &RPC{url: url, http: &http.Client{Timeout: 15 * time.Second}}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RPC) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", method, err, models.ErrExternalUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %w", method, resp.StatusCode, models.ErrExternalUnavailable)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s: %w",
			method, envelope.Error.Code, envelope.Error.Message, models.ErrExternalUnavailable)
	}
	return json.Unmarshal(envelope.Result, out)
}

func (c *RPC) GetBalance(ctx context.Context, addr string) (int64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{addr}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// CreateAccount generates a custodial keypair. System accounts come into
// existence on first funding, so no on-chain call is needed here.
func (c *RPC) CreateAccount(ctx context.Context) (string, string, error) {
	return NewKeypair()
}

// EstimateFee returns the flat per-signature fee. Solana deprecated the fee
// calculator RPC; the network fee has been fixed at 5000 lamports per
// signature for years and our transfers carry exactly one.
func (c *RPC) EstimateFee(ctx context.Context) (int64, error) {
	return 5000, nil
}

// Transfer submits a system-program transfer signed by key and returns the
// transaction signature.
func (c *RPC) Transfer(ctx context.Context, key ed25519.PrivateKey, to string, lamports int64) (string, error) {
	if lamports <= 0 {
		return "", fmt.Errorf("transfer amount must be positive: %w", models.ErrInvalidInput)
	}

	var bh struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []interface{}{}, &bh); err != nil {
		return "", err
	}

	raw, err := buildTransfer(key, to, lamports, bh.Value.Blockhash)
	if err != nil {
		return "", err
	}

	var signature string
	err = c.call(ctx, "sendTransaction", []interface{}{
		base64.StdEncoding.EncodeToString(raw),
		map[string]string{"encoding": "base64"},
	}, &signature)
	if err != nil {
		return "", err
	}
	return signature, nil
}

// buildTransfer serializes and signs a single-instruction legacy transaction:
// header, account keys [from, to, system program], blockhash, then the
// transfer instruction (discriminator 2 + u64 lamports, little-endian).
func buildTransfer(key ed25519.PrivateKey, to string, lamports int64, blockhash string) ([]byte, error) {
	from := key.Public().(ed25519.PublicKey)
	toKey, err := base58.Decode(to)
	if err != nil || len(toKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("destination %q is not a valid address: %w", to, models.ErrInvalidInput)
	}
	program, _ := base58.Decode(systemProgram)
	hash, err := base58.Decode(blockhash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("bad blockhash %q: %w", blockhash, models.ErrExternalUnavailable)
	}

	var msg bytes.Buffer
	// 1 signer, 0 readonly signed, 1 readonly unsigned (the program).
	msg.Write([]byte{1, 0, 1})
	writeCompactU16(&msg, 3)
	msg.Write(from)
	msg.Write(toKey)
	msg.Write(program)
	msg.Write(hash)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 2)
	binary.LittleEndian.PutUint64(data[4:], uint64(lamports))

	writeCompactU16(&msg, 1)
	msg.WriteByte(2) // program id index
	writeCompactU16(&msg, 2)
	msg.Write([]byte{0, 1}) // from, to
	writeCompactU16(&msg, len(data))
	msg.Write(data)

	sig := ed25519.Sign(key, msg.Bytes())

	var tx bytes.Buffer
	writeCompactU16(&tx, 1)
	tx.Write(sig)
	tx.Write(msg.Bytes())
	return tx.Bytes(), nil
}

// writeCompactU16 is the shortvec length encoding: 7 bits per byte,
// continuation bit high.
func writeCompactU16(w *bytes.Buffer, n int) {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			w.WriteByte(b)
			return
		}
		w.WriteByte(b | 0x80)
	}
}
