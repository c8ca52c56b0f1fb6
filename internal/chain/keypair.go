package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// NewKeypair generates a fresh ed25519 account. The secret is the full
// 64-byte private key, base58-encoded, which is the format stored per account
// and accepted back by LoadKey.
func NewKeypair() (address, secret string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate keypair: %w", err)
	}
	return base58.Encode(pub), base58.Encode(priv), nil
}

// LoadKey parses a private key from any of the formats wallets export:
// base58, a JSON byte array, or base64.
func LoadKey(secret string) (ed25519.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("empty wallet secret: %w", models.ErrInvalidInput)
	}

	if strings.HasPrefix(secret, "[") {
		var raw []byte
		if err := json.Unmarshal([]byte(secret), &raw); err != nil {
			return nil, fmt.Errorf("parse JSON wallet secret: %w", err)
		}
		return privateKey(raw)
	}
	if raw, err := base58.Decode(secret); err == nil {
		if key, err := privateKey(raw); err == nil {
			return key, nil
		}
	}
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("wallet secret is not base58, JSON, or base64: %w", models.ErrInvalidInput)
	}
	return privateKey(raw)
}

func privateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d: %w",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw), models.ErrInvalidInput)
	}
}

// Address returns the base58 public address for a private key.
func Address(key ed25519.PrivateKey) string {
	return base58.Encode(key.Public().(ed25519.PublicKey))
}

// ValidAddress reports whether addr decodes to a 32-byte public key.
func ValidAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	return err == nil && len(raw) == ed25519.PublicKeySize
}
