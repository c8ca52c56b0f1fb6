package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GenerateClientSeed builds the default client seed for a fresh commitment:
// user ID, current unix time, and 4 random bytes. Users can replace it at
// any time with SetClientSeed.
func GenerateClientSeed(userID int64) (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate client seed: %w", err)
	}
	return fmt.Sprintf("%d-%d-%s", userID, time.Now().Unix(), hex.EncodeToString(bytes)), nil
}

// GenerateServerSeed returns 32 bytes of entropy, hex encoded.
func GenerateServerSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ValidateStake rejects non-positive stakes before any balance mutation.
func ValidateStake(stake decimal.Decimal) error {
	if stake.Sign() <= 0 {
		return fmt.Errorf("%w: stake must be positive", ErrInvalidInput)
	}
	return nil
}

var durationPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-z]+)\s*$`)

var durationUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ParseDuration accepts human inputs like "30s", "2m", "1h", "7d", "1w", or a
// bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrInvalidInput)
	}
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
		}
		return time.Duration(secs) * time.Second, nil
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: invalid duration %q", ErrInvalidInput, s)
	}
	unit, ok := durationUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("%w: invalid duration unit %q", ErrInvalidInput, m[2])
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("%w: invalid duration %q", ErrInvalidInput, s)
	}
	return time.Duration(val * float64(unit)), nil
}

// ParseRatio parses a battle split like "70-30" or "50-30-20" into
// percentages summing to a positive total.
func ParseRatio(s string) ([]float64, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	var vals []float64
	var sum float64
	for _, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: invalid ratio %q", ErrInvalidInput, s)
		}
		vals = append(vals, v)
		sum += v
	}
	if len(vals) == 0 || sum <= 0 {
		return nil, fmt.Errorf("%w: ratio must sum to a positive value", ErrInvalidInput)
	}
	return vals, nil
}
