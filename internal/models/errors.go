package models

import "errors"

// Shared error taxonomy. Command handlers match on these with errors.Is and
// translate them into user-facing messages; internal layers wrap them with
// context via fmt.Errorf("...: %w", ...).
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrHouseInsolvent      = errors.New("house cannot cover payout")
	ErrConflict            = errors.New("conflicting state")
	ErrExternalUnavailable = errors.New("external service unavailable")
	ErrExpired             = errors.New("expired")
	ErrNotFound            = errors.New("not found")
)
