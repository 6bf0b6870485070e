package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Ingestion / coin errors
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientCoins = errors.New("insufficient coins for purchase")

	// Pet errors
	ErrUnknownPet  = errors.New("pet not found")
	ErrEmptyName   = errors.New("pet name must not be empty")
	ErrEmptyUserID = errors.New("user id must not be empty")
	ErrEmptyPetID  = errors.New("pet id must not be empty")

	// Session errors
	ErrNoActiveSession = errors.New("no user is signed in")
)
