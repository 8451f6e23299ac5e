package domain

import "errors"

var (
	// Account errors
	ErrNotFound      = errors.New("account not created")
	ErrAlreadyExists = errors.New("account already exists")

	// Command validation errors
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("amount greater than balance")

	// Messaging errors
	ErrTimeout = errors.New("no reply within the request deadline")
)
