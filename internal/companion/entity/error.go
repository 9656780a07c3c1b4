package entity

import "errors"

var (
	// ErrPayloadMalformed rejects a whole update; the prior state is kept.
	ErrPayloadMalformed = errors.New("sync context payload malformed")
	// ErrAccountMalformed drops a single account entry.
	ErrAccountMalformed = errors.New("account entry malformed")
	// ErrAccountNotFound is returned when an account id is not in the current state.
	ErrAccountNotFound = errors.New("account not found")
)
