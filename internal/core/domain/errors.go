package domain

import "errors"

var (
	// ErrValidation is returned for malformed or out-of-range input,
	// always before any state is touched.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientFunds is returned when a debit would take a balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCrypto covers bad key/signature/proof encodings and
	// verification failures.
	ErrCrypto = errors.New("crypto error")

	// ErrNotFound is returned when a wallet, pool, or order doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a storage-level concurrency conflict.
	// Callers may retry the whole operation.
	ErrConflict = errors.New("concurrency conflict")

	// ErrNotImplemented marks declared extension points (ring-signature
	// verification) that must never silently report success.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInternal is an unexpected failure. Details are logged, a generic
	// message is returned to the caller.
	ErrInternal = errors.New("internal error")
)
