// Package api defines the uniform result envelope returned to callers.
// Every operation yields {success, data} or {success, error, code};
// internal failure detail stays in the logs, never in the envelope.
package api

import (
	"errors"
	"log/slog"

	"github.com/qverse/engine/internal/core/domain"
)

// Stable error codes for programmatic handling.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeCrypto            = "CRYPTO_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeNotImplemented    = "NOT_IMPLEMENTED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Result is the envelope every operation returns.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OK wraps a successful payload.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail maps an error onto the envelope. Expected domain errors carry
// their message through; anything unclassified is logged in full and
// returned as a generic internal error so storage and crypto internals
// never leak to callers.
func Fail[T any](err error) Result[T] {
	code := classify(err)
	msg := err.Error()
	if code == CodeInternal {
		slog.Error("internal error", "error", err)
		msg = "internal error"
	}
	return Result[T]{Success: false, Error: msg, Code: code}
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return CodeValidation
	case errors.Is(err, domain.ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, domain.ErrCrypto):
		return CodeCrypto
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return CodeConflict
	case errors.Is(err, domain.ErrNotImplemented):
		return CodeNotImplemented
	default:
		return CodeInternal
	}
}
