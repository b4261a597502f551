package domain

import (
	"fmt"
	"strings"
)

// NativeToken is the network token; staking always locks this token.
const NativeToken = "QVR"

const (
	maxTokenLen = 10
	maxAmount   = 1e12
)

// ValidateToken checks a token symbol before it reaches storage.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token symbol is empty", ErrValidation)
	}
	if len(token) > maxTokenLen {
		return fmt.Errorf("%w: token symbol too long", ErrValidation)
	}
	return nil
}

// ValidateAmount rejects non-positive, non-finite, and absurd amounts.
func ValidateAmount(amount float64) error {
	if amount != amount || amount > maxAmount { // NaN check
		return fmt.Errorf("%w: invalid amount", ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

// ValidateFee allows zero but rejects negative or non-finite fees.
func ValidateFee(fee float64) error {
	if fee != fee || fee > maxAmount {
		return fmt.Errorf("%w: invalid fee", ErrValidation)
	}
	if fee < 0 {
		return fmt.Errorf("%w: fee must not be negative", ErrValidation)
	}
	return nil
}

// ValidatePair checks a "BASE/QUOTE" pair string.
func ValidatePair(pair string) error {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return fmt.Errorf("%w: pair must be BASE/QUOTE", ErrValidation)
	}
	for _, p := range parts {
		if err := ValidateToken(p); err != nil {
			return err
		}
	}
	return nil
}
