package domain

import (
	"errors"
	"math"
	"testing"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"native", "QVR", true},
		{"alt", "POPEO", true},
		{"empty", "", false},
		{"too long", "TOKENTOKENX", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token)
			if tt.ok && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	for _, amount := range []float64{1, 0.0001, 1e12} {
		if err := ValidateAmount(amount); err != nil {
			t.Errorf("Expected %g valid, got %v", amount, err)
		}
	}
	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1), 1e13} {
		if !errors.Is(ValidateAmount(amount), ErrValidation) {
			t.Errorf("Expected %g rejected", amount)
		}
	}
}

func TestValidateFee(t *testing.T) {
	if err := ValidateFee(0); err != nil {
		t.Errorf("Zero fee must be valid, got %v", err)
	}
	if !errors.Is(ValidateFee(-0.1), ErrValidation) {
		t.Error("Negative fee must be rejected")
	}
}

func TestPairKey_OrderIndependent(t *testing.T) {
	if PairKey("QVR", "POPEO") != PairKey("POPEO", "QVR") {
		t.Error("PairKey must be order-independent")
	}
}

func TestOrderRemainingAndOpen(t *testing.T) {
	o := &Order{Amount: 10, Filled: 4, Status: OrderPartiallyFilled}
	if o.Remaining() != 6 {
		t.Errorf("Expected remaining 6, got %g", o.Remaining())
	}
	if !o.Open() {
		t.Error("PARTIALLY_FILLED order must be open")
	}
	o.Status = OrderCancelled
	if o.Open() {
		t.Error("CANCELLED order must not be open")
	}
}

func TestLPToken(t *testing.T) {
	p := &LiquidityPool{TokenA: "QVR", TokenB: "POPEO"}
	if p.LPToken() != "LP-QVR/POPEO" {
		t.Errorf("Unexpected LP token %s", p.LPToken())
	}
}
