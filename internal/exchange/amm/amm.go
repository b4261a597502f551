// Package amm implements constant-product (x*y=k) market making math.
// All functions are pure; pool state loading and persistence live in the
// exchange service.
package amm

import (
	"fmt"
	"math"

	"github.com/qverse/engine/internal/core/domain"
)

// ratioTolerance is how far a follow-up deposit may deviate from the pool
// ratio before it is rejected. Accepting more would let a deposit shift
// the pool price.
const ratioTolerance = 0.01

// SwapOut returns the output amount for amountIn against the given
// reserves. The fee is taken from the input side, which makes the product
// of reserves strictly increase for feeRate > 0.
func SwapOut(reserveIn, reserveOut, amountIn, feeRate float64) (float64, error) {
	if err := checkReserves(reserveIn, reserveOut); err != nil {
		return 0, err
	}
	if err := domain.ValidateAmount(amountIn); err != nil {
		return 0, err
	}
	if err := checkFeeRate(feeRate); err != nil {
		return 0, err
	}

	amountInWithFee := amountIn * (1 - feeRate)
	return amountInWithFee * reserveOut / (reserveIn + amountInWithFee), nil
}

// SwapIn returns the input amount required to receive amountOut. Draining
// the pool (amountOut >= reserveOut) is undefined and rejected.
func SwapIn(reserveIn, reserveOut, amountOut, feeRate float64) (float64, error) {
	if err := checkReserves(reserveIn, reserveOut); err != nil {
		return 0, err
	}
	if err := domain.ValidateAmount(amountOut); err != nil {
		return 0, err
	}
	if err := checkFeeRate(feeRate); err != nil {
		return 0, err
	}
	if amountOut >= reserveOut {
		return 0, fmt.Errorf("%w: insufficient liquidity for requested output", domain.ErrValidation)
	}

	return reserveIn * amountOut / ((reserveOut - amountOut) * (1 - feeRate)), nil
}

// AddLiquidity returns the liquidity tokens minted for a deposit. The
// first deposit bootstraps the pool at the depositor's ratio and mints
// sqrt(a*b); later deposits must match the current reserve ratio within
// ratioTolerance.
func AddLiquidity(reserveA, reserveB, amountA, amountB float64) (float64, error) {
	if err := domain.ValidateAmount(amountA); err != nil {
		return 0, err
	}
	if err := domain.ValidateAmount(amountB); err != nil {
		return 0, err
	}

	if reserveA == 0 && reserveB == 0 {
		return math.Sqrt(amountA * amountB), nil
	}
	if reserveA == 0 || reserveB == 0 {
		return 0, fmt.Errorf("%w: pool has a one-sided reserve", domain.ErrValidation)
	}

	ratio := reserveA / reserveB
	expectedB := amountA / ratio
	if math.Abs(expectedB-amountB)/expectedB > ratioTolerance {
		return 0, fmt.Errorf("%w: deposit ratio deviates from pool ratio", domain.ErrValidation)
	}

	return (amountA*reserveB + amountB*reserveA) / (2 * reserveB), nil
}

// RemoveLiquidity redeems liquidity tokens pro rata against both reserves.
func RemoveLiquidity(reserveA, reserveB, liquidity, totalSupply float64) (amountA, amountB float64, err error) {
	if err := domain.ValidateAmount(liquidity); err != nil {
		return 0, 0, err
	}
	if totalSupply <= 0 {
		return 0, 0, fmt.Errorf("%w: pool has no supply", domain.ErrValidation)
	}
	if liquidity > totalSupply {
		return 0, 0, fmt.Errorf("%w: liquidity exceeds total supply", domain.ErrValidation)
	}

	share := liquidity / totalSupply
	return reserveA * share, reserveB * share, nil
}

func checkReserves(reserveIn, reserveOut float64) error {
	if reserveIn <= 0 || reserveOut <= 0 {
		return fmt.Errorf("%w: reserves must be positive", domain.ErrValidation)
	}
	return nil
}

func checkFeeRate(feeRate float64) error {
	if feeRate < 0 || feeRate >= 1 || feeRate != feeRate {
		return fmt.Errorf("%w: fee rate must be in [0, 1)", domain.ErrValidation)
	}
	return nil
}
