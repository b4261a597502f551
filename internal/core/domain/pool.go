package domain

import (
	"fmt"
	"strings"
	"time"
)

// LiquidityPool is a constant-product pool. The invariant
// ReserveA*ReserveB never decreases across a fee-bearing swap; only
// liquidity deposits and withdrawals move it.
type LiquidityPool struct {
	ID          string
	TokenA      string
	TokenB      string
	ReserveA    float64
	ReserveB    float64
	TotalSupply float64
	FeeRate     float64
	CreatedAt   time.Time
}

// LPToken is the balance token under which a provider's pool share is
// tracked in the ledger.
func (p *LiquidityPool) LPToken() string {
	return fmt.Sprintf("LP-%s/%s", p.TokenA, p.TokenB)
}

// PairKey returns the order-independent lookup key for a token pair.
func PairKey(tokenA, tokenB string) string {
	if strings.Compare(tokenA, tokenB) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return tokenA + ":" + tokenB
}
