package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qverse/engine/internal/core/domain"
)

// PoolRepo implements storage.PoolRepository using PostgreSQL.
type PoolRepo struct {
	db *DB
}

// NewPoolRepo creates a new PostgreSQL pool repository.
func NewPoolRepo(db *DB) *PoolRepo {
	return &PoolRepo{db: db}
}

type poolRow struct {
	ID          string    `db:"id"`
	TokenA      string    `db:"token_a"`
	TokenB      string    `db:"token_b"`
	ReserveA    float64   `db:"reserve_a"`
	ReserveB    float64   `db:"reserve_b"`
	TotalSupply float64   `db:"total_supply"`
	FeeRate     float64   `db:"fee_rate"`
	CreatedAt   time.Time `db:"created_at"`
}

func (p *poolRow) toDomain() *domain.LiquidityPool {
	return &domain.LiquidityPool{
		ID:          p.ID,
		TokenA:      p.TokenA,
		TokenB:      p.TokenB,
		ReserveA:    p.ReserveA,
		ReserveB:    p.ReserveB,
		TotalSupply: p.TotalSupply,
		FeeRate:     p.FeeRate,
		CreatedAt:   p.CreatedAt,
	}
}

// Get resolves the pool for a pair in either orientation.
func (r *PoolRepo) Get(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error) {
	var row poolRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, token_a, token_b, reserve_a, reserve_b, total_supply, fee_rate, created_at
		 FROM liquidity_pools
		 WHERE (token_a = $1 AND token_b = $2) OR (token_a = $2 AND token_b = $1)`,
		tokenA, tokenB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pool %s/%s", domain.ErrNotFound, tokenA, tokenB)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", mapError(err))
	}
	return row.toDomain(), nil
}

// Create inserts a new pool.
func (r *PoolRepo) Create(ctx context.Context, pool *domain.LiquidityPool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO liquidity_pools (id, token_a, token_b, reserve_a, reserve_b, total_supply, fee_rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pool.ID, pool.TokenA, pool.TokenB, pool.ReserveA, pool.ReserveB,
		pool.TotalSupply, pool.FeeRate, pool.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", mapError(err))
	}
	return nil
}
