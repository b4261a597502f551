package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BalanceRepo implements storage.BalanceRepository using PostgreSQL.
type BalanceRepo struct {
	db *DB
}

// NewBalanceRepo creates a new PostgreSQL balance repository.
func NewBalanceRepo(db *DB) *BalanceRepo {
	return &BalanceRepo{db: db}
}

// Get returns the balance for (wallet, token); an absent row is zero.
func (r *BalanceRepo) Get(ctx context.Context, walletID, token string) (float64, error) {
	var amount float64
	err := r.db.GetContext(ctx, &amount,
		`SELECT amount FROM balances WHERE wallet_id = $1 AND token_symbol = $2`,
		walletID, token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", mapError(err))
	}
	return amount, nil
}

// Set overwrites a balance row. Mint/bootstrap path only; settlement goes
// through the unit of work.
func (r *BalanceRepo) Set(ctx context.Context, walletID, token string, amount float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO balances (wallet_id, token_symbol, amount, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (wallet_id, token_symbol)
		 DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`,
		walletID, token, amount)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", mapError(err))
	}
	return nil
}

// GetStake returns the staked amount for a wallet; absent row is zero.
func (r *BalanceRepo) GetStake(ctx context.Context, walletID string) (float64, error) {
	var amount float64
	err := r.db.GetContext(ctx, &amount,
		`SELECT amount FROM stakes WHERE wallet_id = $1`, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get stake: %w", mapError(err))
	}
	return amount, nil
}
