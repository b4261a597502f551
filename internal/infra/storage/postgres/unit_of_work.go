package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/infra/storage"
)

// UnitOfWork bundles ledger mutations into a single database transaction.
// Row locks taken by the locked balance read and the conditional debit
// serialize concurrent debits of the same wallet, so a lost update cannot
// happen.
type UnitOfWork struct {
	tx *sqlx.Tx
}

// Begin opens a unit of work with an active transaction.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return mapError(err)
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // already committed or rolled back
	}
	err := u.tx.Rollback()
	u.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Balance reads a balance with FOR UPDATE so it stays stable until commit.
func (u *UnitOfWork) Balance(ctx context.Context, walletID, token string) (float64, error) {
	var amount float64
	err := u.tx.GetContext(ctx, &amount,
		`SELECT amount FROM balances WHERE wallet_id = $1 AND token_symbol = $2 FOR UPDATE`,
		walletID, token,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	return amount, nil
}

// Debit subtracts amount. The WHERE clause makes check-and-debit a single
// atomic statement: a concurrent debit blocks on the row lock and then
// re-evaluates against the committed balance.
func (u *UnitOfWork) Debit(ctx context.Context, walletID, token string, amount float64) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE balances
		 SET amount = amount - $3, updated_at = NOW()
		 WHERE wallet_id = $1 AND token_symbol = $2 AND amount >= $3`,
		walletID, token, amount,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount, creating the balance row on first credit.
func (u *UnitOfWork) Credit(ctx context.Context, walletID, token string, amount float64) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO balances (wallet_id, token_symbol, amount, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (wallet_id, token_symbol)
		 DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()`,
		walletID, token, amount,
	)
	return mapError(err)
}

// InsertTransfer appends a finalized transfer record.
func (u *UnitOfWork) InsertTransfer(ctx context.Context, record *domain.TransferRecord) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO transfers
		 (id, from_wallet_id, to_wallet_id, token_symbol, amount, fee, kind, signature, commitment, proof, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.FromWalletID, record.ToWalletID, record.Token,
		record.Amount, record.Fee, string(record.Kind), record.Signature,
		record.Commitment, record.Proof, string(record.Status), record.CreatedAt,
	)
	return mapError(err)
}

// AddStake moves amount into the wallet's stake row.
func (u *UnitOfWork) AddStake(ctx context.Context, walletID string, amount float64) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO stakes (wallet_id, amount, staked_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (wallet_id)
		 DO UPDATE SET amount = stakes.amount + EXCLUDED.amount`,
		walletID, amount,
	)
	return mapError(err)
}

// CreatePool inserts a new pool inside the transaction.
func (u *UnitOfWork) CreatePool(ctx context.Context, pool *domain.LiquidityPool) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO liquidity_pools (id, token_a, token_b, reserve_a, reserve_b, total_supply, fee_rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pool.ID, pool.TokenA, pool.TokenB, pool.ReserveA, pool.ReserveB,
		pool.TotalSupply, pool.FeeRate, pool.CreatedAt,
	)
	return mapError(err)
}

// Pool loads a pool in either orientation, locked for update.
func (u *UnitOfWork) Pool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error) {
	var row poolRow
	err := u.tx.GetContext(ctx, &row,
		`SELECT id, token_a, token_b, reserve_a, reserve_b, total_supply, fee_rate, created_at
		 FROM liquidity_pools
		 WHERE (token_a = $1 AND token_b = $2) OR (token_a = $2 AND token_b = $1)
		 FOR UPDATE`,
		tokenA, tokenB,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return row.toDomain(), nil
}

// SavePool writes back reserves and supply.
func (u *UnitOfWork) SavePool(ctx context.Context, pool *domain.LiquidityPool) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE liquidity_pools
		 SET reserve_a = $2, reserve_b = $3, total_supply = $4
		 WHERE id = $1`,
		pool.ID, pool.ReserveA, pool.ReserveB, pool.TotalSupply,
	)
	return mapError(err)
}

// SaveOrder upserts an order with its current fill and status.
func (u *UnitOfWork) SaveOrder(ctx context.Context, order *domain.Order) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO orders (id, wallet_id, pair, side, order_type, price, amount, filled, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id)
		 DO UPDATE SET filled = EXCLUDED.filled, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		order.ID, order.WalletID, order.Pair, string(order.Side), string(order.Type),
		order.Price, order.Amount, order.Filled, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	)
	return mapError(err)
}

// OpenByPair returns a pair's open orders locked for update, so fills
// written by this unit of work cannot race a concurrent cancel or a
// second matching cycle.
func (u *UnitOfWork) OpenByPair(ctx context.Context, pair string) ([]*domain.Order, error) {
	var rows []orderRow
	err := u.tx.SelectContext(ctx, &rows,
		`SELECT `+orderColumns+` FROM orders
		 WHERE pair = $1 AND status IN ($2, $3)
		 ORDER BY created_at ASC
		 FOR UPDATE`,
		pair, string(domain.OrderPending), string(domain.OrderPartiallyFilled),
	)
	if err != nil {
		return nil, mapError(err)
	}
	orders := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].toDomain())
	}
	return orders, nil
}

// InsertTrade appends an immutable trade.
func (u *UnitOfWork) InsertTrade(ctx context.Context, trade *domain.Trade) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO trades
		 (id, buy_order_id, sell_order_id, pair, price, amount, maker_wallet_id, taker_wallet_id, fee, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		trade.ID, trade.BuyOrderID, trade.SellOrderID, trade.Pair,
		trade.Price, trade.Amount, trade.MakerWalletID, trade.TakerWalletID,
		trade.Fee, trade.CreatedAt,
	)
	return mapError(err)
}
