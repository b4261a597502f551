package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qverse/engine/internal/core/domain"
)

// OrderRepo implements storage.OrderRepository using PostgreSQL.
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a new PostgreSQL order repository.
func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

type orderRow struct {
	ID        string    `db:"id"`
	WalletID  string    `db:"wallet_id"`
	Pair      string    `db:"pair"`
	Side      string    `db:"side"`
	Type      string    `db:"order_type"`
	Price     float64   `db:"price"`
	Amount    float64   `db:"amount"`
	Filled    float64   `db:"filled"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (o *orderRow) toDomain() *domain.Order {
	return &domain.Order{
		ID:        o.ID,
		WalletID:  o.WalletID,
		Pair:      o.Pair,
		Side:      domain.OrderSide(o.Side),
		Type:      domain.OrderType(o.Type),
		Price:     o.Price,
		Amount:    o.Amount,
		Filled:    o.Filled,
		Status:    domain.OrderStatus(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

const orderColumns = `id, wallet_id, pair, side, order_type, price, amount, filled, status, created_at, updated_at`

// Save inserts an order or updates its fill state.
func (r *OrderRepo) Save(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id)
		 DO UPDATE SET filled = EXCLUDED.filled, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		order.ID, order.WalletID, order.Pair, string(order.Side), string(order.Type),
		order.Price, order.Amount, order.Filled, string(order.Status),
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", mapError(err))
	}
	return nil
}

// GetByID retrieves an order.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", mapError(err))
	}
	return row.toDomain(), nil
}

// OpenByPair returns open orders for a pair, oldest first so time
// priority is preserved for equal prices.
func (r *OrderRepo) OpenByPair(ctx context.Context, pair string) ([]*domain.Order, error) {
	var rows []orderRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+orderColumns+` FROM orders
		 WHERE pair = $1 AND status IN ($2, $3)
		 ORDER BY created_at ASC`,
		pair, string(domain.OrderPending), string(domain.OrderPartiallyFilled))
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", mapError(err))
	}

	orders := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].toDomain())
	}
	return orders, nil
}

// UpdateStatus moves an open order to a terminal state. The status guard
// makes check-and-close a single statement, so a fill committed by a
// concurrent match cycle cannot be overwritten.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status IN ($3, $4)`,
		id, string(status),
		string(domain.OrderPending), string(domain.OrderPartiallyFilled))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		order, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: order %s is %s", domain.ErrConflict, id, order.Status)
	}
	return nil
}
