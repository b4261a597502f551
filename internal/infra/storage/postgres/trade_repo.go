package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/qverse/engine/internal/core/domain"
)

// TradeRepo implements storage.TradeRepository using PostgreSQL.
type TradeRepo struct {
	db *DB
}

// NewTradeRepo creates a new PostgreSQL trade repository.
func NewTradeRepo(db *DB) *TradeRepo {
	return &TradeRepo{db: db}
}

type tradeRow struct {
	ID            string    `db:"id"`
	BuyOrderID    string    `db:"buy_order_id"`
	SellOrderID   string    `db:"sell_order_id"`
	Pair          string    `db:"pair"`
	Price         float64   `db:"price"`
	Amount        float64   `db:"amount"`
	MakerWalletID string    `db:"maker_wallet_id"`
	TakerWalletID string    `db:"taker_wallet_id"`
	Fee           float64   `db:"fee"`
	CreatedAt     time.Time `db:"created_at"`
}

// ListByPair returns the most recent trades for a pair, newest first.
func (r *TradeRepo) ListByPair(ctx context.Context, pair string, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []tradeRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, buy_order_id, sell_order_id, pair, price, amount, maker_wallet_id, taker_wallet_id, fee, created_at
		 FROM trades WHERE pair = $1
		 ORDER BY created_at DESC LIMIT $2`,
		pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", mapError(err))
	}

	trades := make([]*domain.Trade, 0, len(rows))
	for _, t := range rows {
		trades = append(trades, &domain.Trade{
			ID:            t.ID,
			BuyOrderID:    t.BuyOrderID,
			SellOrderID:   t.SellOrderID,
			Pair:          t.Pair,
			Price:         t.Price,
			Amount:        t.Amount,
			MakerWalletID: t.MakerWalletID,
			TakerWalletID: t.TakerWalletID,
			Fee:           t.Fee,
			CreatedAt:     t.CreatedAt,
		})
	}
	return trades, nil
}
