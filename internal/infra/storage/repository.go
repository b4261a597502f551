package storage

import (
	"context"

	"github.com/qverse/engine/internal/core/domain"
)

// UnitOfWork bundles ledger mutations into a single atomic unit: either
// every step commits or none become visible. Implementations must
// serialize the balance-check-then-debit sequence so that two concurrent
// debits of the same wallet can never both observe the same stale balance.
type UnitOfWork interface {
	// Commit makes all staged mutations visible.
	Commit() error

	// Rollback discards all staged mutations. Safe to call after Commit.
	Rollback() error

	// Balance reads a balance inside the transaction, taking whatever
	// lock the backend needs to keep the read stable until Commit.
	// An absent row reads as zero.
	Balance(ctx context.Context, walletID, token string) (float64, error)

	// Debit subtracts amount from a balance. Returns
	// domain.ErrInsufficientFunds (and stages nothing) if the balance is
	// short or the row is absent.
	Debit(ctx context.Context, walletID, token string, amount float64) error

	// Credit adds amount to a balance, creating the row if absent.
	Credit(ctx context.Context, walletID, token string, amount float64) error

	// InsertTransfer appends a finalized transfer record.
	InsertTransfer(ctx context.Context, record *domain.TransferRecord) error

	// AddStake moves amount into the wallet's stake row (upsert).
	AddStake(ctx context.Context, walletID string, amount float64) error

	// Pool loads a pool by its pair inside the transaction, locked for
	// update where the backend supports it.
	Pool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error)

	// SavePool writes back pool reserves and supply.
	SavePool(ctx context.Context, pool *domain.LiquidityPool) error

	// SaveOrder inserts or fully updates an order.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// OpenByPair returns the open orders for a pair, oldest first, locked
	// so their fill state stays stable until Commit. Status changes from
	// outside the unit of work wait behind the lock.
	OpenByPair(ctx context.Context, pair string) ([]*domain.Order, error)

	// InsertTrade appends an immutable trade.
	InsertTrade(ctx context.Context, trade *domain.Trade) error

	// CreatePool inserts a new pool. An existing pool for the pair is a
	// domain.ErrConflict.
	CreatePool(ctx context.Context, pool *domain.LiquidityPool) error
}

// Store is the storage entry point: repositories for plain reads and
// Begin for atomic write sequences.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Wallets() WalletRepository
	Balances() BalanceRepository
	Transfers() TransferRepository
	Pools() PoolRepository
	Orders() OrderRepository
	Trades() TradeRepository
}

// WalletRepository stores the public half of wallet key bundles.
type WalletRepository interface {
	Save(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id string) (*domain.Wallet, error)
	GetByAddress(ctx context.Context, address string) (*domain.Wallet, error)
}

// BalanceRepository reads balances outside any transaction and seeds
// them (mint/bootstrap path).
type BalanceRepository interface {
	Get(ctx context.Context, walletID, token string) (float64, error)
	Set(ctx context.Context, walletID, token string, amount float64) error
	GetStake(ctx context.Context, walletID string) (float64, error)
}

// TransferRepository reads the append-only transfer log.
type TransferRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TransferRecord, error)
	ListByWallet(ctx context.Context, walletID string, limit int) ([]*domain.TransferRecord, error)
}

// PoolRepository manages liquidity pool rows.
type PoolRepository interface {
	// Get resolves the pool for a token pair in either orientation.
	Get(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error)
	Create(ctx context.Context, pool *domain.LiquidityPool) error
}

// OrderRepository manages limit orders.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// OpenByPair returns PENDING and PARTIALLY_FILLED orders for a pair,
	// oldest first.
	OpenByPair(ctx context.Context, pair string) ([]*domain.Order, error)
	// UpdateStatus moves an open order to a terminal state; an already
	// terminal order is a domain.ErrConflict.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

// TradeRepository reads the immutable trade log.
type TradeRepository interface {
	ListByPair(ctx context.Context, pair string, limit int) ([]*domain.Trade, error)
}
