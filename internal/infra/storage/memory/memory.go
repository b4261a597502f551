// Package memory provides an in-memory storage backend. It backs unit
// tests and local runs without PostgreSQL; units of work serialize on a
// single write lock and keep an undo journal so Rollback restores the
// exact prior state.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/infra/storage"
)

type MemoryStorage struct {
	mu            sync.RWMutex
	wallets       map[string]*domain.Wallet
	walletsByAddr map[string]string
	balances      map[string]float64 // wallet|token
	stakes        map[string]float64
	transfers     map[string]*domain.TransferRecord
	transferLog   []string
	pools         map[string]*domain.LiquidityPool // PairKey
	orders        map[string]*domain.Order
	orderLog      []string
	trades        []*domain.Trade
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		wallets:       make(map[string]*domain.Wallet),
		walletsByAddr: make(map[string]string),
		balances:      make(map[string]float64),
		stakes:        make(map[string]float64),
		transfers:     make(map[string]*domain.TransferRecord),
		pools:         make(map[string]*domain.LiquidityPool),
		orders:        make(map[string]*domain.Order),
	}
}

func balanceKey(walletID, token string) string {
	return walletID + "|" + token
}

// Begin acquires the write lock for the whole unit of work, which makes
// concurrent check-then-debit sequences strictly serial.
func (m *MemoryStorage) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	m.mu.Lock()
	return &unitOfWork{store: m, active: true}, nil
}

func (m *MemoryStorage) Wallets() storage.WalletRepository     { return (*walletRepo)(m) }
func (m *MemoryStorage) Balances() storage.BalanceRepository   { return (*balanceRepo)(m) }
func (m *MemoryStorage) Transfers() storage.TransferRepository { return (*transferRepo)(m) }
func (m *MemoryStorage) Pools() storage.PoolRepository         { return (*poolRepo)(m) }
func (m *MemoryStorage) Orders() storage.OrderRepository       { return (*orderRepo)(m) }
func (m *MemoryStorage) Trades() storage.TradeRepository       { return (*tradeRepo)(m) }

// ---------------------------------------------------------------------
// Unit of work
// ---------------------------------------------------------------------

type unitOfWork struct {
	store  *MemoryStorage
	active bool
	undo   []func()
}

func (u *unitOfWork) Commit() error {
	if !u.active {
		return fmt.Errorf("transaction already completed")
	}
	u.active = false
	u.undo = nil
	u.store.mu.Unlock()
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.active = false
	u.undo = nil
	u.store.mu.Unlock()
	return nil
}

func (u *unitOfWork) snapshotBalance(key string) {
	prev, existed := u.store.balances[key]
	u.undo = append(u.undo, func() {
		if existed {
			u.store.balances[key] = prev
		} else {
			delete(u.store.balances, key)
		}
	})
}

func (u *unitOfWork) Balance(ctx context.Context, walletID, token string) (float64, error) {
	return u.store.balances[balanceKey(walletID, token)], nil
}

func (u *unitOfWork) Debit(ctx context.Context, walletID, token string, amount float64) error {
	key := balanceKey(walletID, token)
	if u.store.balances[key] < amount {
		return domain.ErrInsufficientFunds
	}
	u.snapshotBalance(key)
	u.store.balances[key] -= amount
	return nil
}

func (u *unitOfWork) Credit(ctx context.Context, walletID, token string, amount float64) error {
	key := balanceKey(walletID, token)
	u.snapshotBalance(key)
	u.store.balances[key] += amount
	return nil
}

func (u *unitOfWork) InsertTransfer(ctx context.Context, record *domain.TransferRecord) error {
	if _, ok := u.store.transfers[record.ID]; ok {
		return fmt.Errorf("%w: duplicate transfer id", domain.ErrConflict)
	}
	r := *record
	u.store.transfers[record.ID] = &r
	u.store.transferLog = append(u.store.transferLog, record.ID)
	u.undo = append(u.undo, func() {
		delete(u.store.transfers, record.ID)
		u.store.transferLog = u.store.transferLog[:len(u.store.transferLog)-1]
	})
	return nil
}

func (u *unitOfWork) AddStake(ctx context.Context, walletID string, amount float64) error {
	prev, existed := u.store.stakes[walletID]
	u.undo = append(u.undo, func() {
		if existed {
			u.store.stakes[walletID] = prev
		} else {
			delete(u.store.stakes, walletID)
		}
	})
	u.store.stakes[walletID] += amount
	return nil
}

func (u *unitOfWork) CreatePool(ctx context.Context, pool *domain.LiquidityPool) error {
	key := domain.PairKey(pool.TokenA, pool.TokenB)
	if _, ok := u.store.pools[key]; ok {
		return fmt.Errorf("%w: pool exists", domain.ErrConflict)
	}
	p := *pool
	u.store.pools[key] = &p
	u.undo = append(u.undo, func() {
		delete(u.store.pools, key)
	})
	return nil
}

func (u *unitOfWork) Pool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error) {
	pool, ok := u.store.pools[domain.PairKey(tokenA, tokenB)]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s/%s", domain.ErrNotFound, tokenA, tokenB)
	}
	p := *pool
	return &p, nil
}

func (u *unitOfWork) SavePool(ctx context.Context, pool *domain.LiquidityPool) error {
	key := domain.PairKey(pool.TokenA, pool.TokenB)
	prev, existed := u.store.pools[key]
	u.undo = append(u.undo, func() {
		if existed {
			u.store.pools[key] = prev
		} else {
			delete(u.store.pools, key)
		}
	})
	p := *pool
	u.store.pools[key] = &p
	return nil
}

func (u *unitOfWork) SaveOrder(ctx context.Context, order *domain.Order) error {
	prev, existed := u.store.orders[order.ID]
	u.undo = append(u.undo, func() {
		if existed {
			u.store.orders[order.ID] = prev
		} else {
			delete(u.store.orders, order.ID)
			u.store.orderLog = u.store.orderLog[:len(u.store.orderLog)-1]
		}
	})
	o := *order
	u.store.orders[order.ID] = &o
	if !existed {
		u.store.orderLog = append(u.store.orderLog, order.ID)
	}
	return nil
}

// OpenByPair reads under the write lock the unit of work already holds,
// so the snapshot cannot race a concurrent cancel or match cycle.
func (u *unitOfWork) OpenByPair(ctx context.Context, pair string) ([]*domain.Order, error) {
	var orders []*domain.Order
	for _, id := range u.store.orderLog {
		order := u.store.orders[id]
		if order.Pair == pair && order.Open() {
			o := *order
			orders = append(orders, &o)
		}
	}
	return orders, nil
}

func (u *unitOfWork) InsertTrade(ctx context.Context, trade *domain.Trade) error {
	t := *trade
	u.store.trades = append(u.store.trades, &t)
	u.undo = append(u.undo, func() {
		u.store.trades = u.store.trades[:len(u.store.trades)-1]
	})
	return nil
}

// ---------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------

type walletRepo MemoryStorage

func (r *walletRepo) Save(ctx context.Context, wallet *domain.Wallet) error {
	m := (*MemoryStorage)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[wallet.ID]; ok {
		return fmt.Errorf("%w: duplicate wallet id", domain.ErrConflict)
	}
	w := *wallet
	m.wallets[wallet.ID] = &w
	m.walletsByAddr[wallet.Address] = wallet.ID
	return nil
}

func (r *walletRepo) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	wallet, ok := m.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %s", domain.ErrNotFound, id)
	}
	w := *wallet
	return &w, nil
}

func (r *walletRepo) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	id, ok := m.walletsByAddr[address]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: address %s", domain.ErrNotFound, address)
	}
	return r.GetByID(ctx, id)
}

type balanceRepo MemoryStorage

func (r *balanceRepo) Get(ctx context.Context, walletID, token string) (float64, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[balanceKey(walletID, token)], nil
}

func (r *balanceRepo) Set(ctx context.Context, walletID, token string, amount float64) error {
	m := (*MemoryStorage)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(walletID, token)] = amount
	return nil
}

func (r *balanceRepo) GetStake(ctx context.Context, walletID string) (float64, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stakes[walletID], nil
}

type transferRepo MemoryStorage

func (r *transferRepo) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.transfers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer %s", domain.ErrNotFound, id)
	}
	rec := *record
	return &rec, nil
}

func (r *transferRepo) ListByWallet(ctx context.Context, walletID string, limit int) ([]*domain.TransferRecord, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var records []*domain.TransferRecord
	for i := len(m.transferLog) - 1; i >= 0 && len(records) < limit; i-- {
		record := m.transfers[m.transferLog[i]]
		if record.FromWalletID == walletID || record.ToWalletID == walletID {
			rec := *record
			records = append(records, &rec)
		}
	}
	return records, nil
}

type poolRepo MemoryStorage

func (r *poolRepo) Get(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	pool, ok := m.pools[domain.PairKey(tokenA, tokenB)]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s/%s", domain.ErrNotFound, tokenA, tokenB)
	}
	p := *pool
	return &p, nil
}

func (r *poolRepo) Create(ctx context.Context, pool *domain.LiquidityPool) error {
	m := (*MemoryStorage)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.PairKey(pool.TokenA, pool.TokenB)
	if _, ok := m.pools[key]; ok {
		return fmt.Errorf("%w: pool exists", domain.ErrConflict)
	}
	p := *pool
	m.pools[key] = &p
	return nil
}

type orderRepo MemoryStorage

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	m := (*MemoryStorage)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.orders[order.ID]
	o := *order
	m.orders[order.ID] = &o
	if !existed {
		m.orderLog = append(m.orderLog, order.ID)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	o := *order
	return &o, nil
}

func (r *orderRepo) OpenByPair(ctx context.Context, pair string) ([]*domain.Order, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var orders []*domain.Order
	for _, id := range m.orderLog {
		order := m.orders[id]
		if order.Pair == pair && order.Open() {
			o := *order
			orders = append(orders, &o)
		}
	}
	return orders, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	m := (*MemoryStorage)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	// Check and close under one lock so a committed fill is never
	// overwritten.
	if !order.Open() {
		return fmt.Errorf("%w: order %s is %s", domain.ErrConflict, id, order.Status)
	}
	order.Status = status
	return nil
}

type tradeRepo MemoryStorage

func (r *tradeRepo) ListByPair(ctx context.Context, pair string, limit int) ([]*domain.Trade, error) {
	m := (*MemoryStorage)(r)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var trades []*domain.Trade
	for i := len(m.trades) - 1; i >= 0 && len(trades) < limit; i-- {
		if m.trades[i].Pair == pair {
			t := *m.trades[i]
			trades = append(trades, &t)
		}
	}
	return trades, nil
}
