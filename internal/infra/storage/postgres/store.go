package postgres

import (
	"github.com/qverse/engine/internal/infra/storage"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db        *DB
	wallets   *WalletRepo
	balances  *BalanceRepo
	transfers *TransferRepo
	pools     *PoolRepo
	orders    *OrderRepo
	trades    *TradeRepo
}

// NewStore wires all repositories onto one connection pool.
func NewStore(db *DB) *Store {
	return &Store{
		db:        db,
		wallets:   NewWalletRepo(db),
		balances:  NewBalanceRepo(db),
		transfers: NewTransferRepo(db),
		pools:     NewPoolRepo(db),
		orders:    NewOrderRepo(db),
		trades:    NewTradeRepo(db),
	}
}

func (s *Store) Wallets() storage.WalletRepository     { return s.wallets }
func (s *Store) Balances() storage.BalanceRepository   { return s.balances }
func (s *Store) Transfers() storage.TransferRepository { return s.transfers }
func (s *Store) Pools() storage.PoolRepository         { return s.pools }
func (s *Store) Orders() storage.OrderRepository       { return s.orders }
func (s *Store) Trades() storage.TradeRepository       { return s.trades }
