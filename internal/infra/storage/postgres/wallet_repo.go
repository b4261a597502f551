package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qverse/engine/internal/core/domain"
)

// WalletRepo implements storage.WalletRepository using PostgreSQL.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a new PostgreSQL wallet repository.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

type walletRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Address        string         `db:"address"`
	PublicKey      string         `db:"public_key"`
	AuditPublicKey sql.NullString `db:"audit_public_key"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *walletRow) toDomain() *domain.Wallet {
	w := &domain.Wallet{
		ID:        r.ID,
		UserID:    r.UserID,
		Address:   r.Address,
		PublicKey: r.PublicKey,
		CreatedAt: r.CreatedAt,
	}
	if r.AuditPublicKey.Valid {
		w.AuditPublicKey = r.AuditPublicKey.String
	}
	return w
}

// Save persists a wallet. Only the public half of the key bundle is ever
// written.
func (r *WalletRepo) Save(ctx context.Context, wallet *domain.Wallet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, address, public_key, audit_public_key, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		wallet.ID, wallet.UserID, wallet.Address, wallet.PublicKey,
		wallet.AuditPublicKey, wallet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", mapError(err))
	}
	return nil
}

// GetByID retrieves a wallet by id.
func (r *WalletRepo) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	var row walletRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, user_id, address, public_key, audit_public_key, created_at
		 FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", mapError(err))
	}
	return row.toDomain(), nil
}

// GetByAddress retrieves a wallet by address.
func (r *WalletRepo) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	var row walletRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, user_id, address, public_key, audit_public_key, created_at
		 FROM wallets WHERE address = $1`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: address %s", domain.ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", mapError(err))
	}
	return row.toDomain(), nil
}
