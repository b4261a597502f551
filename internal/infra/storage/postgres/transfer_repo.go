package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qverse/engine/internal/core/domain"
)

// TransferRepo implements storage.TransferRepository using PostgreSQL.
type TransferRepo struct {
	db *DB
}

// NewTransferRepo creates a new PostgreSQL transfer repository.
func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

type transferRow struct {
	ID           string    `db:"id"`
	FromWalletID string    `db:"from_wallet_id"`
	ToWalletID   string    `db:"to_wallet_id"`
	Token        string    `db:"token_symbol"`
	Amount       float64   `db:"amount"`
	Fee          float64   `db:"fee"`
	Kind         string    `db:"kind"`
	Signature    string    `db:"signature"`
	Commitment   string    `db:"commitment"`
	Proof        string    `db:"proof"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

func (t *transferRow) toDomain() *domain.TransferRecord {
	return &domain.TransferRecord{
		ID:           t.ID,
		FromWalletID: t.FromWalletID,
		ToWalletID:   t.ToWalletID,
		Token:        t.Token,
		Amount:       t.Amount,
		Fee:          t.Fee,
		Kind:         domain.TransferKind(t.Kind),
		Signature:    t.Signature,
		Commitment:   t.Commitment,
		Proof:        t.Proof,
		Status:       domain.TransferStatus(t.Status),
		CreatedAt:    t.CreatedAt,
	}
}

const transferColumns = `id, from_wallet_id, to_wallet_id, token_symbol, amount, fee, kind, signature, commitment, proof, status, created_at`

// GetByID retrieves a transfer record.
func (r *TransferRepo) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	var row transferRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", mapError(err))
	}
	return row.toDomain(), nil
}

// ListByWallet returns a wallet's most recent transfers, newest first.
func (r *TransferRepo) ListByWallet(ctx context.Context, walletID string, limit int) ([]*domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []transferRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+transferColumns+` FROM transfers
		 WHERE from_wallet_id = $1 OR to_wallet_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", mapError(err))
	}

	records := make([]*domain.TransferRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toDomain())
	}
	return records, nil
}
