// Package wallet manages wallet lifecycle: key generation, address
// derivation, and lookup. The secret key is returned exactly once at
// creation and never stored.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/crypto/qsign"
	"github.com/qverse/engine/internal/infra/storage"
)

// Created is the one-time creation result carrying the secret key.
type Created struct {
	Wallet    *domain.Wallet
	SecretKey string
}

// Service handles wallet creation and lookup.
type Service struct {
	store storage.Store
	log   *slog.Logger
}

// NewService creates the wallet service.
func NewService(store storage.Store) *Service {
	return &Service{
		store: store,
		log:   slog.With("component", "wallet"),
	}
}

// Create generates a fresh keypair, derives the wallet address from the
// public key, and persists the public half. The secret key appears only
// in the returned value; losing it means losing the wallet.
func (s *Service) Create(ctx context.Context, userID string) (*Created, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", domain.ErrValidation)
	}

	publicKey, secretKey, err := qsign.GenerateKeys()
	if err != nil {
		return nil, err
	}
	address, err := qsign.DeriveAddress(publicKey)
	if err != nil {
		return nil, err
	}

	w := &domain.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Address:   address,
		PublicKey: publicKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Wallets().Save(ctx, w); err != nil {
		return nil, err
	}

	s.log.Info("wallet created", "id", w.ID, "address", w.Address)
	return &Created{Wallet: w, SecretKey: secretKey}, nil
}

// CreateAuditable is Create plus a second keypair registered as the
// wallet's audit key, enabling auditable confidential transfers.
func (s *Service) CreateAuditable(ctx context.Context, userID string) (*Created, string, error) {
	if userID == "" {
		return nil, "", fmt.Errorf("%w: missing user id", domain.ErrValidation)
	}

	publicKey, secretKey, err := qsign.GenerateKeys()
	if err != nil {
		return nil, "", err
	}
	auditPublic, auditSecret, err := qsign.GenerateKeys()
	if err != nil {
		return nil, "", err
	}
	address, err := qsign.DeriveAddress(publicKey)
	if err != nil {
		return nil, "", err
	}

	w := &domain.Wallet{
		ID:             uuid.NewString(),
		UserID:         userID,
		Address:        address,
		PublicKey:      publicKey,
		AuditPublicKey: auditPublic,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Wallets().Save(ctx, w); err != nil {
		return nil, "", err
	}

	s.log.Info("auditable wallet created", "id", w.ID, "address", w.Address)
	return &Created{Wallet: w, SecretKey: secretKey}, auditSecret, nil
}

// Get returns a wallet by ID.
func (s *Service) Get(ctx context.Context, walletID string) (*domain.Wallet, error) {
	return s.store.Wallets().GetByID(ctx, walletID)
}

// GetByAddress returns a wallet by its public address.
func (s *Service) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	return s.store.Wallets().GetByAddress(ctx, address)
}
