// Package ledger implements the authoritative balance ledger: atomic
// transfers, staking, and batch settlement. Every mutation is authorized
// against the sender wallet's stored public key before it touches
// storage, and executes inside a single storage transaction.
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/crypto/qsign"
	"github.com/qverse/engine/internal/crypto/zkp"
	"github.com/qverse/engine/internal/infra/storage"
	"github.com/qverse/engine/internal/metrics"
)

// Config holds ledger tuning knobs.
type Config struct {
	// MaxBatchSize bounds how many transfers one batch may hold, which
	// bounds how long the batch transaction is open.
	MaxBatchSize int `yaml:"max_batch_size"`
}

// DefaultMaxBatchSize is applied when the config leaves it unset.
const DefaultMaxBatchSize = 100

// Service is the LedgerStore: the only component that mutates balances.
type Service struct {
	store storage.Store
	cfg   Config
	log   *slog.Logger
}

// NewService creates the ledger service.
func NewService(store storage.Store, cfg Config) *Service {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Service{
		store: store,
		cfg:   cfg,
		log:   slog.With("component", "ledger"),
	}
}

// GetBalance returns the liquid balance for (wallet, token). An absent
// row is zero; nothing is created implicitly.
func (s *Service) GetBalance(ctx context.Context, walletID, token string) (float64, error) {
	if err := domain.ValidateToken(token); err != nil {
		return 0, err
	}
	return s.store.Balances().Get(ctx, walletID, token)
}

// GetStake returns the staked native-token amount for a wallet.
func (s *Service) GetStake(ctx context.Context, walletID string) (float64, error) {
	return s.store.Balances().GetStake(ctx, walletID)
}

// History returns a wallet's most recent transfers.
func (s *Service) History(ctx context.Context, walletID string, limit int) ([]*domain.TransferRecord, error) {
	return s.store.Transfers().ListByWallet(ctx, walletID, limit)
}

// Transfer settles a signed transfer. Authorization (signature and, for
// confidential kinds, range proof) is checked before any mutation; the
// debit-credit-record sequence then runs in one atomic unit. A failure
// at any step leaves the ledger untouched.
func (s *Service) Transfer(ctx context.Context, record *domain.TransferRecord) error {
	start := time.Now()
	kind := record.Kind
	if kind == "" {
		kind = domain.TransferPublic
		record.Kind = kind
	}

	if err := s.validate(record); err != nil {
		metrics.TransfersTotal.WithLabelValues(string(kind), "rejected").Inc()
		return err
	}
	if err := s.authorize(ctx, record); err != nil {
		metrics.TransfersTotal.WithLabelValues(string(kind), "rejected").Inc()
		return err
	}

	// The persisted record says COMPLETED; if settlement fails nothing is
	// persisted and the caller's record must not claim otherwise.
	record.Status = domain.TransferCompleted
	record.CreatedAt = time.Now().UTC()

	err := s.settle(ctx, record)
	if err != nil {
		record.Status = domain.TransferFailed
		metrics.TransfersTotal.WithLabelValues(string(kind), "failed").Inc()
		return err
	}

	metrics.TransfersTotal.WithLabelValues(string(kind), "completed").Inc()
	metrics.TransferLatency.Observe(time.Since(start).Seconds())
	s.log.Info("transfer settled",
		"id", record.ID, "from", record.FromWalletID, "to", record.ToWalletID,
		"token", record.Token, "kind", string(kind))
	return nil
}

// Stake moves liquid native-token balance into the wallet's stake.
func (s *Service) Stake(ctx context.Context, walletID string, amount float64) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.Debit(ctx, walletID, domain.NativeToken, amount); err != nil {
		return err
	}
	if err := uow.AddStake(ctx, walletID, amount); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.log.Info("stake locked", "wallet", walletID, "amount", amount)
	return nil
}

func (s *Service) validate(record *domain.TransferRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.FromWalletID == "" || record.ToWalletID == "" {
		return fmt.Errorf("%w: missing wallet id", domain.ErrValidation)
	}
	if record.FromWalletID == record.ToWalletID {
		return fmt.Errorf("%w: self-transfer", domain.ErrValidation)
	}
	if err := domain.ValidateToken(record.Token); err != nil {
		return err
	}
	if err := domain.ValidateAmount(record.Amount); err != nil {
		return err
	}
	if err := domain.ValidateFee(record.Fee); err != nil {
		return err
	}
	switch record.Kind {
	case domain.TransferPublic, domain.TransferPrivate, domain.TransferAuditablePrivate:
		return nil
	default:
		return fmt.Errorf("%w: unknown transfer kind %q", domain.ErrValidation, record.Kind)
	}
}

// authorize dispatches on the transfer kind; each case is an isolated
// validation path. All cryptographic work happens here, before any
// storage transaction is open.
func (s *Service) authorize(ctx context.Context, record *domain.TransferRecord) error {
	sender, err := s.store.Wallets().GetByID(ctx, record.FromWalletID)
	if err != nil {
		return err
	}

	msg := qsign.CanonicalTransferMessage(
		record.FromWalletID, record.ToWalletID, record.Token,
		record.Amount, record.Fee, record.ID,
	)
	if !qsign.Verify(msg, record.Signature, sender.PublicKey) {
		metrics.SignatureVerifications.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: transfer signature does not match sender key", qsign.ErrVerificationFailed)
	}
	metrics.SignatureVerifications.WithLabelValues("valid").Inc()

	switch record.Kind {
	case domain.TransferPublic:
		return nil

	case domain.TransferPrivate:
		return s.verifyConfidential(record)

	case domain.TransferAuditablePrivate:
		if sender.AuditPublicKey == "" {
			return fmt.Errorf("%w: wallet has no registered audit key", domain.ErrValidation)
		}
		return s.verifyConfidential(record)

	default:
		return fmt.Errorf("%w: unknown transfer kind", domain.ErrValidation)
	}
}

// verifyConfidential checks the Pedersen commitment's range proof so a
// negative committed amount can never mint value.
func (s *Service) verifyConfidential(record *domain.TransferRecord) error {
	if record.Commitment == "" || record.Proof == "" {
		return fmt.Errorf("%w: confidential transfer requires commitment and proof", domain.ErrValidation)
	}
	commitment, err := base64.StdEncoding.DecodeString(record.Commitment)
	if err != nil {
		return qsign.ErrBadEncoding
	}
	proof, err := base64.StdEncoding.DecodeString(record.Proof)
	if err != nil {
		return qsign.ErrBadEncoding
	}
	// The proof must stay within the ledger's range policy; a wider
	// bit size is rejected even when internally valid.
	if !zkp.VerifyRangeProof(proof, commitment, zkp.DefaultBitSize) {
		metrics.ProofVerifications.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: range proof rejected", domain.ErrCrypto)
	}
	metrics.ProofVerifications.WithLabelValues("valid").Inc()
	return nil
}

func (s *Service) settle(ctx context.Context, record *domain.TransferRecord) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	// Sender pays amount + fee; the fee is burned, not credited.
	if err := uow.Debit(ctx, record.FromWalletID, record.Token, record.Amount+record.Fee); err != nil {
		return err
	}
	if err := uow.Credit(ctx, record.ToWalletID, record.Token, record.Amount); err != nil {
		return err
	}
	if err := uow.InsertTransfer(ctx, record); err != nil {
		return err
	}
	return uow.Commit()
}
