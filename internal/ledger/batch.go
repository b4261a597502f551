package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/metrics"
)

// BatchTransfer settles a batch of signed transfers atomically: every
// transfer is authorized and the full balance impact validated before
// any mutation, so the batch either settles completely or not at all.
// Returns the settled transfer IDs in input order.
func (s *Service) BatchTransfer(ctx context.Context, records []*domain.TransferRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrValidation)
	}
	if len(records) > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d exceeds limit %d",
			domain.ErrValidation, len(records), s.cfg.MaxBatchSize)
	}

	// Phase 1: validate and authorize every transfer. All signature and
	// proof verification happens here, before the transaction opens.
	for i, record := range records {
		if record.Kind == "" {
			record.Kind = domain.TransferPublic
		}
		if err := s.validate(record); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		if err := s.authorize(ctx, record); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
	}

	// Aggregate the required debit per (wallet, token) so each sender's
	// total outflow is checked against one consistent balance snapshot.
	type debitKey struct {
		wallet string
		token  string
	}
	required := make(map[debitKey]float64)
	for _, record := range records {
		k := debitKey{record.FromWalletID, record.Token}
		required[k] += record.Amount + record.Fee
	}
	keys := make([]debitKey, 0, len(required))
	for k := range required {
		keys = append(keys, k)
	}
	// Deterministic lock order across concurrent batches.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].wallet != keys[j].wallet {
			return keys[i].wallet < keys[j].wallet
		}
		return keys[i].token < keys[j].token
	})

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	// Phase 2: check every sender's aggregate outflow under the lock.
	for _, k := range keys {
		balance, err := uow.Balance(ctx, k.wallet, k.token)
		if err != nil {
			return nil, err
		}
		if balance < required[k] {
			return nil, fmt.Errorf("%w: wallet %s needs %g %s, has %g",
				domain.ErrInsufficientFunds, k.wallet, required[k], k.token, balance)
		}
	}

	// Phase 3: execute. Any failure rolls back the whole batch, and no
	// record may keep a COMPLETED status the rollback made untrue.
	now := time.Now().UTC()
	ids := make([]string, 0, len(records))
	for i, record := range records {
		record.Status = domain.TransferCompleted
		record.CreatedAt = now
		if err := uow.Debit(ctx, record.FromWalletID, record.Token, record.Amount+record.Fee); err != nil {
			markFailed(records)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		if err := uow.Credit(ctx, record.ToWalletID, record.Token, record.Amount); err != nil {
			markFailed(records)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		if err := uow.InsertTransfer(ctx, record); err != nil {
			markFailed(records)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		ids = append(ids, record.ID)
	}

	if err := uow.Commit(); err != nil {
		markFailed(records)
		return nil, err
	}

	metrics.BatchSize.Observe(float64(len(records)))
	s.log.Info("batch settled", "transfers", len(records))
	return ids, nil
}

func markFailed(records []*domain.TransferRecord) {
	for _, r := range records {
		if r.Status == domain.TransferCompleted {
			r.Status = domain.TransferFailed
		}
	}
}
