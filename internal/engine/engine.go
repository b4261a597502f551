// Package engine assembles the ledger and exchange services, storage,
// cache, and the operational HTTP server into one runnable unit.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qverse/engine/internal/core/config"
	"github.com/qverse/engine/internal/exchange"
	redisclient "github.com/qverse/engine/internal/infra/redis"
	"github.com/qverse/engine/internal/infra/storage"
	"github.com/qverse/engine/internal/infra/storage/memory"
	"github.com/qverse/engine/internal/infra/storage/postgres"
	"github.com/qverse/engine/internal/ledger"
	"github.com/qverse/engine/internal/server"
	"github.com/qverse/engine/internal/wallet"
)

// Engine is the main application struct managing service lifecycle.
type Engine struct {
	cfg    *config.AppConfig
	store  storage.Store
	db     *postgres.DB
	cache  *redisclient.Cache
	server *server.Server
	log    *slog.Logger

	Ledger   *ledger.Service
	Exchange *exchange.Service
	Wallets  *wallet.Service

	sweepMu    sync.Mutex
	sweepPairs map[string]struct{}
}

// New creates an Engine with all dependencies initialized. With no
// database URL configured it runs fully in memory, which backs local
// runs and tests.
func New(ctx context.Context, cfg *config.AppConfig) (*Engine, error) {
	e := &Engine{
		cfg:        cfg,
		log:        slog.Default(),
		sweepPairs: make(map[string]struct{}),
	}

	checkers := make(map[string]server.Checker)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(cfg.Database, "migrations"); err != nil {
			return nil, err
		}
		e.db = db
		e.store = postgres.NewStore(db)
		checkers["database"] = db
		slog.Info("Using PostgreSQL storage")
	} else {
		e.store = memory.NewMemoryStorage()
		slog.Info("Using Memory storage")
	}

	if cfg.Redis.URL != "" {
		cache, err := redisclient.NewCache(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, caching disabled", "error", err)
		} else {
			e.cache = cache
			checkers["cache"] = cache
		}
	}

	e.Ledger = ledger.NewService(e.store, cfg.Ledger)
	// A nil cache pointer must not hide behind a non-nil interface.
	if e.cache != nil {
		e.Exchange = exchange.NewService(e.store, e.cache)
	} else {
		e.Exchange = exchange.NewService(e.store, nil)
	}
	e.Wallets = wallet.NewService(e.store)
	e.server = server.NewServer(checkers, cfg.Server.Port)

	return e, nil
}

// Start launches the HTTP server and background workers.
func (e *Engine) Start(ctx context.Context) error {
	go func() {
		if err := e.server.Start(); err != nil {
			e.log.Error("Health server failed", "error", err)
		}
	}()

	if e.db != nil {
		e.db.StartMetricsCollector(ctx)
	}

	if e.cfg.Exchange.MatchIntervalSeconds > 0 {
		go e.runMatchSweeper(ctx, time.Duration(e.cfg.Exchange.MatchIntervalSeconds)*time.Second)
	}

	return nil
}

// Stop shuts the engine down gracefully.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("Stopping engine...")

	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if e.db != nil {
		defer e.db.Close()
	}
	return e.server.Stop(ctx)
}

// WatchPair registers a pair for the background matching sweep.
func (e *Engine) WatchPair(pair string) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	e.sweepPairs[pair] = struct{}{}
}

func (e *Engine) runMatchSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepMu.Lock()
			pairs := make([]string, 0, len(e.sweepPairs))
			for p := range e.sweepPairs {
				pairs = append(pairs, p)
			}
			e.sweepMu.Unlock()

			for _, pair := range pairs {
				if _, err := e.Exchange.MatchOrders(ctx, pair); err != nil {
					e.log.Error("Match sweep failed", "pair", pair, "error", err)
				}
			}
		}
	}
}
