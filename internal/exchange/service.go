// Package exchange ties the pure market-making and matching math to pool
// state, order books, the ledger, and the market-data cache. All reserve
// mutations run under the same unit of work as the balance legs they
// imply, so a crashed swap can never leave the pool and the ledger
// disagreeing.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/exchange/amm"
	"github.com/qverse/engine/internal/exchange/matcher"
	"github.com/qverse/engine/internal/infra/storage"
	"github.com/qverse/engine/internal/metrics"
)

// DefaultPoolFeeRate applies when a pool is created without one.
const DefaultPoolFeeRate = 0.003

// MarketCache caches derived market data with bounded staleness. A nil
// cache disables caching; every method call must tolerate that.
type MarketCache interface {
	GetPrice(ctx context.Context, token string) (float64, bool)
	SetPrice(ctx context.Context, token string, price float64) error
	GetPool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, bool)
	SetPool(ctx context.Context, pool *domain.LiquidityPool) error
	InvalidatePool(ctx context.Context, tokenA, tokenB string) error
}

// Quote is the preview of a swap against current reserves.
type Quote struct {
	AmountOut float64
	Price     float64 // effective price: amountIn / amountOut
	FeeRate   float64
}

// SwapResult reports an executed swap.
type SwapResult struct {
	AmountIn  float64
	AmountOut float64
	Pair      string
}

// MatchResult reports one matching cycle over a pair's book.
type MatchResult struct {
	Trades  []domain.Trade
	Updated []*domain.Order
}

// Service coordinates pools, swaps, and the order book.
type Service struct {
	store storage.Store
	cache MarketCache
	log   *slog.Logger
}

// NewService creates the exchange service. cache may be nil.
func NewService(store storage.Store, cache MarketCache) *Service {
	return &Service{
		store: store,
		cache: cache,
		log:   slog.With("component", "exchange"),
	}
}

// CreatePool registers an empty pool for the pair and seeds it with the
// creator's initial deposit. The initial ratio sets the opening price.
func (s *Service) CreatePool(ctx context.Context, walletID, tokenA, tokenB string, amountA, amountB, feeRate float64) (*domain.LiquidityPool, error) {
	if err := validateTokens(tokenA, tokenB); err != nil {
		return nil, err
	}
	if feeRate == 0 {
		feeRate = DefaultPoolFeeRate
	}
	if feeRate < 0 || feeRate >= 1 {
		return nil, fmt.Errorf("%w: fee rate must be in [0, 1)", domain.ErrValidation)
	}
	if _, err := s.store.Pools().Get(ctx, tokenA, tokenB); err == nil {
		return nil, fmt.Errorf("%w: pool for %s already exists", domain.ErrConflict, domain.PairKey(tokenA, tokenB))
	}

	pool := &domain.LiquidityPool{
		ID:        uuid.NewString(),
		TokenA:    tokenA,
		TokenB:    tokenB,
		FeeRate:   feeRate,
		CreatedAt: time.Now().UTC(),
	}

	// Pool row and seed deposit commit together: a creator who cannot
	// fund the deposit leaves no empty pool squatting on the pair.
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.CreatePool(ctx, pool); err != nil {
		return nil, err
	}
	minted, err := s.applyDeposit(ctx, uow, pool, walletID, amountA, amountB)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.log.Info("pool created", "pair", domain.PairKey(tokenA, tokenB), "wallet", walletID, "minted", minted)
	return pool, nil
}

// AddLiquidity deposits both tokens at the pool ratio and mints LP
// balance for the provider. Returns the liquidity minted.
func (s *Service) AddLiquidity(ctx context.Context, walletID, tokenA, tokenB string, amountA, amountB float64) (float64, error) {
	if err := validateTokens(tokenA, tokenB); err != nil {
		return 0, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer uow.Rollback()

	pool, err := uow.Pool(ctx, tokenA, tokenB)
	if err != nil {
		return 0, err
	}
	// Orient the deposit to the pool's stored token order.
	if pool.TokenA != tokenA {
		amountA, amountB = amountB, amountA
	}

	minted, err := s.applyDeposit(ctx, uow, pool, walletID, amountA, amountB)
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}

	s.invalidatePool(ctx, pool)
	s.log.Info("liquidity added", "pair", domain.PairKey(tokenA, tokenB), "wallet", walletID, "minted", minted)
	return minted, nil
}

// applyDeposit stages one liquidity deposit: both debit legs, the LP
// mint, and the reserve update. amountA/amountB are already oriented to
// the pool's stored token order.
func (s *Service) applyDeposit(ctx context.Context, uow storage.UnitOfWork, pool *domain.LiquidityPool, walletID string, amountA, amountB float64) (float64, error) {
	minted, err := amm.AddLiquidity(pool.ReserveA, pool.ReserveB, amountA, amountB)
	if err != nil {
		return 0, err
	}

	if err := uow.Debit(ctx, walletID, pool.TokenA, amountA); err != nil {
		return 0, err
	}
	if err := uow.Debit(ctx, walletID, pool.TokenB, amountB); err != nil {
		return 0, err
	}
	if err := uow.Credit(ctx, walletID, pool.LPToken(), minted); err != nil {
		return 0, err
	}

	pool.ReserveA += amountA
	pool.ReserveB += amountB
	pool.TotalSupply += minted
	if err := uow.SavePool(ctx, pool); err != nil {
		return 0, err
	}
	return minted, nil
}

// RemoveLiquidity burns LP balance and pays out both reserves pro rata.
func (s *Service) RemoveLiquidity(ctx context.Context, walletID, tokenA, tokenB string, liquidity float64) (amountA, amountB float64, err error) {
	if err := validateTokens(tokenA, tokenB); err != nil {
		return 0, 0, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer uow.Rollback()

	pool, err := uow.Pool(ctx, tokenA, tokenB)
	if err != nil {
		return 0, 0, err
	}

	outA, outB, err := amm.RemoveLiquidity(pool.ReserveA, pool.ReserveB, liquidity, pool.TotalSupply)
	if err != nil {
		return 0, 0, err
	}

	if err := uow.Debit(ctx, walletID, pool.LPToken(), liquidity); err != nil {
		return 0, 0, err
	}
	if err := uow.Credit(ctx, walletID, pool.TokenA, outA); err != nil {
		return 0, 0, err
	}
	if err := uow.Credit(ctx, walletID, pool.TokenB, outB); err != nil {
		return 0, 0, err
	}

	pool.ReserveA -= outA
	pool.ReserveB -= outB
	pool.TotalSupply -= liquidity
	if err := uow.SavePool(ctx, pool); err != nil {
		return 0, 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, 0, err
	}

	s.invalidatePool(ctx, pool)
	s.log.Info("liquidity removed", "pair", domain.PairKey(tokenA, tokenB), "wallet", walletID, "burned", liquidity)
	return outA, outB, nil
}

// SwapQuote previews a swap against current reserves without touching
// state. The pool snapshot may be up to PoolTTL stale when cached.
func (s *Service) SwapQuote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (*Quote, error) {
	if err := validateTokens(tokenIn, tokenOut); err != nil {
		return nil, err
	}

	pool, err := s.cachedPool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	reserveIn, reserveOut := orient(pool, tokenIn)
	out, err := amm.SwapOut(reserveIn, reserveOut, amountIn, pool.FeeRate)
	if err != nil {
		return nil, err
	}
	return &Quote{AmountOut: out, Price: amountIn / out, FeeRate: pool.FeeRate}, nil
}

// Swap executes a swap: reserves and the trader's two balance legs move
// in one atomic unit. minAmountOut bounds slippage against the reserves
// actually locked, not the quoted ones.
func (s *Service) Swap(ctx context.Context, walletID, tokenIn, tokenOut string, amountIn, minAmountOut float64) (*SwapResult, error) {
	if err := validateTokens(tokenIn, tokenOut); err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	res, pool, err := s.applySwap(ctx, uow, walletID, tokenIn, tokenOut, amountIn, minAmountOut)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.invalidatePool(ctx, pool)
	metrics.SwapsTotal.WithLabelValues(res.Pair).Inc()
	s.log.Info("swap executed", "pair", res.Pair, "wallet", walletID, "in", amountIn, "out", res.AmountOut)
	return res, nil
}

// applySwap stages one swap inside an open unit of work: reserve shift
// plus the trader's two balance legs. The pool read reflects entries
// staged earlier in the same unit of work.
func (s *Service) applySwap(ctx context.Context, uow storage.UnitOfWork, walletID, tokenIn, tokenOut string, amountIn, minAmountOut float64) (*SwapResult, *domain.LiquidityPool, error) {
	pool, err := uow.Pool(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}

	reserveIn, reserveOut := orient(pool, tokenIn)
	out, err := amm.SwapOut(reserveIn, reserveOut, amountIn, pool.FeeRate)
	if err != nil {
		return nil, nil, err
	}
	if out < minAmountOut {
		return nil, nil, fmt.Errorf("%w: output %g below minimum %g", domain.ErrValidation, out, minAmountOut)
	}

	if err := uow.Debit(ctx, walletID, tokenIn, amountIn); err != nil {
		return nil, nil, err
	}
	if err := uow.Credit(ctx, walletID, tokenOut, out); err != nil {
		return nil, nil, err
	}

	if pool.TokenA == tokenIn {
		pool.ReserveA += amountIn
		pool.ReserveB -= out
	} else {
		pool.ReserveB += amountIn
		pool.ReserveA -= out
	}
	if err := uow.SavePool(ctx, pool); err != nil {
		return nil, nil, err
	}
	return &SwapResult{AmountIn: amountIn, AmountOut: out, Pair: domain.PairKey(tokenIn, tokenOut)}, pool, nil
}

// BatchSwap executes several swaps of the same input token in one atomic
// unit: each entry quotes against the reserves as moved by the entries
// before it, and a failure anywhere rolls the whole batch back.
func (s *Service) BatchSwap(ctx context.Context, walletID, tokenIn, tokenOut string, amounts []float64) ([]*SwapResult, error) {
	if len(amounts) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrValidation)
	}
	if err := validateTokens(tokenIn, tokenOut); err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	results := make([]*SwapResult, 0, len(amounts))
	var pool *domain.LiquidityPool
	for i, amountIn := range amounts {
		res, p, err := s.applySwap(ctx, uow, walletID, tokenIn, tokenOut, amountIn, 0)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		results = append(results, res)
		pool = p
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	pair := domain.PairKey(tokenIn, tokenOut)
	s.invalidatePool(ctx, pool)
	metrics.SwapsTotal.WithLabelValues(pair).Add(float64(len(results)))
	s.log.Info("batch swap executed", "pair", pair, "wallet", walletID, "swaps", len(results))
	return results, nil
}

// Price derives tokenA's price in tokenB from pool reserves.
func (s *Service) Price(ctx context.Context, tokenA, tokenB string) (float64, error) {
	if err := validateTokens(tokenA, tokenB); err != nil {
		return 0, err
	}
	if s.cache != nil && tokenB == domain.NativeToken {
		if price, ok := s.cache.GetPrice(ctx, tokenA); ok {
			return price, nil
		}
	}

	pool, err := s.cachedPool(ctx, tokenA, tokenB)
	if err != nil {
		return 0, err
	}
	reserveA, reserveB := orient(pool, tokenA)
	if reserveA <= 0 {
		return 0, fmt.Errorf("%w: pool has no reserves", domain.ErrValidation)
	}
	price := reserveB / reserveA

	if s.cache != nil && tokenB == domain.NativeToken {
		if err := s.cache.SetPrice(ctx, tokenA, price); err != nil {
			s.log.Warn("price cache write failed", "token", tokenA, "error", err)
		}
	}
	return price, nil
}

// SubmitOrder validates and persists a new limit order as PENDING. It
// does not trigger matching; MatchOrders runs the crossing cycle.
func (s *Service) SubmitOrder(ctx context.Context, order *domain.Order) error {
	if err := domain.ValidatePair(order.Pair); err != nil {
		return err
	}
	if base, quote, _ := strings.Cut(order.Pair, "/"); base == quote {
		return fmt.Errorf("%w: pair sides must differ", domain.ErrValidation)
	}
	if order.Side != domain.OrderBuy && order.Side != domain.OrderSell {
		return fmt.Errorf("%w: unknown order side %q", domain.ErrValidation, order.Side)
	}
	if order.Type != domain.OrderLimit {
		return fmt.Errorf("%w: only limit orders are supported", domain.ErrValidation)
	}
	if err := domain.ValidateAmount(order.Amount); err != nil {
		return err
	}
	if err := domain.ValidateAmount(order.Price); err != nil {
		return err
	}
	if order.WalletID == "" {
		return fmt.Errorf("%w: missing wallet id", domain.ErrValidation)
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Filled = 0
	order.Status = domain.OrderPending
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt

	if err := s.store.Orders().Save(ctx, order); err != nil {
		return err
	}
	s.log.Info("order accepted", "id", order.ID, "pair", order.Pair, "side", order.Side,
		"price", order.Price, "amount", order.Amount)
	return nil
}

// CancelOrder cancels an open order. Terminal orders are a conflict.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Open() {
		return fmt.Errorf("%w: order %s is %s", domain.ErrConflict, orderID, order.Status)
	}
	return s.store.Orders().UpdateStatus(ctx, orderID, domain.OrderCancelled)
}

// MatchOrders runs one crossing cycle over a pair's open book. The
// snapshot, the match, and the fill/trade writes share one unit of work,
// so a concurrent cancel or second cycle waits behind the order locks
// and then sees the committed book, never a stale one.
func (s *Service) MatchOrders(ctx context.Context, pair string) (*MatchResult, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	open, err := uow.OpenByPair(ctx, pair)
	if err != nil {
		return nil, err
	}

	var buys, sells []*domain.Order
	for _, o := range open {
		if o.Side == domain.OrderBuy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}

	trades := matcher.Match(buys, sells)
	if len(trades) == 0 {
		return &MatchResult{}, nil
	}

	touched := make([]*domain.Order, 0, len(open))
	for _, o := range open {
		if o.Status != domain.OrderPending {
			touched = append(touched, o)
		}
	}

	for _, o := range touched {
		if err := uow.SaveOrder(ctx, o); err != nil {
			return nil, err
		}
	}
	for i := range trades {
		if err := uow.InsertTrade(ctx, &trades[i]); err != nil {
			return nil, err
		}
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	metrics.TradesMatched.WithLabelValues(pair).Add(float64(len(trades)))
	s.log.Info("match cycle complete", "pair", pair, "trades", len(trades))
	return &MatchResult{Trades: trades, Updated: touched}, nil
}

// Trades returns the most recent trades for a pair.
func (s *Service) Trades(ctx context.Context, pair string, limit int) ([]*domain.Trade, error) {
	return s.store.Trades().ListByPair(ctx, pair, limit)
}

// Pool returns the current pool state for a pair, cache-aside.
func (s *Service) Pool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error) {
	if err := validateTokens(tokenA, tokenB); err != nil {
		return nil, err
	}
	return s.cachedPool(ctx, tokenA, tokenB)
}

func (s *Service) cachedPool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, error) {
	if s.cache != nil {
		if pool, ok := s.cache.GetPool(ctx, tokenA, tokenB); ok {
			return pool, nil
		}
	}
	pool, err := s.store.Pools().Get(ctx, tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetPool(ctx, pool); err != nil {
			s.log.Warn("pool cache write failed", "pair", domain.PairKey(tokenA, tokenB), "error", err)
		}
	}
	return pool, nil
}

func (s *Service) invalidatePool(ctx context.Context, pool *domain.LiquidityPool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePool(ctx, pool.TokenA, pool.TokenB); err != nil {
		s.log.Warn("pool cache invalidation failed", "pair", domain.PairKey(pool.TokenA, pool.TokenB), "error", err)
	}
}

func validateTokens(tokenA, tokenB string) error {
	if err := domain.ValidateToken(tokenA); err != nil {
		return err
	}
	if err := domain.ValidateToken(tokenB); err != nil {
		return err
	}
	if tokenA == tokenB {
		return fmt.Errorf("%w: tokens must differ", domain.ErrValidation)
	}
	return nil
}

// orient returns (reserve of token, reserve of the counter token).
func orient(pool *domain.LiquidityPool, token string) (float64, float64) {
	if pool.TokenA == token {
		return pool.ReserveA, pool.ReserveB
	}
	return pool.ReserveB, pool.ReserveA
}
