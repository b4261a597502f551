package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/infra/storage/memory"
)

func newWallet(t *testing.T, store *memory.MemoryStorage) string {
	t.Helper()
	w := &domain.Wallet{
		ID:        uuid.NewString(),
		UserID:    "u-test",
		Address:   "qvr" + uuid.NewString(),
		PublicKey: "pk",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Wallets().Save(context.Background(), w))
	return w.ID
}

func fundedPool(t *testing.T, store *memory.MemoryStorage, svc *Service) string {
	t.Helper()
	ctx := context.Background()
	provider := newWallet(t, store)
	require.NoError(t, store.Balances().Set(ctx, provider, "QVR", 10000))
	require.NoError(t, store.Balances().Set(ctx, provider, "POPEO", 10000))
	_, err := svc.CreatePool(ctx, provider, "QVR", "POPEO", 1000, 2000, 0.003)
	require.NoError(t, err)
	return provider
}

func TestCreatePool(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)

	provider := fundedPool(t, store, svc)

	pool, err := svc.Pool(ctx, "QVR", "POPEO")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, orientReserve(pool, "QVR"))
	assert.Equal(t, 2000.0, orientReserve(pool, "POPEO"))
	assert.InDelta(t, 1414.21, pool.TotalSupply, 0.01)

	// Provider paid the deposit and holds the minted LP balance.
	lp, err := store.Balances().Get(ctx, provider, pool.LPToken())
	require.NoError(t, err)
	assert.InDelta(t, 1414.21, lp, 0.01)
	qvr, _ := store.Balances().Get(ctx, provider, "QVR")
	assert.Equal(t, 9000.0, qvr)

	// Second pool for the same pair is a conflict.
	_, err = svc.CreatePool(ctx, provider, "POPEO", "QVR", 1, 2, 0.003)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreatePool_FailedSeedLeavesNoPool(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)

	creator := newWallet(t, store) // cannot afford the seed deposit
	_, err := svc.CreatePool(ctx, creator, "QVR", "POPEO", 1000, 2000, 0.003)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// No zero-reserve pool may squat on the pair.
	_, err = svc.Pool(ctx, "QVR", "POPEO")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A funded retry takes the pair normally.
	require.NoError(t, store.Balances().Set(ctx, creator, "QVR", 1000))
	require.NoError(t, store.Balances().Set(ctx, creator, "POPEO", 2000))
	pool, err := svc.CreatePool(ctx, creator, "QVR", "POPEO", 1000, 2000, 0.003)
	require.NoError(t, err)
	assert.InDelta(t, 1414.21, pool.TotalSupply, 0.01)
}

func orientReserve(pool *domain.LiquidityPool, token string) float64 {
	if pool.TokenA == token {
		return pool.ReserveA
	}
	return pool.ReserveB
}

func TestSwap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	trader := newWallet(t, store)
	require.NoError(t, store.Balances().Set(ctx, trader, "QVR", 100))

	before, err := svc.Pool(ctx, "QVR", "POPEO")
	require.NoError(t, err)
	kBefore := before.ReserveA * before.ReserveB

	res, err := svc.Swap(ctx, trader, "QVR", "POPEO", 100, 0)
	require.NoError(t, err)
	assert.InDelta(t, 181.322, res.AmountOut, 0.001)

	qvr, _ := store.Balances().Get(ctx, trader, "QVR")
	popeo, _ := store.Balances().Get(ctx, trader, "POPEO")
	assert.Equal(t, 0.0, qvr)
	assert.InDelta(t, 181.322, popeo, 0.001)

	after, err := svc.Pool(ctx, "QVR", "POPEO")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.ReserveA*after.ReserveB, kBefore)
}

func TestSwap_SlippageGuard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	trader := newWallet(t, store)
	require.NoError(t, store.Balances().Set(ctx, trader, "QVR", 100))

	_, err := svc.Swap(ctx, trader, "QVR", "POPEO", 100, 200)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Nothing moved.
	qvr, _ := store.Balances().Get(ctx, trader, "QVR")
	assert.Equal(t, 100.0, qvr)
}

func TestSwap_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	trader := newWallet(t, store)
	_, err := svc.Swap(ctx, trader, "QVR", "POPEO", 100, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	pool, err := svc.Pool(ctx, "QVR", "POPEO")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, orientReserve(pool, "QVR"))
}

func TestSwapQuote_DoesNotMutate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	quote, err := svc.SwapQuote(ctx, "QVR", "POPEO", 100)
	require.NoError(t, err)
	assert.InDelta(t, 181.322, quote.AmountOut, 0.001)
	assert.Equal(t, 0.003, quote.FeeRate)

	pool, err := svc.Pool(ctx, "QVR", "POPEO")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, orientReserve(pool, "QVR"))
}

func TestBatchSwap_UsesMovedReserves(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	trader := newWallet(t, store)
	require.NoError(t, store.Balances().Set(ctx, trader, "QVR", 200))

	results, err := svc.BatchSwap(ctx, trader, "QVR", "POPEO", []float64{100, 100})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The second swap quotes against shifted reserves, so it yields less.
	assert.Less(t, results[1].AmountOut, results[0].AmountOut)
}

func TestBatchSwap_MidBatchFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	trader := newWallet(t, store)
	require.NoError(t, store.Balances().Set(ctx, trader, "QVR", 100))

	// The second entry overdraws the trader; the first must not stay
	// settled.
	_, err := svc.BatchSwap(ctx, trader, "QVR", "POPEO", []float64{60, 60})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	qvr, _ := store.Balances().Get(ctx, trader, "QVR")
	popeo, _ := store.Balances().Get(ctx, trader, "POPEO")
	assert.Equal(t, 100.0, qvr)
	assert.Equal(t, 0.0, popeo)

	pool, err := svc.Pool(ctx, "QVR", "POPEO")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, orientReserve(pool, "QVR"))
	assert.Equal(t, 2000.0, orientReserve(pool, "POPEO"))
}

func TestAddRemoveLiquidity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	provider := fundedPool(t, store, svc)

	minted, err := svc.AddLiquidity(ctx, provider, "QVR", "POPEO", 100, 200)
	require.NoError(t, err)
	// (100*2000 + 200*1000) / (2*2000)
	assert.InDelta(t, 100, minted, 1e-9)

	// share = 100 / (1414.21 + 100), reserves now 1100/2200
	outA, outB, err := svc.RemoveLiquidity(ctx, provider, "QVR", "POPEO", minted)
	require.NoError(t, err)
	assert.InDelta(t, 72.64, outA, 0.01)
	assert.InDelta(t, 145.29, outB, 0.01)

	// Off-ratio deposit is rejected.
	_, err = svc.AddLiquidity(ctx, provider, "QVR", "POPEO", 100, 300)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPrice(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	fundedPool(t, store, svc)

	price, err := svc.Price(ctx, "POPEO", "QVR")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, price, 1e-9) // 1000 QVR / 2000 POPEO
}

func TestSubmitAndMatchOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)

	seller := newWallet(t, store)
	buyer := newWallet(t, store)

	sell := &domain.Order{
		WalletID: seller,
		Pair:     "QVR/POPEO",
		Side:     domain.OrderSell,
		Type:     domain.OrderLimit,
		Price:    100,
		Amount:   10,
	}
	require.NoError(t, svc.SubmitOrder(ctx, sell))

	buy := &domain.Order{
		WalletID: buyer,
		Pair:     "QVR/POPEO",
		Side:     domain.OrderBuy,
		Type:     domain.OrderLimit,
		Price:    101,
		Amount:   10,
	}
	require.NoError(t, svc.SubmitOrder(ctx, buy))

	result, err := svc.MatchOrders(ctx, "QVR/POPEO")
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, 100.0, result.Trades[0].Price)
	assert.Equal(t, 10.0, result.Trades[0].Amount)

	// Fills persisted.
	stored, err := store.Orders().GetByID(ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, stored.Status)

	trades, err := svc.Trades(ctx, "QVR/POPEO", 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	// The book is now empty; another cycle is a no-op.
	result, err = svc.MatchOrders(ctx, "QVR/POPEO")
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestMatchOrders_CancelledOrderStaysCancelled(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)

	seller := newWallet(t, store)
	buyer := newWallet(t, store)

	sell := &domain.Order{WalletID: seller, Pair: "QVR/POPEO", Side: domain.OrderSell, Type: domain.OrderLimit, Price: 100, Amount: 10}
	require.NoError(t, svc.SubmitOrder(ctx, sell))
	buy := &domain.Order{WalletID: buyer, Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 101, Amount: 10}
	require.NoError(t, svc.SubmitOrder(ctx, buy))

	require.NoError(t, svc.CancelOrder(ctx, sell.ID))

	result, err := svc.MatchOrders(ctx, "QVR/POPEO")
	require.NoError(t, err)
	assert.Empty(t, result.Trades)

	stored, err := store.Orders().GetByID(ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, stored.Status)

	rest, err := store.Orders().GetByID(ctx, buy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, rest.Status)
}

func TestMatchOrders_ConcurrentCyclesEmitOneTrade(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)

	seller := newWallet(t, store)
	buyer := newWallet(t, store)

	sell := &domain.Order{WalletID: seller, Pair: "QVR/POPEO", Side: domain.OrderSell, Type: domain.OrderLimit, Price: 100, Amount: 10}
	require.NoError(t, svc.SubmitOrder(ctx, sell))
	buy := &domain.Order{WalletID: buyer, Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 101, Amount: 10}
	require.NoError(t, svc.SubmitOrder(ctx, buy))

	// Two cycles over the same book: exactly one may cross it.
	type cycle struct {
		trades int
		err    error
	}
	out := make(chan cycle, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := svc.MatchOrders(ctx, "QVR/POPEO")
			if err != nil {
				out <- cycle{err: err}
				return
			}
			out <- cycle{trades: len(res.Trades)}
		}()
	}
	total := 0
	for i := 0; i < 2; i++ {
		c := <-out
		require.NoError(t, c.err)
		total += c.trades
	}
	assert.Equal(t, 1, total)

	trades, err := svc.Trades(ctx, "QVR/POPEO", 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestMatchOrders_CancelRaceNeverResurrectsOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)

	seller := newWallet(t, store)
	buyer := newWallet(t, store)

	sell := &domain.Order{WalletID: seller, Pair: "QVR/POPEO", Side: domain.OrderSell, Type: domain.OrderLimit, Price: 100, Amount: 10}
	require.NoError(t, svc.SubmitOrder(ctx, sell))
	buy := &domain.Order{WalletID: buyer, Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 101, Amount: 10}
	require.NoError(t, svc.SubmitOrder(ctx, buy))

	cancelDone := make(chan error, 1)
	go func() { cancelDone <- svc.CancelOrder(ctx, sell.ID) }()
	_, err := svc.MatchOrders(ctx, "QVR/POPEO")
	require.NoError(t, err)
	cancelErr := <-cancelDone

	stored, err := store.Orders().GetByID(ctx, sell.ID)
	require.NoError(t, err)
	trades, err := svc.Trades(ctx, "QVR/POPEO", 10)
	require.NoError(t, err)

	// Whichever side won, the loser must have observed it: a cancelled
	// order never trades, and a filled order never flips to cancelled.
	switch stored.Status {
	case domain.OrderCancelled:
		require.NoError(t, cancelErr)
		assert.Empty(t, trades)
	case domain.OrderFilled:
		assert.ErrorIs(t, cancelErr, domain.ErrConflict)
		assert.Len(t, trades, 1)
	default:
		t.Fatalf("order must end CANCELLED or FILLED, got %s", stored.Status)
	}
}

func TestSubmitOrder_Validation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	wallet := newWallet(t, store)

	tests := []struct {
		name  string
		order *domain.Order
	}{
		{"bad pair", &domain.Order{WalletID: wallet, Pair: "QVR", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 1, Amount: 1}},
		{"same sides", &domain.Order{WalletID: wallet, Pair: "QVR/QVR", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 1, Amount: 1}},
		{"bad side", &domain.Order{WalletID: wallet, Pair: "QVR/POPEO", Side: "HOLD", Type: domain.OrderLimit, Price: 1, Amount: 1}},
		{"market order", &domain.Order{WalletID: wallet, Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderMarket, Price: 1, Amount: 1}},
		{"zero amount", &domain.Order{WalletID: wallet, Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 1, Amount: 0}},
		{"zero price", &domain.Order{WalletID: wallet, Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 0, Amount: 1}},
		{"no wallet", &domain.Order{Pair: "QVR/POPEO", Side: domain.OrderBuy, Type: domain.OrderLimit, Price: 1, Amount: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SubmitOrder(ctx, tt.order)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	svc := NewService(store, nil)
	wallet := newWallet(t, store)

	order := &domain.Order{
		WalletID: wallet,
		Pair:     "QVR/POPEO",
		Side:     domain.OrderSell,
		Type:     domain.OrderLimit,
		Price:    100,
		Amount:   10,
	}
	require.NoError(t, svc.SubmitOrder(ctx, order))
	require.NoError(t, svc.CancelOrder(ctx, order.ID))

	stored, err := store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, stored.Status)

	// Cancelling twice is a conflict.
	err = svc.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}
