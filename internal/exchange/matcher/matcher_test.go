package matcher

import (
	"testing"
	"time"

	"github.com/qverse/engine/internal/core/domain"
)

func order(id string, side domain.OrderSide, price, amount float64, at time.Time) *domain.Order {
	return &domain.Order{
		ID:        id,
		WalletID:  "w-" + id,
		Pair:      "QVR/POPEO",
		Side:      side,
		Type:      domain.OrderLimit,
		Price:     price,
		Amount:    amount,
		Status:    domain.OrderPending,
		CreatedAt: at,
	}
}

func TestMatch_CrossingOrdersTradeAtMakerPrice(t *testing.T) {
	now := time.Now()
	sell := order("s1", domain.OrderSell, 100, 10, now)
	buy := order("b1", domain.OrderBuy, 101, 10, now.Add(time.Second))

	trades := Match([]*domain.Order{buy}, []*domain.Order{sell})

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Price != 100 {
		t.Errorf("Expected trade at maker price 100, got %g", tr.Price)
	}
	if tr.Amount != 10 {
		t.Errorf("Expected amount 10, got %g", tr.Amount)
	}
	if tr.MakerWalletID != sell.WalletID || tr.TakerWalletID != buy.WalletID {
		t.Errorf("Wrong maker/taker attribution: %s / %s", tr.MakerWalletID, tr.TakerWalletID)
	}
	if buy.Status != domain.OrderFilled || sell.Status != domain.OrderFilled {
		t.Errorf("Expected both FILLED, got buy=%s sell=%s", buy.Status, sell.Status)
	}
	wantFee := 10 * 100 * TradeFeeRate
	if tr.Fee != wantFee {
		t.Errorf("Expected fee %g, got %g", wantFee, tr.Fee)
	}
}

func TestMatch_NoCross(t *testing.T) {
	now := time.Now()
	buy := order("b1", domain.OrderBuy, 99, 10, now)
	sell := order("s1", domain.OrderSell, 100, 10, now)

	trades := Match([]*domain.Order{buy}, []*domain.Order{sell})

	if len(trades) != 0 {
		t.Fatalf("Expected no trades, got %d", len(trades))
	}
	if buy.Status != domain.OrderPending || sell.Status != domain.OrderPending {
		t.Errorf("Orders must stay PENDING, got buy=%s sell=%s", buy.Status, sell.Status)
	}
}

func TestMatch_PartialFill(t *testing.T) {
	now := time.Now()
	buy := order("b1", domain.OrderBuy, 100, 10, now)
	sell := order("s1", domain.OrderSell, 100, 4, now)

	trades := Match([]*domain.Order{buy}, []*domain.Order{sell})

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	if trades[0].Amount != 4 {
		t.Errorf("Expected amount 4, got %g", trades[0].Amount)
	}
	if sell.Status != domain.OrderFilled {
		t.Errorf("Expected sell FILLED, got %s", sell.Status)
	}
	if buy.Status != domain.OrderPartiallyFilled {
		t.Errorf("Expected buy PARTIALLY_FILLED, got %s", buy.Status)
	}
	if buy.Filled != 4 {
		t.Errorf("Expected buy filled 4, got %g", buy.Filled)
	}
}

func TestMatch_OneBuySweepsManySells(t *testing.T) {
	now := time.Now()
	buy := order("b1", domain.OrderBuy, 105, 10, now)
	sells := []*domain.Order{
		order("s1", domain.OrderSell, 102, 4, now),
		order("s2", domain.OrderSell, 100, 4, now),
		order("s3", domain.OrderSell, 104, 4, now),
	}

	trades := Match([]*domain.Order{buy}, sells)

	if len(trades) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(trades))
	}
	// Cheapest ask fills first.
	wantPrices := []float64{100, 102, 104}
	wantAmounts := []float64{4, 4, 2}
	for i, tr := range trades {
		if tr.Price != wantPrices[i] {
			t.Errorf("Trade %d: expected price %g, got %g", i, wantPrices[i], tr.Price)
		}
		if tr.Amount != wantAmounts[i] {
			t.Errorf("Trade %d: expected amount %g, got %g", i, wantAmounts[i], tr.Amount)
		}
	}
	if buy.Status != domain.OrderFilled {
		t.Errorf("Expected buy FILLED, got %s", buy.Status)
	}
	if sells[2].Status != domain.OrderPartiallyFilled {
		t.Errorf("Expected most expensive sell PARTIALLY_FILLED, got %s", sells[2].Status)
	}
}

func TestMatch_TimePriorityBreaksPriceTies(t *testing.T) {
	now := time.Now()
	early := order("s-early", domain.OrderSell, 100, 5, now)
	late := order("s-late", domain.OrderSell, 100, 5, now.Add(time.Minute))
	buy := order("b1", domain.OrderBuy, 100, 5, now.Add(2*time.Minute))

	trades := Match([]*domain.Order{buy}, []*domain.Order{late, early})

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	if trades[0].SellOrderID != early.ID {
		t.Errorf("Expected earlier sell to fill first, got %s", trades[0].SellOrderID)
	}
	if late.Status != domain.OrderPending {
		t.Errorf("Later sell must stay PENDING, got %s", late.Status)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	now := time.Now()
	build := func() ([]*domain.Order, []*domain.Order) {
		buys := []*domain.Order{
			order("b1", domain.OrderBuy, 101, 3, now),
			order("b2", domain.OrderBuy, 103, 7, now.Add(time.Second)),
		}
		sells := []*domain.Order{
			order("s1", domain.OrderSell, 102, 5, now),
			order("s2", domain.OrderSell, 100, 6, now.Add(time.Second)),
		}
		return buys, sells
	}

	b1, s1 := build()
	b2, s2 := build()
	first := Match(b1, s1)
	second := Match(b2, s2)

	if len(first) != len(second) {
		t.Fatalf("Non-deterministic trade count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Price != second[i].Price || first[i].Amount != second[i].Amount ||
			first[i].BuyOrderID != second[i].BuyOrderID || first[i].SellOrderID != second[i].SellOrderID {
			t.Errorf("Trade %d differs between runs", i)
		}
	}
}

func TestMatch_FilledNeverExceedsAmount(t *testing.T) {
	now := time.Now()
	buys := []*domain.Order{
		order("b1", domain.OrderBuy, 110, 3.3, now),
		order("b2", domain.OrderBuy, 108, 2.7, now),
	}
	sells := []*domain.Order{
		order("s1", domain.OrderSell, 100, 1.1, now),
		order("s2", domain.OrderSell, 101, 4.4, now),
	}

	Match(buys, sells)

	for _, o := range append(buys, sells...) {
		if o.Filled < 0 || o.Filled > o.Amount {
			t.Errorf("Order %s: filled %g outside [0, %g]", o.ID, o.Filled, o.Amount)
		}
	}
}
