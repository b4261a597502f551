// Package matcher crosses resting limit orders under price-time priority.
// The match is a deterministic single pass; it mutates order fills in
// place and emits immutable trades, leaving persistence to the caller.
package matcher

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/qverse/engine/internal/core/domain"
)

// TradeFeeRate is charged on every fill's notional value.
const TradeFeeRate = 0.001

// epsilon guards float fill accounting; below this a remainder counts as
// fully filled.
const epsilon = 1e-9

// Match crosses buys against sells. Buys are ranked by price descending,
// sells ascending, ties broken by earlier creation. While the best buy
// price >= best sell price, a trade executes at the sell (maker) price
// for the smaller remaining quantity. Orders are updated in place;
// an order is never left with a partially applied trade.
func Match(buys, sells []*domain.Order) []domain.Trade {
	sortBuys(buys)
	sortSells(sells)

	var trades []domain.Trade
	buyIdx, sellIdx := 0, 0

	for buyIdx < len(buys) && sellIdx < len(sells) {
		buy, sell := buys[buyIdx], sells[sellIdx]
		if buy.Price < sell.Price {
			break
		}

		amount := min(buy.Remaining(), sell.Remaining())
		if amount <= 0 {
			break
		}

		// The taker crosses at the quote already posted; never worse for
		// the maker.
		price := sell.Price
		trades = append(trades, domain.Trade{
			ID:            uuid.NewString(),
			BuyOrderID:    buy.ID,
			SellOrderID:   sell.ID,
			Pair:          buy.Pair,
			Price:         price,
			Amount:        amount,
			MakerWalletID: sell.WalletID,
			TakerWalletID: buy.WalletID,
			Fee:           amount * price * TradeFeeRate,
			CreatedAt:     time.Now().UTC(),
		})

		fill(buy, amount)
		fill(sell, amount)
		if buy.Status == domain.OrderFilled {
			buyIdx++
		}
		if sell.Status == domain.OrderFilled {
			sellIdx++
		}
	}

	return trades
}

func fill(o *domain.Order, amount float64) {
	o.Filled += amount
	o.UpdatedAt = time.Now().UTC()
	if o.Remaining() <= epsilon {
		o.Filled = o.Amount
		o.Status = domain.OrderFilled
	} else {
		o.Status = domain.OrderPartiallyFilled
	}
}

func sortBuys(orders []*domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			return orders[i].Price > orders[j].Price
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func sortSells(orders []*domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			return orders[i].Price < orders[j].Price
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
