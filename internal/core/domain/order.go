package domain

import "time"

type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderLimit  OrderType = "LIMIT"
	OrderMarket OrderType = "MARKET"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// Order is a resting or incoming limit order. Filled only ever grows and
// never exceeds Amount; Status is derived from Filled vs Amount.
type Order struct {
	ID        string
	WalletID  string
	Pair      string // "QVR/POPEO"
	Side      OrderSide
	Type      OrderType
	Price     float64
	Amount    float64
	Filled    float64
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Amount - o.Filled
}

// Open reports whether the order can still trade.
func (o *Order) Open() bool {
	return o.Status == OrderPending || o.Status == OrderPartiallyFilled
}

// Trade is an immutable fill between a resting (maker) and an incoming
// (taker) order. Price is always the maker's quoted price.
type Trade struct {
	ID            string
	BuyOrderID    string
	SellOrderID   string
	Pair          string
	Price         float64
	Amount        float64
	MakerWalletID string
	TakerWalletID string
	Fee           float64
	CreatedAt     time.Time
}
