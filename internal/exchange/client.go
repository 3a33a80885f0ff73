package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is a quote-denominated market order with optional protective
// levels. ClientOrderID makes retries idempotent-safe on the exchange side;
// an ambiguous response must be treated as "unknown", not "failed".
type OrderRequest struct {
	ClientOrderID   string           `json:"client_order_id"`
	Symbol          string           `json:"symbol"`
	Side            string           `json:"side"` // buy|sell
	Type            string           `json:"type"` // market|limit
	QuoteAmountUSD  decimal.Decimal  `json:"quote_amount_usd"`
	StopLoss        *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit      *decimal.Decimal `json:"take_profit,omitempty"`
	TrailingStopPct *float64         `json:"trailing_stop_pct,omitempty"`
	Leverage        int              `json:"leverage,omitempty"`
}

// Fill is the exchange-reported execution result. Price, quantity and fee
// are required so realized P&L can be computed downstream.
type Fill struct {
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Fee      decimal.Decimal `json:"fee"`
	FilledAt time.Time       `json:"filled_at"`
}

// Holding is one non-zero asset balance valued in USD.
type Holding struct {
	Asset    string          `json:"asset"`
	Quantity decimal.Decimal `json:"quantity"`
	ValueUSD decimal.Decimal `json:"value_usd"`
}

// Account is a point-in-time snapshot of a user's exchange account.
type Account struct {
	AvailableUSD  decimal.Decimal `json:"available_usd"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	Holdings      []Holding       `json:"holdings"`
}

// Client is the exchange collaborator boundary. Implementations own wire
// protocol, signing and symbol-format translation; calls are expected to be
// time-boxed internally.
type Client interface {
	PlaceOrder(ctx context.Context, userID string, req OrderRequest) (Fill, error)
	PlaceMarginOrder(ctx context.Context, userID string, req OrderRequest) (Fill, error)
	CancelOrder(ctx context.Context, userID, symbol, orderID string) error
	GetAccount(ctx context.Context, userID string) (Account, error)
}
