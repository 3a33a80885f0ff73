package notify

import "context"

// Event types surfaced to the user.
const (
	EventTradeOpened   = "trade_opened"
	EventTradingPaused = "trading_paused"
	EventOrphanAdopted = "orphan_adopted"
	EventManualSell    = "manual_sell_detected"
)

// Notification is one user-facing trading event.
type Notification struct {
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	EventType string         `json:"event_type"`
	Priority  string         `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier delivers trading notifications. Delivery is fire-and-forget:
// a failed send must never block or fail trade execution. SendAsync returns
// immediately and logs delivery failures out of band.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendAsync(ctx context.Context, n Notification)
}
