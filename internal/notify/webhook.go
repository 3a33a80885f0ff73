package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier posts notifications to a configured HTTP endpoint.
type WebhookNotifier struct {
	URL    string
	HTTP   *http.Client
	Logger *zap.Logger
}

func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if w == nil || w.URL == "" {
		return nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	client := w.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode}
	}
	return nil
}

// SendAsync delivers in the background and only logs failures. Use this
// from the trade path. The caller's context only scopes the call site; the
// background send runs under its own timeout.
func (w *WebhookNotifier) SendAsync(_ context.Context, n Notification) {
	if w == nil || w.URL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.Send(ctx, n); err != nil && w.Logger != nil {
			w.Logger.Warn("notification send failed",
				zap.String("user_id", n.UserID),
				zap.String("event_type", n.EventType),
				zap.Error(err),
			)
		}
	}()
}

type httpError struct {
	StatusCode int
}

func (e *httpError) Error() string {
	return "webhook http status " + http.StatusText(e.StatusCode)
}
