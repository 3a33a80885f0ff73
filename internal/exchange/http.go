package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPClient talks to the execution gateway that owns wire protocol and
// signing. The gateway keys idempotency on the client order id, so a retry
// of an ambiguous response never double-fills.
type HTTPClient struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api error (%d): %s", e.Status, e.Body)
}

func NewHTTPClient(httpClient *http.Client, host string) *HTTPClient {
	host = strings.TrimRight(host, "/")
	return &HTTPClient{host: host, httpClient: httpClient}
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func (c *HTTPClient) placeOrder(ctx context.Context, path, userID string, req OrderRequest) (Fill, error) {
	if req.Symbol == "" {
		return Fill{}, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("user_id", userID)
	raw, err := c.doRequest(ctx, http.MethodPost, path, query, req)
	if err != nil {
		return Fill{}, err
	}
	var fill Fill
	if err := json.Unmarshal(raw, &fill); err != nil {
		return Fill{}, fmt.Errorf("decode fill: %w", err)
	}
	return fill, nil
}

func (c *HTTPClient) PlaceOrder(ctx context.Context, userID string, req OrderRequest) (Fill, error) {
	return c.placeOrder(ctx, "/api/exchange/orders", userID, req)
}

func (c *HTTPClient) PlaceMarginOrder(ctx context.Context, userID string, req OrderRequest) (Fill, error) {
	return c.placeOrder(ctx, "/api/exchange/margin/orders", userID, req)
}

func (c *HTTPClient) CancelOrder(ctx context.Context, userID, symbol, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("symbol", symbol)
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/exchange/orders/"+url.PathEscape(orderID), query, nil)
	return err
}

func (c *HTTPClient) GetAccount(ctx context.Context, userID string) (Account, error) {
	query := url.Values{}
	query.Set("user_id", userID)
	raw, err := c.doRequest(ctx, http.MethodGet, "/api/exchange/account", query, nil)
	if err != nil {
		return Account{}, err
	}
	var acct Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	return acct, nil
}
