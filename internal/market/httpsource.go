package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPSource reads prices, indicators and klines from the ingestion
// service's REST API. A 404 is a normal cache miss, not an error.
type HTTPSource struct {
	host       string
	httpClient *http.Client
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("market api error (%d): %s", e.Status, e.Body)
}

func NewHTTPSource(httpClient *http.Client, host string) *HTTPSource {
	host = strings.TrimRight(host, "/")
	return &HTTPSource{host: host, httpClient: httpClient}
}

func (s *HTTPSource) doRequest(ctx context.Context, path string, query url.Values) ([]byte, bool, error) {
	fullURL := s.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &apiError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, true, nil
}

type priceResponse struct {
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Change24hPct float64         `json:"change_24h_pct"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (s *HTTPSource) GetPrice(ctx context.Context, symbol string) (Price, bool, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	body, ok, err := s.doRequest(ctx, "/api/market/price", query)
	if err != nil || !ok {
		return Price{}, false, err
	}
	var out priceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Price{}, false, fmt.Errorf("decode price: %w", err)
	}
	return Price{
		Symbol:       out.Symbol,
		Price:        out.Price,
		Change24hPct: out.Change24hPct,
		UpdatedAt:    out.UpdatedAt,
	}, true, nil
}

func (s *HTTPSource) GetIndicators(ctx context.Context, symbol, timeframe string) (Indicators, bool, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("timeframe", timeframe)
	body, ok, err := s.doRequest(ctx, "/api/market/indicators", query)
	if err != nil || !ok {
		return Indicators{}, false, err
	}
	var out Indicators
	if err := json.Unmarshal(body, &out); err != nil {
		return Indicators{}, false, fmt.Errorf("decode indicators: %w", err)
	}
	return out, true, nil
}

type klineResponse struct {
	OpenTime int64           `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   float64         `json:"volume"`
}

func (s *HTTPSource) GetKlines(ctx context.Context, symbol, interval string, from time.Time, limit int) ([]Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, ok, err := s.doRequest(ctx, "/api/market/klines", query)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var rows []klineResponse
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, Candle{
			OpenTime: time.UnixMilli(r.OpenTime).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}
	return out, nil
}
