package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"earlyscope/service/metrics"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client is a rate-limited, retrying HTTP client for the trade data provider
// (a Birdeye-compatible API). All calls share one rate limiter so concurrent
// lookups cannot exceed the provider's request budget; the limiter gate is
// applied before every attempt, success or failure.
//
// The client holds no per-call mutable state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	chain      string
	limiter    *rate.Limiter
	retry      RetryPolicy
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Chain   string // passed as the x-chain header, e.g. "solana"

	// RequestsPerSecond and Burst configure the shared rate-limit gate.
	RequestsPerSecond float64
	Burst             int

	Timeout time.Duration
	Retry   RetryPolicy

	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger
}

// NewClient creates a provider client. If opts.Logger is nil, slog.Default()
// is used. If opts.Metrics is nil, no metrics are recorded.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Chain == "" {
		opts.Chain = "solana"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		chain:      opts.Chain,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		retry:      opts.Retry,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("component", "provider"),
	}
}

// TokenOverview fetches the provider's token summary, including the token
// creation time.
func (c *Client) TokenOverview(ctx context.Context, token string) (*TokenOverview, error) {
	q := url.Values{}
	q.Set("address", token)

	var resp struct {
		Data struct {
			Address   string `json:"address"`
			Symbol    string `json:"symbol"`
			Name      string `json:"name"`
			CreatedAt int64  `json:"created_at"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := c.getJSON(ctx, "/defi/token-overview", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("token overview request for %s was not successful", token)
	}
	return &TokenOverview{
		Address:   resp.Data.Address,
		Symbol:    resp.Data.Symbol,
		Name:      resp.Data.Name,
		CreatedAt: time.Unix(resp.Data.CreatedAt, 0).UTC(),
	}, nil
}

// tradeItem is the provider wire format for one swap.
type tradeItem struct {
	TxHash        string          `json:"tx_hash"`
	Owner         string          `json:"owner"`
	Side          string          `json:"side"`
	UIAmount      decimal.Decimal `json:"ui_amount"`
	VolumeUSD     decimal.Decimal `json:"volume_usd"`
	BlockUnixTime int64           `json:"block_unix_time"`
}

func (t tradeItem) toRecord(token string) TradeRecord {
	return TradeRecord{
		TokenAddress:  token,
		WalletAddress: t.Owner,
		Side:          Side(t.Side),
		Quantity:      t.UIAmount,
		USDValue:      t.VolumeUSD,
		Timestamp:     time.Unix(t.BlockUnixTime, 0).UTC(),
		TxHash:        t.TxHash,
	}
}

// TokenTrades fetches one page of swaps for a token. The page cursor is an
// offset; the provider signals the final page with has_next=false. Ordering
// within and across pages is requested via SortOrder but not guaranteed.
func (c *Client) TokenTrades(ctx context.Context, query TradesQuery) (*TradesPage, error) {
	q := url.Values{}
	q.Set("address", query.Token)
	q.Set("tx_type", "swap")
	q.Set("offset", strconv.Itoa(query.Offset))
	q.Set("limit", strconv.Itoa(query.Limit))
	q.Set("sort_by", "block_unix_time")
	sortType := string(query.SortOrder)
	if sortType == "" {
		sortType = string(SortAsc)
	}
	q.Set("sort_type", sortType)
	if !query.MinUSD.IsZero() {
		q.Set("min_volume_usd", query.MinUSD.String())
	}
	if !query.MaxUSD.IsZero() {
		q.Set("max_volume_usd", query.MaxUSD.String())
	}

	var resp struct {
		Data struct {
			Items   []tradeItem `json:"items"`
			HasNext bool        `json:"has_next"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := c.getJSON(ctx, "/defi/txs/token", q, &resp); err != nil {
		return nil, err
	}

	records := make([]TradeRecord, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		records = append(records, item.toRecord(query.Token))
	}
	return &TradesPage{
		Records:    records,
		NextOffset: query.Offset + len(records),
		HasMore:    resp.Data.HasNext && len(records) > 0,
	}, nil
}

// WalletTokenTrades fetches a wallet's full buy/sell ledger for one token,
// paging until the provider reports no further pages. Records are returned
// in the order the provider reports them (ascending by time).
func (c *Client) WalletTokenTrades(ctx context.Context, wallet, token string) ([]TradeRecord, error) {
	const pageSize = 100

	var all []TradeRecord
	offset := 0
	for {
		q := url.Values{}
		q.Set("address", wallet)
		q.Set("token_address", token)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("sort_type", string(SortAsc))

		var resp struct {
			Data struct {
				Items   []tradeItem `json:"items"`
				HasNext bool        `json:"has_next"`
			} `json:"data"`
			Success bool `json:"success"`
		}
		if err := c.getJSON(ctx, "/trader/txs/token", q, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Data.Items {
			rec := item.toRecord(token)
			rec.WalletAddress = wallet
			all = append(all, rec)
		}
		if !resp.Data.HasNext || len(resp.Data.Items) == 0 {
			return all, nil
		}
		offset += len(resp.Data.Items)
	}
}

// transferItem is the provider wire format for one wallet transfer.
type transferItem struct {
	TxHash        string          `json:"tx_hash"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	UIAmount      decimal.Decimal `json:"ui_amount"`
	BlockUnixTime int64           `json:"block_unix_time"`
}

// WalletTransfers fetches recent direct transfers involving a wallet, most
// recent first, up to limit records.
func (c *Client) WalletTransfers(ctx context.Context, wallet string, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("address", wallet)
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Data struct {
			Items []transferItem `json:"items"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := c.getJSON(ctx, "/wallet/transfers", q, &resp); err != nil {
		return nil, err
	}

	transfers := make([]Transfer, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		transfers = append(transfers, Transfer{
			From:      item.From,
			To:        item.To,
			Amount:    item.UIAmount,
			Timestamp: time.Unix(item.BlockUnixTime, 0).UTC(),
			TxHash:    item.TxHash,
		})
	}
	return transfers, nil
}

// getJSON performs a GET against the provider with the shared rate-limit
// gate and bounded retries. Transient failures (429, 5xx, network errors)
// are retried on the policy's backoff schedule; once the attempt budget is
// exhausted the call fails with *ProviderUnavailableError.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()
	attempts := c.retry.attempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.Backoff(attempt - 1)
			c.logger.WarnContext(ctx, "retrying provider request",
				"path", path,
				"attempt", attempt+1,
				"backoff", backoff,
				"error", lastErr,
			)
			if c.metrics != nil {
				c.metrics.RecordProviderRetry(path, retryReason(lastErr))
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// The gate applies to every attempt regardless of the previous
		// outcome; this is the single process-wide limiter.
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnce(ctx, endpoint, path, out)
		if err == nil {
			return nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			// Permanent failure: malformed response, 4xx other than 429.
			return err
		}
		lastErr = err
	}

	return &ProviderUnavailableError{Resource: path, Attempts: attempts, Err: lastErr}
}

// doOnce performs a single HTTP attempt and classifies the outcome.
func (c *Client) doOnce(ctx context.Context, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-chain", c.chain)
	req.Header.Set("accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordProviderRequest(path, "network_error", duration)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(path, status, duration)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if c.metrics != nil {
			c.metrics.RecordRateLimitHit(path)
		}
		return &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("rate limited")}
	case resp.StatusCode >= 500:
		return &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("server error")}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned status %d for %s: %s", resp.StatusCode, path, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response for %s: %w", path, err)
	}
	return nil
}

func retryReason(err error) string {
	var transient *TransientError
	if errors.As(err, &transient) {
		switch {
		case transient.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case transient.StatusCode >= 500:
			return "server_error"
		default:
			return "network_error"
		}
	}
	return "unknown"
}
