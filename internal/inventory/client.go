package inventory

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

	"leadrelay_backend/platform/config"
	"leadrelay_backend/platform/logger"

	"github.com/sethvargo/go-retry"
)

// Outbound calls tolerate slow partners: the configured timeout is raised to
// this floor.
const minClientTimeout = 10 * time.Second

const (
	fetchAttempts  = 2
	fetchBaseDelay = 500 * time.Millisecond
	fetchDelayCap  = 2 * time.Second
)

// Query describes one inventory request. Zero values mean "no filter".
type Query struct {
	Vertical  string
	Country   string
	Status    string
	Affiliate string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}

// Client talks to the partner's lead inventory endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates an inventory client from configuration.
func NewClient(cfg config.InventoryConfig, log *logger.Logger) *Client {
	timeout := cfg.GetInventoryTimeout()
	if timeout < minClientTimeout {
		timeout = minClientTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetInventoryURL(), "/"),
		apiKey:  cfg.GetInventoryAPIKey(),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Fetch issues the inventory query with one retry on transient failures.
// A 5xx/429 response or a network timeout waits and retries once; any other
// failure is terminal for the cycle.
func (c *Client) Fetch(ctx context.Context, q Query) ([]rawRecord, error) {
	backoff := retry.WithMaxRetries(fetchAttempts-1,
		retry.WithCappedDuration(fetchDelayCap, retry.NewExponential(fetchBaseDelay)))

	var raws []rawRecord
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		result, err := c.fetchOnce(ctx, q)
		if err != nil {
			c.log.RemoteCallFailed(c.baseURL, attempt, err)
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		raws = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raws, nil
}

func (c *Client) fetchOnce(ctx context.Context, q Query) ([]rawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/leads", nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = buildQuery(q).Encode()
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var raws []rawRecord
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode inventory response: %w", err)
	}
	return raws, nil
}

func buildQuery(q Query) url.Values {
	values := url.Values{}
	if q.Vertical != "" {
		values.Set("vertical", q.Vertical)
	}
	if q.Country != "" {
		values.Set("country", q.Country)
	}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Affiliate != "" {
		values.Set("aff", q.Affiliate)
	}
	if q.DateFrom != nil {
		values.Set("date_from", q.DateFrom.Format("2006-01-02"))
	}
	if q.DateTo != nil {
		values.Set("date_to", q.DateTo.Format("2006-01-02"))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// StatusError is a non-2xx inventory response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inventory returned %d: %s", e.StatusCode, e.Body)
}

// transportError is a network-level failure, including timeouts.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "inventory request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// isTransient reports whether the failure warrants a retry: network errors
// (timeouts included), 5xx responses and 429.
func isTransient(err error) bool {
	if statusErr, ok := err.(*StatusError); ok {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	if _, ok := err.(*transportError); ok {
		return true
	}
	return false
}
