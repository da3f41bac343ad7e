// Package delivery sends a single lead to the external destination endpoint
// with bounded retries and backoff.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/config"
	"leadrelay_backend/platform/logger"

	"github.com/sethvargo/go-retry"
)

// Outbound calls tolerate slow partners: the configured timeout is raised to
// this floor.
const minClientTimeout = 10 * time.Second

const (
	deliverAttempts  = 3
	deliverBaseDelay = 1 * time.Second
	deliverDelayCap  = 4 * time.Second
)

// Result is the destination endpoint's answer to a successful delivery.
type Result struct {
	StatusCode int
	Body       string
}

// Deliverer is the narrow interface the scheduling engine consumes.
type Deliverer interface {
	Deliver(ctx context.Context, lead inventory.Lead, rule domain.Rule) (Result, error)
}

// payload is the outbound delivery body. It carries the lead's identity and
// contact fields together with the rule's target product, never the product
// the lead originally belonged to.
type payload struct {
	Subid       string `json:"subid"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"ua,omitempty"`
	Country     string `json:"country,omitempty"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Vertical    string `json:"vertical,omitempty"`
	Geo         string `json:"geo,omitempty"`
	Affiliate   string `json:"aff,omitempty"`
}

// Client talks to the partner's lead delivery endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	log    *logger.Logger
}

// NewClient creates a delivery client from configuration.
func NewClient(cfg config.DeliveryConfig, log *logger.Logger) *Client {
	timeout := cfg.GetDeliveryTimeout()
	if timeout < minClientTimeout {
		timeout = minClientTimeout
	}

	return &Client{
		url:    strings.TrimRight(cfg.GetDeliveryURL(), "/"),
		apiKey: cfg.GetDeliveryAPIKey(),
		http:   &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Deliver posts one lead to the destination. Up to three attempts are made;
// 5xx/429 responses and timeouts back off and retry, the first 2xx returns
// immediately, and any other status is a terminal failure for this cycle.
// Retries are invisible to the caller: one call yields one outcome.
func (c *Client) Deliver(ctx context.Context, lead inventory.Lead, rule domain.Rule) (Result, error) {
	body, err := json.Marshal(payload{
		Subid:       lead.Subid,
		Name:        lead.Name,
		Phone:       lead.Phone,
		Email:       lead.Email,
		IP:          lead.IP,
		UserAgent:   lead.UserAgent,
		Country:     lead.Country,
		ProductID:   rule.TargetProductID,
		ProductName: rule.TargetProductName,
		Vertical:    rule.TargetVertical,
		Geo:         rule.TargetCountry,
		Affiliate:   rule.TargetAffiliate,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal delivery payload: %w", err)
	}

	backoff := retry.WithMaxRetries(deliverAttempts-1,
		retry.WithCappedDuration(deliverDelayCap, retry.NewExponential(deliverBaseDelay)))

	var result Result
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, err := c.deliverOnce(ctx, body)
		if err != nil {
			c.log.RemoteCallFailed(c.url, attempt, err)
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (c *Client) deliverOnce(ctx context.Context, body []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/leads", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &transportError{err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	trimmed := strings.TrimSpace(string(data))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: trimmed}
	}

	return Result{StatusCode: resp.StatusCode, Body: trimmed}, nil
}

// StatusError is a non-2xx delivery response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("delivery returned %d: %s", e.StatusCode, e.Body)
}

// transportError is a network-level failure, including timeouts.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "delivery request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	if statusErr, ok := err.(*StatusError); ok {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	if _, ok := err.(*transportError); ok {
		return true
	}
	return false
}
