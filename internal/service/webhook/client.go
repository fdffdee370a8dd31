package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nilebyte/site/backend/internal/logger"
)

// ActionSendMessage is the only action the widget ever sends.
const ActionSendMessage = "sendMessage"

const maxReplyBytes = 1 << 20

var (
	// ErrUnexpectedStatus wraps non-2xx answers; the body is never read.
	ErrUnexpectedStatus = errors.New("webhook returned non-success status")
	// ErrDecode marks a 2xx answer whose body is not JSON.
	ErrDecode = errors.New("webhook reply is not valid json")
)

// Request is the JSON body posted to the automation backend.
type Request struct {
	ChatInput string `json:"chatInput"`
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
}

// StatusError carries the HTTP status of a failed call.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Options configures a Client.
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client

	// Breaker settings; MaxFailures == 0 disables the breaker.
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Client posts widget messages to the automation backend.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds a webhook client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		endpoint:   opts.Endpoint,
		timeout:    opts.Timeout,
		httpClient: httpClient,
	}

	if opts.MaxFailures > 0 {
		c.breaker = newBreaker(opts.MaxFailures, opts.OpenTimeout)
	}
	return c
}

func newBreaker(maxFailures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnCF("webhook", "circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
		IsSuccessful: func(err error) bool {
			// a visitor closing the tab is not a backend failure
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// Send posts req and returns the raw JSON reply body.
func (c *Client) Send(ctx context.Context, req Request) ([]byte, error) {
	if req.Action == "" {
		req.Action = ActionSendMessage
	}

	if c.breaker == nil {
		return c.do(ctx, req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook reply: %w", err)
	}
	if !json.Valid(body) {
		return nil, ErrDecode
	}
	return body, nil
}
