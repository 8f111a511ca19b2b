// Package nodeclient talks to a chessd node over its JSON API and event feed.
package nodeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/onchain-chess/pkg/chessdto"
)

type Client struct {
	baseURL   string
	eventsURL string
	http      *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
	reconnectMax   int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// WithEventsURL sets the websocket endpoint used by Subscribe.
func WithEventsURL(u string) Option {
	return func(c *Client) { c.eventsURL = strings.TrimSpace(u) }
}

// WithReconnect bounds how many times Subscribe redials after a dropped feed.
func WithReconnect(max int) Option {
	return func(c *Client) { c.reconnectMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute submits msg as sender. A call rejected by the contract is not an
// error here: it comes back in TxResult.Error with its index consumed.
func (c *Client) Execute(ctx context.Context, sender string, msg chessdto.ExecuteMsg) (*chessdto.TxResult, error) {
	var res chessdto.TxResult
	// never retried: a lost response may still have committed
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/execute", chessdto.ExecuteRequest{Sender: sender, Msg: msg}, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

// Query decodes the answer to msg into out.
func (c *Client) Query(ctx context.Context, msg chessdto.QueryMsg, out any) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/query", chessdto.QueryRequest{Msg: msg}, out, true)
}

func (c *Client) Status(ctx context.Context) (*chessdto.NodeStatus, error) {
	var st chessdto.NodeStatus
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/status", nil, &st, true); err != nil {
		return nil, err
	}
	return &st, nil
}

// APIError is a non-2xx answer. Domain is set when the node explained it.
type APIError struct {
	Status int
	Domain *chessdto.DomainError
	Body   string
}

func (e *APIError) Error() string {
	if e.Domain != nil {
		return fmt.Sprintf("node error: status=%d code=%s: %s", e.Status, e.Domain.Code, e.Domain.Message)
	}
	return fmt.Sprintf("node error: status=%d body=%s", e.Status, truncate(e.Body, 512))
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := &APIError{Status: status, Body: string(resp.Body())}
			var de chessdto.DomainError
			if json.Unmarshal(resp.Body(), &de) == nil && de.Code != "" {
				apiErr.Domain = &de
			}
			lastErr = apiErr
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
