package commentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"precioverdadero/internal/models"
	"precioverdadero/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

const (
	commentsPath = "/api/comments"
	maxBodyBytes = 4 << 20
	// IdempotencyHeader carries the pending comment id so the server can
	// drop a repeated delivery.
	IdempotencyHeader = "Idempotency-Key"
)

// Client talks to the comment board's JSON API.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithCircuitBreaker routes calls through cb. Only transport failures
// count against it.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb.WithFailurePredicate(IsTransport)
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a client. timeout bounds each request; zero means no
// limit beyond the caller's context.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts one comment. It returns nil only when the server answered
// 2xx with success=true; otherwise a *RejectedError or *TransportError.
func (c *Client) Submit(ctx context.Context, input models.CommentInput, idempotencyKey string) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}

	return c.call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commentsPath, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set(IdempotencyHeader, idempotencyKey)
		}

		var result models.APIResponse
		status, err := c.do(req, "submit comment", &result)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 || !result.Success {
			return &RejectedError{StatusCode: status, Message: result.Message}
		}
		return nil
	})
}

// List fetches the newest comments.
func (c *Client) List(ctx context.Context) ([]models.Comment, error) {
	var comments []models.Comment
	err := c.call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+commentsPath, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		var result models.CommentsResponse
		status, err := c.do(req, "list comments", &result)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 || !result.Success {
			return &RejectedError{StatusCode: status, Message: result.Message}
		}
		comments = result.Comments
		return nil
	})
	return comments, err
}

func (c *Client) call(ctx context.Context, fn func(context.Context) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.breaker == nil {
		return fn(ctx)
	}

	err := c.breaker.Execute(ctx, fn)
	if circuitbreaker.IsCircuitBreakerError(err) {
		return &TransportError{Op: "circuit open", Err: err}
	}
	return err
}

// do sends req and decodes a JSON body into out. Any failure before a
// parsed body is a TransportError.
func (c *Client) do(req *http.Request, op string, out interface{}) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, &TransportError{Op: op + " timed out", Err: err}
		}
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op + ": read body", Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"op":     op,
		}).Debug("Comment API returned a non-JSON body")
		return resp.StatusCode, &TransportError{Op: op + ": malformed response", Err: err}
	}
	return resp.StatusCode, nil
}
