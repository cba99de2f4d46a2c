package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"precioverdadero/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

const whatsappPrefix = "whatsapp:"

// Sender delivers one WhatsApp message.
type Sender interface {
	SendWhatsApp(ctx context.Context, to, body string) (*Message, error)
}

// Message is the subset of Twilio's message resource we use.
type Message struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	To           string `json:"to"`
	From         string `json:"from"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// APIError is a non-2xx answer from Twilio.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Twilio API error: %d %s - %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

type Config struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
	BaseURL      string
	Timeout      time.Duration
}

type Client struct {
	cfg     Config
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.WhatsAppFrom != "" && !strings.HasPrefix(cfg.WhatsAppFrom, whatsappPrefix) {
		cfg.WhatsAppFrom = whatsappPrefix + cfg.WhatsAppFrom
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		// Only transport failures and 5xx answers count against the breaker.
		breaker: circuitbreaker.NewWithLogger("twilio", 5, 30*time.Second, logger).
			WithFailurePredicate(func(err error) bool {
				apiErr, ok := err.(*APIError)
				return !ok || apiErr.StatusCode >= 500
			}),
	}
}

// SendWhatsApp posts a message to the Messages API. to is an E.164 number.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) (*Message, error) {
	var msg *Message
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		msg, err = c.send(ctx, to, body)
		return err
	})
	return msg, err
}

func (c *Client) send(ctx context.Context, to, body string) (*Message, error) {
	form := url.Values{}
	form.Set("From", c.cfg.WhatsAppFrom)
	form.Set("To", whatsappPrefix+strings.TrimPrefix(to, whatsappPrefix))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &msg, nil
}
