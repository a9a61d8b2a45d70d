package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("payment gateway unavailable")

// APIError adalah respon non-2xx dari gateway.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client untuk hosted invoice API (format Xendit v2).
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	cb        *gobreaker.CircuitBreaker[[]byte]
	log       *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx = request kita salah, bukan gateway-nya down
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type Customer struct {
	ID    string
	Email string
}

type CreateInvoiceRequest struct {
	ExternalID  string
	Amount      int64
	Description string
	Items       []Item
	Customer    Customer
	SuccessURL  string
	FailureURL  string
	Duration    time.Duration
}

type Invoice struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	InvoiceURL string    `json:"invoice_url"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	ExpiryDate time.Time `json:"expiry_date"`
}

type invoiceBody struct {
	ExternalID         string        `json:"external_id"`
	Amount             int64         `json:"amount"`
	Description        string        `json:"description"`
	InvoiceDuration    int64         `json:"invoice_duration"`
	Currency           string        `json:"currency"`
	Customer           *customerBody `json:"customer,omitempty"`
	SuccessRedirectURL string        `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string        `json:"failure_redirect_url,omitempty"`
	Items              []Item        `json:"items,omitempty"`
}

type customerBody struct {
	GivenNames string `json:"given_names"`
	Email      string `json:"email,omitempty"`
}

func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	body := invoiceBody{
		ExternalID:         req.ExternalID,
		Amount:             req.Amount,
		Description:        req.Description,
		InvoiceDuration:    int64(req.Duration / time.Second),
		Currency:           "IDR",
		SuccessRedirectURL: req.SuccessURL,
		FailureRedirectURL: req.FailureURL,
		Items:              req.Items,
	}
	if req.Customer.ID != "" || req.Customer.Email != "" {
		body.Customer = &customerBody{GivenNames: req.Customer.ID, Email: req.Customer.Email}
	}

	raw, err := c.call(ctx, http.MethodPost, "/v2/invoices", body)
	if err != nil {
		return nil, err
	}
	var inv Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &inv, nil
}

// ExpireInvoice menutup halaman bayar, dipakai untuk kompensasi dan cancel.
func (c *Client) ExpireInvoice(ctx context.Context, invoiceID string) error {
	_, err := c.call(ctx, http.MethodPost, "/invoices/"+url.PathEscape(invoiceID)+"/expire!", nil)
	return err
}

func (c *Client) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return raw, err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.secretKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return nil, apiErr
	}
	return raw, nil
}
