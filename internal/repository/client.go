package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/metrics"
)

const (
	// RequestTimeout фиксированный таймаут каждого запроса к бэкенду
	RequestTimeout = 10 * time.Second
	// DefaultBaseURL адрес бэкенда по умолчанию
	DefaultBaseURL = "http://localhost:8000"

	errorBodyReadLimit int64 = 4096
)

// Client реализация Gateway поверх HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
	metrics    *metrics.GatewayMetrics
}

var _ Gateway = (*Client)(nil)

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient создаёт клиент бэкенда; пустой baseURL заменяется на DefaultBaseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: RequestTimeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:        zerolog.Nop(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListItems(ctx context.Context) ([]domain.Item, error) {
	var out []domain.Item
	if err := c.do(ctx, "list_items", http.MethodGet, "/api/items/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	var out []domain.CartItem
	path := "/api/cart/" + url.PathEscape(userID)
	if err := c.do(ctx, "get_cart", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddToCart(ctx context.Context, userID string, itemID, quantity int64) (*domain.CartItem, error) {
	var out domain.CartItem
	path := "/api/cart/add?user_id=" + url.QueryEscape(userID)
	body := domain.AddToCartRequest{ItemID: itemID, Quantity: quantity}
	if err := c.do(ctx, "add_to_cart", http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, userID string, itemID int64) error {
	path := fmt.Sprintf("/api/cart/%s/item/%d", url.PathEscape(userID), itemID)
	return c.do(ctx, "remove_from_cart", http.MethodDelete, path, nil, nil)
}

func (c *Client) Checkout(ctx context.Context, userID string, discountCode *string) (*domain.CheckoutResponse, error) {
	var out domain.CheckoutResponse
	body := domain.CheckoutRequest{UserID: userID, DiscountCode: discountCode}
	if err := c.do(ctx, "checkout", http.MethodPost, "/api/checkout/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAvailableDiscountCodes(ctx context.Context) ([]domain.DiscountCode, error) {
	var out []domain.DiscountCode
	if err := c.do(ctx, "list_available_discounts", http.MethodGet, "/api/admin/discount/available", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAdminStats(ctx context.Context) (*domain.AdminStats, error) {
	var out domain.AdminStats
	if err := c.do(ctx, "get_admin_stats", http.MethodGet, "/api/admin/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateDiscountCode(ctx context.Context) (*domain.DiscountCode, error) {
	var out domain.DiscountCode
	if err := c.do(ctx, "generate_discount", http.MethodPost, "/api/admin/discount/generate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do выполняет один запрос: сериализует body, проверяет статус и декодирует ответ в out
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		c.metrics.Observe(op, outcome, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			outcome = metrics.OutcomeTransport
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		outcome = metrics.OutcomeTransport
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set(logger.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = metrics.OutcomeTransport
		if errors.Is(err, syscall.ECONNREFUSED) {
			l := logger.FromContext(ctx, c.log)
			l.Error().Str("base_url", c.baseURL).Msg("cannot connect to backend api")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = metrics.OutcomeAPIError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = metrics.OutcomeTransport
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// parseDetail достаёт поле detail из тела ошибки; detail-массивы валидации склеиваются по msg
func parseDetail(raw []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, it := range list {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
