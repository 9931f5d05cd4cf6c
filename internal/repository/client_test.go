package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/logger"
	"storefront/internal/metrics"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

type captured struct {
	method string
	uri    string
	body   map[string]any
	header http.Header
}

func backend(t *testing.T, status int, resp string, seen *captured) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.method = r.Method
		seen.uri = r.URL.RequestURI()
		seen.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			seen.body = map[string]any{}
			if err := json.Unmarshal(raw, &seen.body); err != nil {
				t.Errorf("request body is not json: %s", raw)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClient_ListItems(t *testing.T) {
	var seen captured
	c := backend(t, http.StatusOK, `[{"id":1,"name":"Widget","price":10,"description":"w"},{"id":2,"name":"Bolt","price":0.5}]`, &seen)

	items, err := c.ListItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, seen.method)
	assert.Equal(t, "/api/items/", seen.uri)
	require.Len(t, items, 2)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, items[0].Description)
	assert.Nil(t, items[1].Description)
}

func TestClient_AddToCart_SendsUnitQuantity(t *testing.T) {
	var seen captured
	c := backend(t, http.StatusOK, `{"id":7,"item_id":1,"quantity":2,"item":{"id":1,"name":"Widget","price":10}}`, &seen)

	ci, err := c.AddToCart(context.Background(), "user_123", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, seen.method)
	assert.Equal(t, "/api/cart/add?user_id=user_123", seen.uri)
	assert.Equal(t, map[string]any{"item_id": float64(1), "quantity": float64(1)}, seen.body)
	assert.Equal(t, int64(2), ci.Quantity)
}

func TestClient_CartPaths(t *testing.T) {
	var seen captured
	c := backend(t, http.StatusOK, `[]`, &seen)

	cart, err := c.GetCart(context.Background(), "user_123")
	require.NoError(t, err)
	assert.Empty(t, cart)
	assert.Equal(t, "/api/cart/user_123", seen.uri)

	c = backend(t, http.StatusOK, `{"message":"Item removed from cart"}`, &seen)
	require.NoError(t, c.RemoveFromCart(context.Background(), "user_123", 4))
	assert.Equal(t, http.MethodDelete, seen.method)
	assert.Equal(t, "/api/cart/user_123/item/4", seen.uri)
}

func TestClient_Checkout_DiscountNullWhenOmitted(t *testing.T) {
	var seen captured
	c := backend(t, http.StatusOK, `{"order_id":9,"total_amount":20,"discount_amount":0,"final_amount":20,"discount_code":null}`, &seen)

	res, err := c.Checkout(context.Background(), "user_123", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/checkout/", seen.uri)
	v, ok := seen.body["discount_code"]
	assert.True(t, ok, "discount_code key must be present")
	assert.Nil(t, v)
	assert.Equal(t, int64(9), res.OrderID)
	assert.Nil(t, res.DiscountCode)

	code := "SAVE10_5"
	c = backend(t, http.StatusOK, `{"order_id":10,"total_amount":20,"discount_amount":2,"final_amount":18,"discount_code":"SAVE10_5"}`, &seen)
	res, err = c.Checkout(context.Background(), "user_123", &code)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10_5", seen.body["discount_code"])
	assert.True(t, res.FinalAmount.Equal(decimal.NewFromInt(18)))
}

func TestClient_AdminEndpoints(t *testing.T) {
	var seen captured
	c := backend(t, http.StatusOK, `{"total_items_purchased":3,"total_purchase_amount":59.5,"discount_codes":[{"id":1,"code":"SAVE10_5","discount_percentage":10,"is_used":true,"created_at":"2025-01-02T03:04:05Z"}],"total_discount_amount":2}`, &seen)
	stats, err := c.GetAdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/stats", seen.uri)
	assert.Equal(t, int64(3), stats.TotalItemsPurchased)
	require.Len(t, stats.DiscountCodes, 1)
	assert.True(t, stats.DiscountCodes[0].IsUsed)

	c = backend(t, http.StatusOK, `{"id":2,"code":"SAVE10_10","discount_percentage":10.0,"is_used":false,"created_at":"2025-01-02T03:04:05.123456"}`, &seen)
	generated, err := c.GenerateDiscountCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2025, generated.CreatedAt.Year())
	assert.Equal(t, http.MethodPost, seen.method)
	assert.Equal(t, "/api/admin/discount/generate", seen.uri)

	c = backend(t, http.StatusOK, `[{"id":2,"code":"SAVE10_10","discount_percentage":10,"is_used":false,"created_at":"2025-01-02T03:04:05+00:00"}]`, &seen)
	codes, err := c.ListAvailableDiscountCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/discount/available", seen.uri)
	require.Len(t, codes, 1)
	assert.Equal(t, "SAVE10_10", codes[0].Code)
}

func TestClient_APIErrorCarriesDetail(t *testing.T) {
	var seen captured
	c := backend(t, http.StatusBadRequest, `{"detail":"Cart is empty"}`, &seen)

	_, err := c.Checkout(context.Background(), "user_123", nil)
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "checkout", apiErr.Operation)
	assert.Equal(t, "Cart is empty", DetailOf(err))

	c = backend(t, http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","item_id"],"msg":"field required"}]}`, &seen)
	_, err = c.AddToCart(context.Background(), "user_123", 0, 1)
	assert.Equal(t, "field required", DetailOf(err))

	c = backend(t, http.StatusInternalServerError, `Internal Server Error`, &seen)
	_, err = c.ListItems(context.Background())
	require.Error(t, err)
	assert.Equal(t, "", DetailOf(err))
}

func TestClient_ForwardsRequestIDAndRecordsMetrics(t *testing.T) {
	var header http.Header
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		header = req.Header.Clone()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`[]`)),
			Header:     http.Header{},
		}, nil
	})
	reg := prometheus.NewRegistry()
	c := NewClient("http://backend.test", WithHTTPClient(&http.Client{Transport: rt}), WithMetrics(metrics.NewGatewayMetrics(reg)))

	ctx := logger.WithRequestID(context.Background(), zerolog.Nop(), "req-42")
	_, err := c.ListItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-42", header.Get(logger.RequestIDHeader))
	assert.Empty(t, header.Get("Authorization"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() == "storefront_gateway_requests_total" {
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), total)
}

func TestClient_ConnectionRefusedIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	var buf bytes.Buffer
	c := NewClient(addr, WithLogger(zerolog.New(&buf)))
	_, err := c.ListItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list_items")
	assert.Contains(t, buf.String(), "cannot connect to backend api")
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("  ").BaseURL())
	assert.Equal(t, "http://api.test", NewClient("http://api.test///").BaseURL())
}

func TestNewClient_FixedRequestTimeout(t *testing.T) {
	c := NewClient("")
	require.NotNil(t, c.httpClient)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
	assert.Equal(t, RequestTimeout, c.httpClient.Timeout)
}
