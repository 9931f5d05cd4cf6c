package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/service"

	_ "storefront/docs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T) (*Server, *repository.MemoryBackend) {
	t.Helper()
	mem := repository.NewMemoryBackend()
	widget := domain.Item{Name: "Widget", Price: decimal.NewFromInt(10)}
	if err := mem.CreateItem(context.Background(), &widget); err != nil {
		t.Fatal(err)
	}
	sf := service.NewStorefront(mem)
	if err := sf.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewServer(sf, zerolog.Nop(), prometheus.NewRegistry()), mem
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func doForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) service.View {
	t.Helper()
	var v service.View
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, w.Body.String())
	}
	return v
}

func placeOrders(t *testing.T, mem *repository.MemoryBackend, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if _, err := mem.AddToCart(ctx, "other", 1, 1); err != nil {
			t.Fatal(err)
		}
		if _, err := mem.Checkout(ctx, "other", nil); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPageRendersCatalog(t *testing.T) {
	s, _ := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("page code %v", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Ecommerce Store", "Widget", "$10.00", "Your cart is empty", "Show Admin"} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestPageLoading(t *testing.T) {
	sf := service.NewStorefront(repository.NewMemoryBackend())
	s := NewServer(sf, zerolog.Nop(), prometheus.NewRegistry())

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(w.Body.String(), "Loading...") {
		t.Fatalf("expected loading placeholder")
	}
}

func TestCartFlow(t *testing.T) {
	s, _ := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/cart/items/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("add code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/cart/items/1", nil)
	v := decodeView(t, w)
	if len(v.Cart) != 1 || v.Cart[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", v.Cart)
	}
	if !v.Totals.Subtotal.Equal(decimal.NewFromInt(20)) || v.Success != "Item added to cart!" {
		t.Fatalf("unexpected view %+v", v)
	}

	w = doJSON(t, s, http.MethodPost, "/cart/items/1/remove", nil)
	if w.Code != http.StatusOK || len(decodeView(t, w).Cart) != 0 {
		t.Fatalf("remove failed: %v %s", w.Code, w.Body.String())
	}
}

func TestIntentErrors(t *testing.T) {
	s, _ := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/cart/items/abc", nil)
	if w.Code != http.StatusBadRequest || len(decodeView(t, w).Cart) != 0 {
		t.Fatalf("bad id: %v %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/cart/items/abc/remove", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad remove id: %v", w.Code)
	}
	// well-formed but non-positive ids are rejected by the controller
	w = doJSON(t, s, http.MethodPost, "/cart/items/0", nil)
	if w.Code != http.StatusBadRequest || decodeView(t, w).Error != "Failed to add item to cart" {
		t.Fatalf("zero id: %v %s", w.Code, w.Body.String())
	}

	// upstream 4xx passes through
	w = doJSON(t, s, http.MethodPost, "/cart/items/99", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown item code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/checkout", nil)
	if w.Code != http.StatusBadRequest || decodeView(t, w).Error != "Cart is empty" {
		t.Fatalf("empty checkout: %v %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/discount/apply", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/discount/apply", map[string]any{"code": "NOPE"})
	if w.Code != http.StatusBadRequest || decodeView(t, w).AppliedDiscount != nil {
		t.Fatalf("unknown code: %v %s", w.Code, w.Body.String())
	}
}

func TestHTMLIntentsRedirect(t *testing.T) {
	s, _ := setupServer(t)
	w := doForm(t, s, "/cart/items/1", nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect, got %v %q", w.Code, w.Header().Get("Location"))
	}
	// failures redirect too; the banner carries the message
	w = doForm(t, s, "/cart/items/abc", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect on failure, got %v", w.Code)
	}
}

func TestCheckoutWithDiscount(t *testing.T) {
	s, mem := setupServer(t)
	placeOrders(t, mem, repository.NthOrder)

	if w := doJSON(t, s, http.MethodPost, "/reload", nil); w.Code != http.StatusOK {
		t.Fatalf("reload code %v", w.Code)
	}
	doJSON(t, s, http.MethodPost, "/cart/items/1", nil)
	doJSON(t, s, http.MethodPost, "/cart/items/1", nil)

	w := doForm(t, s, "/discount/apply", url.Values{"code": {"SAVE10_5"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("apply code %v", w.Code)
	}
	v := decodeView(t, doJSON(t, s, http.MethodGet, "/api/v1/view", nil))
	if v.AppliedDiscount == nil || !v.Totals.Final.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected totals %+v", v.Totals)
	}

	w = doJSON(t, s, http.MethodPost, "/checkout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout code %v %s", w.Code, w.Body.String())
	}
	v = decodeView(t, w)
	if len(v.Cart) != 0 || v.AppliedDiscount != nil || len(v.AvailableDiscounts) != 0 {
		t.Fatalf("expected cleared state %+v", v)
	}
	if !strings.Contains(v.Success, "Final Amount: $18.00") {
		t.Fatalf("unexpected confirmation %q", v.Success)
	}
}

func TestAdminPanel(t *testing.T) {
	s, mem := setupServer(t)
	placeOrders(t, mem, repository.NthOrder)

	w := doJSON(t, s, http.MethodPost, "/admin/toggle", nil)
	if !decodeView(t, w).AdminVisible {
		t.Fatalf("expected admin visible")
	}
	w = doJSON(t, s, http.MethodPost, "/admin/stats", nil)
	v := decodeView(t, w)
	if w.Code != http.StatusOK || v.AdminStats == nil || v.AdminStats.TotalItemsPurchased != 5 {
		t.Fatalf("unexpected stats %v %+v", w.Code, v.AdminStats)
	}

	// the fifth order already issued an unused code
	w = doJSON(t, s, http.MethodPost, "/admin/discount/generate", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("generate code %v", w.Code)
	}
	if !strings.HasPrefix(decodeView(t, w).Error, "A discount code is already available") {
		t.Fatalf("unexpected error %q", decodeView(t, w).Error)
	}

	page := httptest.NewRecorder()
	s.Engine().ServeHTTP(page, httptest.NewRequest(http.MethodGet, "/", nil))
	body := page.Body.String()
	for _, want := range []string{"Admin Panel", "SAVE10_5", "(Available)", "$50.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("admin panel missing %q", want)
		}
	}
}

func TestOperationalEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewGatewayMetrics(reg)
	m.Observe("list_items", metrics.OutcomeSuccess, time.Millisecond)
	sf := service.NewStorefront(repository.NewMemoryBackend())
	s := NewServer(sf, zerolog.Nop(), reg)

	w := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz code %v", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected generated request id")
	}

	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "storefront_gateway_requests_total") {
		t.Fatalf("metrics not exposed: %v", w.Code)
	}
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{service.ErrEmptyCart, http.StatusBadRequest},
		{&repository.APIError{StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{&repository.APIError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := mapErrorToStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestSwaggerDocServed(t *testing.T) {
	s, _ := setupServer(t)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("swagger doc code %v", w.Code)
	}
	for _, want := range []string{`"/api/v1/view"`, `"/cart/items/{id}"`, `"service.View"`} {
		if !strings.Contains(w.Body.String(), want) {
			t.Fatalf("swagger doc missing %s", want)
		}
	}
}
