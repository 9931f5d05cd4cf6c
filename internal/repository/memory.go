package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

const (
	// NthOrder каждый N-й заказ выпускает новый код скидки
	NthOrder = 5
	// DefaultDiscountPercentage процент выпускаемых кодов
	DefaultDiscountPercentage = 10
)

// MemoryBackend in-memory реализация контракта бэкенда: офлайн-режим и тесты
type MemoryBackend struct {
	mu          sync.RWMutex
	nextItemID  int64
	nextCartID  int64
	nextOrderID int64
	nextCodeID  int64
	itemsByID   map[int64]domain.Item
	cartsByUser map[string][]cartRow
	orders      []order
	codes       []domain.DiscountCode
	now         func() time.Time
}

type cartRow struct {
	id       int64
	itemID   int64
	quantity int64
}

type order struct {
	id             int64
	userID         string
	totalAmount    decimal.Decimal
	discountAmount decimal.Decimal
	discountCode   *string
	lines          []orderLine
}

type orderLine struct {
	itemID   int64
	quantity int64
	price    decimal.Decimal
}

var _ Gateway = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		nextItemID:  1,
		nextCartID:  1,
		nextOrderID: 1,
		nextCodeID:  1,
		itemsByID:   make(map[int64]domain.Item),
		cartsByUser: make(map[string][]cartRow),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SeedCatalog каталог офлайн-режима
func SeedCatalog() []domain.Item {
	item := func(name, price, description string) domain.Item {
		d := description
		return domain.Item{Name: name, Price: decimal.RequireFromString(price), Description: &d}
	}
	return []domain.Item{
		item("Laptop", "999.99", "High-performance laptop"),
		item("Mouse", "29.99", "Wireless mouse"),
		item("Keyboard", "79.99", "Mechanical keyboard"),
		item("Monitor", "299.99", "27-inch 4K monitor"),
		item("Headphones", "149.99", "Noise-cancelling headphones"),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	b, ok := ctx.Value(txKey{}).(bool)
	return ok && b
}

func (m *MemoryBackend) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryBackend) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryBackend) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryBackend) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// WithTransaction держит запись на всё время fn; репозиторные методы внутри не берут локи повторно
func (m *MemoryBackend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func apiError(op string, status int, detail string) *APIError {
	return &APIError{Operation: op, StatusCode: status, Detail: detail}
}

// CreateItem добавляет товар в каталог и присваивает ему id
func (m *MemoryBackend) CreateItem(ctx context.Context, it *domain.Item) error {
	if it.Name == "" || it.Price.IsNegative() {
		return apiError("create_item", http.StatusUnprocessableEntity, "invalid item")
	}
	m.wlock(ctx)
	defer m.wunlock(ctx)
	it.ID = m.nextItemID
	m.nextItemID++
	m.itemsByID[it.ID] = *it
	return nil
}

func (m *MemoryBackend) ListItems(ctx context.Context) ([]domain.Item, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Item, 0, len(m.itemsByID))
	for _, it := range m.itemsByID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryBackend) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	rows := m.cartsByUser[userID]
	out := make([]domain.CartItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, m.cartItem(r))
	}
	return out, nil
}

func (m *MemoryBackend) cartItem(r cartRow) domain.CartItem {
	return domain.CartItem{ID: r.id, ItemID: r.itemID, Quantity: r.quantity, Item: m.itemsByID[r.itemID]}
}

func (m *MemoryBackend) AddToCart(ctx context.Context, userID string, itemID, quantity int64) (*domain.CartItem, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.itemsByID[itemID]; !ok {
		return nil, apiError("add_to_cart", http.StatusNotFound, "Item not found")
	}
	rows := m.cartsByUser[userID]
	for i := range rows {
		if rows[i].itemID == itemID {
			rows[i].quantity += quantity
			ci := m.cartItem(rows[i])
			return &ci, nil
		}
	}
	r := cartRow{id: m.nextCartID, itemID: itemID, quantity: quantity}
	m.nextCartID++
	m.cartsByUser[userID] = append(rows, r)
	ci := m.cartItem(r)
	return &ci, nil
}

func (m *MemoryBackend) RemoveFromCart(ctx context.Context, userID string, itemID int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	rows := m.cartsByUser[userID]
	for i := range rows {
		if rows[i].itemID == itemID {
			m.cartsByUser[userID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return apiError("remove_from_cart", http.StatusNotFound, "Cart item not found")
}

// Checkout атомарно: заказ, списание кода, очистка корзины и выпуск кода на каждом NthOrder-м заказе
func (m *MemoryBackend) Checkout(ctx context.Context, userID string, discountCode *string) (*domain.CheckoutResponse, error) {
	var res *domain.CheckoutResponse
	err := m.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := m.GetCart(ctx, userID)
		if err != nil {
			return err
		}
		if len(cart) == 0 {
			return apiError("checkout", http.StatusBadRequest, "Cart is empty")
		}

		total := domain.CartTotal(cart)
		discount := decimal.Zero
		var used *string
		if discountCode != nil && *discountCode != "" {
			idx := m.unusedCodeIndex(*discountCode)
			if idx < 0 {
				return apiError("checkout", http.StatusBadRequest, "Invalid or already used discount code")
			}
			discount = domain.DiscountAmount(total, m.codes[idx].DiscountPercentage)
			code := m.codes[idx].Code
			used = &code
			m.codes[idx].IsUsed = true
		}

		o := order{
			id:             m.nextOrderID,
			userID:         userID,
			totalAmount:    total,
			discountAmount: discount,
			discountCode:   used,
		}
		m.nextOrderID++
		for _, ci := range cart {
			o.lines = append(o.lines, orderLine{itemID: ci.ItemID, quantity: ci.Quantity, price: ci.Item.Price})
		}
		m.orders = append(m.orders, o)
		delete(m.cartsByUser, userID)

		if len(m.orders)%NthOrder == 0 {
			m.issueCode(o.id)
		}

		res = &domain.CheckoutResponse{
			OrderID:        o.id,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    total.Sub(discount),
			DiscountCode:   used,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *MemoryBackend) unusedCodeIndex(code string) int {
	for i, dc := range m.codes {
		if dc.Code == code && !dc.IsUsed {
			return i
		}
	}
	return -1
}

// issueCode expects the write lock to be held.
func (m *MemoryBackend) issueCode(orderID int64) domain.DiscountCode {
	dc := domain.DiscountCode{
		ID:                 m.nextCodeID,
		Code:               fmt.Sprintf("SAVE10_%d", orderID),
		DiscountPercentage: decimal.NewFromInt(DefaultDiscountPercentage),
		CreatedAt:          domain.Timestamp{Time: m.now()},
	}
	m.nextCodeID++
	m.codes = append(m.codes, dc)
	return dc
}

func (m *MemoryBackend) ListAvailableDiscountCodes(ctx context.Context) ([]domain.DiscountCode, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.DiscountCode, 0)
	for _, dc := range m.codes {
		if !dc.IsUsed {
			out = append(out, dc)
		}
	}
	return out, nil
}

func (m *MemoryBackend) GetAdminStats(ctx context.Context) (*domain.AdminStats, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	stats := domain.AdminStats{
		TotalPurchaseAmount: decimal.Zero,
		TotalDiscountAmount: decimal.Zero,
		DiscountCodes:       append([]domain.DiscountCode{}, m.codes...),
	}
	for _, o := range m.orders {
		stats.TotalPurchaseAmount = stats.TotalPurchaseAmount.Add(o.totalAmount)
		stats.TotalDiscountAmount = stats.TotalDiscountAmount.Add(o.discountAmount)
		for _, l := range o.lines {
			stats.TotalItemsPurchased += l.quantity
		}
	}
	return &stats, nil
}

// GenerateDiscountCode выпускает код вручную: только когда число заказов кратно NthOrder и свободных кодов нет
func (m *MemoryBackend) GenerateDiscountCode(ctx context.Context) (*domain.DiscountCode, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	count := len(m.orders)
	if count%NthOrder != 0 {
		return nil, apiError("generate_discount", http.StatusBadRequest,
			fmt.Sprintf("Discount code can only be generated every %d orders. Current order count: %d", NthOrder, count))
	}
	for _, dc := range m.codes {
		if !dc.IsUsed {
			return nil, apiError("generate_discount", http.StatusBadRequest,
				"A discount code is already available and unused. Use it before generating a new one.")
		}
	}
	if count == 0 {
		return nil, apiError("generate_discount", http.StatusBadRequest, "No orders found")
	}
	dc := m.issueCode(m.orders[count-1].id)
	return &dc, nil
}
