package domain

import "github.com/shopspring/decimal"

// UserID идентификатор покупателя. Сессий нет, поэтому клиент всегда работает от одного пользователя.
const UserID = "user_123"

// Item товар каталога
type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	Description *string         `json:"description,omitempty"`
}

// CartItem позиция корзины (одна на пару пользователь/товар)
type CartItem struct {
	ID       int64 `json:"id"`
	ItemID   int64 `json:"item_id"`
	Quantity int64 `json:"quantity"`
	Item     Item  `json:"item"`
}

// DiscountCode одноразовый код скидки в процентах
type DiscountCode struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" swaggertype:"string"`
	IsUsed             bool            `json:"is_used"`
	CreatedAt          Timestamp       `json:"created_at" swaggertype:"string" format:"date-time"`
}

// AddToCartRequest тело запроса на добавление в корзину
type AddToCartRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int64 `json:"quantity"`
}

// CheckoutRequest тело запроса оформления заказа. nil DiscountCode уходит как null.
type CheckoutRequest struct {
	UserID       string  `json:"user_id"`
	DiscountCode *string `json:"discount_code"`
}

// CheckoutResponse результат оформленного заказа
type CheckoutResponse struct {
	OrderID        int64           `json:"order_id"`
	TotalAmount    decimal.Decimal `json:"total_amount" swaggertype:"string"`
	DiscountAmount decimal.Decimal `json:"discount_amount" swaggertype:"string"`
	FinalAmount    decimal.Decimal `json:"final_amount" swaggertype:"string"`
	DiscountCode   *string         `json:"discount_code,omitempty"`
}

// AdminStats снимок статистики продаж
type AdminStats struct {
	TotalItemsPurchased int64           `json:"total_items_purchased"`
	TotalPurchaseAmount decimal.Decimal `json:"total_purchase_amount" swaggertype:"string"`
	DiscountCodes       []DiscountCode  `json:"discount_codes"`
	TotalDiscountAmount decimal.Decimal `json:"total_discount_amount" swaggertype:"string"`
}
