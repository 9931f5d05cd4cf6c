package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

// Gateway контракт бэкенда магазина: одна операция на эндпоинт, без кэша и повторов
type Gateway interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetCart(ctx context.Context, userID string) ([]domain.CartItem, error)
	AddToCart(ctx context.Context, userID string, itemID, quantity int64) (*domain.CartItem, error)
	RemoveFromCart(ctx context.Context, userID string, itemID int64) error
	Checkout(ctx context.Context, userID string, discountCode *string) (*domain.CheckoutResponse, error)
	ListAvailableDiscountCodes(ctx context.Context) ([]domain.DiscountCode, error)
	GetAdminStats(ctx context.Context) (*domain.AdminStats, error)
	GenerateDiscountCode(ctx context.Context) (*domain.DiscountCode, error)
}

// APIError ответ бэкенда с кодом вне 2xx
type APIError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
}

// DetailOf возвращает текст detail от сервера или пустую строку
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}
