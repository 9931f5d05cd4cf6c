package service

import (
	"fmt"
	"time"

	"storefront/internal/domain"
)

// State состояние витрины на время жизни страницы. Меняется только через редьюсеры ниже.
type State struct {
	Items              []domain.Item
	Cart               []domain.CartItem
	AvailableDiscounts []domain.DiscountCode
	AppliedDiscount    *domain.DiscountCode
	DiscountCode       string
	AdminStats         *domain.AdminStats
	AdminVisible       bool
	Loading            bool
	LoadFailed         bool
	Error              Message
	Success            Message

	// generation of the latest cart / discount fetch; older results are dropped
	cartGen      uint64
	discountsGen uint64
}

func initialState() State {
	return State{Loading: true}
}

func loading(s State) State {
	s.Loading = true
	s.LoadFailed = false
	s.Error = Message{}
	return s
}

func loaded(s State, items []domain.Item) State {
	s.Loading = false
	s.LoadFailed = false
	s.Items = items
	return s
}

// loadFailed блокирует витрину постоянной ошибкой; списки остаются пустыми
func loadFailed(s State, text string) State {
	s.Loading = false
	s.LoadFailed = true
	s.Items = nil
	s.Cart = nil
	s.AvailableDiscounts = nil
	s.AppliedDiscount = nil
	s.DiscountCode = ""
	s.Error = persistent(text)
	return s
}

func cartFetched(s State, cart []domain.CartItem) State {
	s.Cart = cart
	return s
}

// discountsFetched заменяет список кодов; применённый код сбрасывается, если его больше нет среди свободных
func discountsFetched(s State, codes []domain.DiscountCode) State {
	s.AvailableDiscounts = codes
	if s.AppliedDiscount != nil {
		if _, ok := findUnused(codes, s.DiscountCode); !ok {
			s = removeDiscount(s)
		}
	}
	return s
}

func findUnused(codes []domain.DiscountCode, code string) (domain.DiscountCode, bool) {
	if code == "" {
		return domain.DiscountCode{}, false
	}
	for _, dc := range codes {
		if dc.Code == code && !dc.IsUsed {
			return dc, true
		}
	}
	return domain.DiscountCode{}, false
}

// applyDiscount выбирает код из доступных; неизвестный или использованный код ничего не меняет
func applyDiscount(s State, code string, now time.Time) (State, bool) {
	dc, ok := findUnused(s.AvailableDiscounts, code)
	if !ok {
		return s, false
	}
	s.DiscountCode = code
	s.AppliedDiscount = &dc
	s.Success = transient(fmt.Sprintf("Discount code %q applied!", code), now, SuccessTTL)
	return s, true
}

func removeDiscount(s State) State {
	s.DiscountCode = ""
	s.AppliedDiscount = nil
	return s
}

func checkedOut(s State, res domain.CheckoutResponse, now time.Time) State {
	s.Success = transient(fmt.Sprintf("Order placed successfully! Order ID: %d, Final Amount: $%s",
		res.OrderID, res.FinalAmount.StringFixed(2)), now, CheckoutSuccessTTL)
	s.Cart = nil
	return removeDiscount(s)
}

func toggleAdmin(s State) State {
	s.AdminVisible = !s.AdminVisible
	return s
}

func statsFetched(s State, stats domain.AdminStats) State {
	s.AdminStats = &stats
	return s
}

func showError(s State, text string, now time.Time) State {
	s.Error = transient(text, now, ErrorTTL)
	return s
}

func showSuccess(s State, text string, now time.Time) State {
	s.Success = transient(text, now, SuccessTTL)
	return s
}

// Totals пересчитываются на каждый рендер и нигде не хранятся
func (s State) Totals() domain.Totals {
	return domain.ComputeTotals(s.Cart, s.AppliedDiscount)
}
