package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/repository"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrDiscountUnavailable = errors.New("discount code not available")
)

// Storefront контроллер состояния витрины: принимает намерения пользователя,
// ходит в бэкенд и сворачивает ответы в State
type Storefront struct {
	gateway repository.Gateway
	userID  string
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

type Option func(*Storefront)

// WithClock overrides the clock used for message expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Storefront) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Storefront) { s.log = l }
}

func NewStorefront(gateway repository.Gateway, opts ...Option) *Storefront {
	s := &Storefront{
		gateway: gateway,
		userID:  domain.UserID,
		log:     zerolog.Nop(),
		now:     time.Now,
		state:   initialState(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Snapshot возвращает копию текущего состояния
func (s *Storefront) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Storefront) update(fn func(State) State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
}

func (s *Storefront) fail(text string) {
	now := s.now()
	s.update(func(st State) State { return showError(st, text, now) })
}

func (s *Storefront) succeed(text string) {
	now := s.now()
	s.update(func(st State) State { return showSuccess(st, text, now) })
}

func (s *Storefront) beginCart() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cartGen++
	return s.state.cartGen
}

func (s *Storefront) beginDiscounts() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.discountsGen++
	return s.state.discountsGen
}

// foldCart applies a cart fetched under gen unless a newer fetch started since,
// and reports whether it did. A change in line count of a non-empty cart refreshes the available discounts.
func (s *Storefront) foldCart(ctx context.Context, gen uint64, cart []domain.CartItem) bool {
	s.mu.Lock()
	if s.state.cartGen != gen {
		s.mu.Unlock()
		s.logger(ctx).Debug().Uint64("generation", gen).Msg("discarding stale cart")
		return false
	}
	prevLen := len(s.state.Cart)
	s.state = cartFetched(s.state, cart)
	s.mu.Unlock()

	if len(cart) > 0 && len(cart) != prevLen {
		s.refreshDiscounts(ctx)
	}
	return true
}

func (s *Storefront) foldDiscounts(ctx context.Context, gen uint64, codes []domain.DiscountCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.discountsGen != gen {
		s.logger(ctx).Debug().Uint64("generation", gen).Msg("discarding stale discount codes")
		return
	}
	s.state = discountsFetched(s.state, codes)
}

func (s *Storefront) logger(ctx context.Context) *zerolog.Logger {
	l := logger.FromContext(ctx, s.log)
	return &l
}

// Load первичная загрузка: товары, корзина и коды параллельно.
// Ошибка каталога фатальна, ошибки корзины и кодов дают пустые списки.
func (s *Storefront) Load(ctx context.Context) error {
	s.update(loading)
	cartGen := s.beginCart()
	discountsGen := s.beginDiscounts()

	var (
		items     []domain.Item
		cart      = []domain.CartItem{}
		discounts = []domain.DiscountCode{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.gateway.ListItems(gctx)
		if err != nil {
			return err
		}
		items = v
		return nil
	})
	g.Go(func() error {
		v, err := s.gateway.GetCart(gctx, s.userID)
		if err != nil {
			s.logger(ctx).Warn().Err(err).Msg("failed to load cart")
			return nil
		}
		cart = v
		return nil
	})
	g.Go(func() error {
		v, err := s.gateway.ListAvailableDiscountCodes(gctx)
		if err != nil {
			s.logger(ctx).Warn().Err(err).Msg("failed to load discount codes")
			return nil
		}
		discounts = v
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger(ctx).Error().Err(err).Msg("failed to load items")
		text := fmt.Sprintf("Failed to load items: %v", err)
		s.update(func(st State) State { return loadFailed(st, text) })
		return fmt.Errorf("load items: %w", err)
	}

	s.update(func(st State) State { return loaded(st, items) })
	s.foldDiscounts(ctx, discountsGen, discounts)
	s.foldCart(ctx, cartGen, cart)
	return nil
}

// Reload полная перезагрузка страницы: состояние с нуля и повторный Load
func (s *Storefront) Reload(ctx context.Context) error {
	s.update(func(st State) State {
		fresh := initialState()
		fresh.cartGen = st.cartGen
		fresh.discountsGen = st.discountsGen
		return fresh
	})
	return s.Load(ctx)
}

// refreshDiscounts фоновое обновление кодов, ошибки только логируются
func (s *Storefront) refreshDiscounts(ctx context.Context) {
	gen := s.beginDiscounts()
	codes, err := s.gateway.ListAvailableDiscountCodes(ctx)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("failed to load discount codes")
		return
	}
	s.foldDiscounts(ctx, gen, codes)
}

// AddItem добавляет одну единицу товара и перечитывает корзину
func (s *Storefront) AddItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		s.fail("Failed to add item to cart")
		return ErrInvalidInput
	}
	if _, err := s.gateway.AddToCart(ctx, s.userID, itemID, 1); err != nil {
		s.logger(ctx).Warn().Err(err).Int64("item_id", itemID).Msg("add to cart failed")
		s.fail("Failed to add item to cart")
		return err
	}
	gen := s.beginCart()
	cart, err := s.gateway.GetCart(ctx, s.userID)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("cart refetch failed")
		s.fail("Failed to add item to cart")
		return err
	}
	// a newer fetch owns the cart now; its outcome decides what the user sees
	if s.foldCart(ctx, gen, cart) {
		s.succeed("Item added to cart!")
	}
	return nil
}

// RemoveItem удаляет позицию и перечитывает корзину
func (s *Storefront) RemoveItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		s.fail("Failed to remove item from cart")
		return ErrInvalidInput
	}
	if err := s.gateway.RemoveFromCart(ctx, s.userID, itemID); err != nil {
		s.logger(ctx).Warn().Err(err).Int64("item_id", itemID).Msg("remove from cart failed")
		s.fail("Failed to remove item from cart")
		return err
	}
	gen := s.beginCart()
	cart, err := s.gateway.GetCart(ctx, s.userID)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("cart refetch failed")
		s.fail("Failed to remove item from cart")
		return err
	}
	s.foldCart(ctx, gen, cart)
	return nil
}

// ApplyDiscount локально выбирает код; на сервер он уходит только при оформлении
func (s *Storefront) ApplyDiscount(code string) error {
	now := s.now()
	applied := false
	s.update(func(st State) State {
		st, applied = applyDiscount(st, code, now)
		return st
	})
	if !applied {
		return ErrDiscountUnavailable
	}
	return nil
}

func (s *Storefront) RemoveDiscount() {
	s.update(removeDiscount)
}

// Checkout оформляет заказ с выбранным кодом (или без него)
func (s *Storefront) Checkout(ctx context.Context) (*domain.CheckoutResponse, error) {
	st := s.Snapshot()
	if len(st.Cart) == 0 {
		s.fail("Cart is empty")
		return nil, ErrEmptyCart
	}
	var code *string
	if st.DiscountCode != "" {
		c := st.DiscountCode
		code = &c
	}

	res, err := s.gateway.Checkout(ctx, s.userID, code)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("checkout failed")
		text := repository.DetailOf(err)
		if text == "" {
			text = "Failed to checkout"
		}
		s.fail(text)
		return nil, err
	}

	now := s.now()
	s.mu.Lock()
	// any cart fetch still in flight predates the order
	s.state.cartGen++
	s.state = checkedOut(s.state, *res, now)
	s.mu.Unlock()

	s.logger(ctx).Info().Int64("order_id", res.OrderID).Str("final_amount", res.FinalAmount.StringFixed(2)).Msg("order placed")
	s.refreshDiscounts(ctx)
	return res, nil
}

func (s *Storefront) ToggleAdmin() {
	s.update(toggleAdmin)
}

// LoadAdminStats заменяет снимок статистики свежим
func (s *Storefront) LoadAdminStats(ctx context.Context) error {
	stats, err := s.gateway.GetAdminStats(ctx)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("failed to load admin stats")
		s.fail("Failed to load admin stats")
		return err
	}
	s.update(func(st State) State { return statsFetched(st, *stats) })
	return nil
}

// GenerateDiscount выпускает код и перечитывает статистику и доступные коды
func (s *Storefront) GenerateDiscount(ctx context.Context) (*domain.DiscountCode, error) {
	dc, err := s.gateway.GenerateDiscountCode(ctx)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("generate discount failed")
		text := repository.DetailOf(err)
		if text == "" {
			text = "Failed to generate discount code"
		}
		s.fail(text)
		return nil, err
	}

	var g errgroup.Group
	g.Go(func() error {
		// failure surfaces its own banner
		_ = s.LoadAdminStats(ctx)
		return nil
	})
	g.Go(func() error {
		s.refreshDiscounts(ctx)
		return nil
	})
	_ = g.Wait()

	s.succeed("Discount code generated successfully!")
	return dc, nil
}
