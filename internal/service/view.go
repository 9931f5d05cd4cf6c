package service

import (
	"storefront/internal/domain"
)

// View снимок для рендера: состояние, видимые сообщения и производные суммы
type View struct {
	Loading            bool                  `json:"loading"`
	CatalogAvailable   bool                  `json:"catalog_available"`
	Items              []domain.Item         `json:"items"`
	Cart               []domain.CartItem     `json:"cart"`
	AvailableDiscounts []domain.DiscountCode `json:"available_discounts"`
	AppliedDiscount    *domain.DiscountCode  `json:"applied_discount"`
	AdminVisible       bool                  `json:"admin_visible"`
	AdminStats         *domain.AdminStats    `json:"admin_stats"`
	Error              string                `json:"error,omitempty"`
	Success            string                `json:"success,omitempty"`
	Totals             domain.Totals         `json:"totals"`
}

// View renders the current state at the controller's clock.
func (s *Storefront) View() View {
	st := s.Snapshot()
	now := s.now()
	return View{
		Loading:            st.Loading,
		CatalogAvailable:   !st.Loading && !st.LoadFailed,
		Items:              orEmpty(st.Items),
		Cart:               orEmpty(st.Cart),
		AvailableDiscounts: orEmpty(st.AvailableDiscounts),
		AppliedDiscount:    st.AppliedDiscount,
		AdminVisible:       st.AdminVisible,
		AdminStats:         st.AdminStats,
		Error:              st.Error.TextAt(now),
		Success:            st.Success.TextAt(now),
		Totals:             st.Totals(),
	}
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
