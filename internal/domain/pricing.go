package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CartTotal сумма price*quantity по корзине
func CartTotal(cart []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, ci := range cart {
		total = total.Add(ci.Item.Price.Mul(decimal.NewFromInt(ci.Quantity)))
	}
	return total
}

// DiscountAmount скидка с суммы по проценту
func DiscountAmount(total, percentage decimal.Decimal) decimal.Decimal {
	return total.Mul(percentage).Div(hundred)
}

// Totals производные суммы корзины
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal" swaggertype:"string"`
	Discount decimal.Decimal `json:"discount" swaggertype:"string"`
	Final    decimal.Decimal `json:"final" swaggertype:"string"`
}

// ComputeTotals считает суммы заново; discount nil означает отсутствие скидки.
func ComputeTotals(cart []CartItem, discount *DiscountCode) Totals {
	subtotal := CartTotal(cart)
	off := decimal.Zero
	if discount != nil {
		off = DiscountAmount(subtotal, discount.DiscountPercentage)
	}
	return Totals{Subtotal: subtotal, Discount: off, Final: subtotal.Sub(off)}
}
