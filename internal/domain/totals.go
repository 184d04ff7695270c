package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Recalculate пересчитывает суммы заказа после любого изменения набора позиций.
//
// Процентные скидки и comp пересчитываются от текущих позиций, фиксированные и
// купонные суммы остаются такими, какими были при применении. Процент считается
// только от платных позиций: списанные через comp строки уже покрыты своей
// скидкой. Каждая скидка округляется до копеек до суммирования.
func Recalculate(o *Order) {
	subtotal := decimal.Zero
	for i := range o.Items {
		o.Items[i].Total = o.Items[i].LineTotal()
		subtotal = subtotal.Add(o.Items[i].Total)
	}

	discountAmount := decimal.Zero
	for i := range o.Discounts {
		d := &o.Discounts[i]
		switch d.Type {
		case DiscountPercentage:
			d.Amount = d.Value.Mul(scopedSubtotal(o, d.ItemIDs, false)).Div(hundred).Round(2)
		case DiscountComp:
			d.Amount = scopedSubtotal(o, d.ItemIDs, true).Round(2)
		}
		discountAmount = discountAmount.Add(d.Amount)
	}

	o.Subtotal = subtotal
	o.DiscountAmount = discountAmount

	total := subtotal.Sub(discountAmount).Add(o.TaxAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total

	remaining := total.Sub(o.PaidAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	o.RemainingBalance = remaining
}

// ScopedSubtotal возвращает сумму платных позиций в области действия скидки.
func ScopedSubtotal(o *Order, itemIDs []string) decimal.Decimal {
	return scopedSubtotal(o, itemIDs, false)
}

func scopedSubtotal(o *Order, itemIDs []string, withComped bool) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		if len(itemIDs) > 0 && !slices.Contains(itemIDs, item.ID) {
			continue
		}
		if item.Comped && !withComped {
			continue
		}
		sum = sum.Add(item.Total)
	}
	return sum
}
