package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func line(id, price string, qty int32) domain.OrderItem {
	return domain.OrderItem{ID: id, Snapshot: domain.ItemSnapshot{Name: id}, Quantity: qty, UnitPrice: dec(price)}
}

func TestRecalculate_PercentageRederivesOnItemChange(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	order.Items = []domain.OrderItem{line("a", "50.00", 1)}
	order.Discounts = []domain.OrderDiscount{{ID: "d", Type: domain.DiscountPercentage, Value: dec("10")}}

	domain.Recalculate(&order)
	if !order.DiscountAmount.Equal(dec("5.00")) || !order.Total.Equal(dec("45.00")) {
		t.Fatalf("expected discount 5.00 total 45.00, got %s/%s", order.DiscountAmount, order.Total)
	}

	order.PaidAmount = dec("45")
	order.Items = append(order.Items, line("b", "20.00", 1))
	domain.Recalculate(&order)

	if !order.Subtotal.Equal(dec("70.00")) {
		t.Fatalf("expected subtotal 70.00, got %s", order.Subtotal)
	}
	if !order.DiscountAmount.Equal(dec("7.00")) {
		t.Fatalf("expected discount 7.00, got %s", order.DiscountAmount)
	}
	if !order.Total.Equal(dec("63.00")) {
		t.Fatalf("expected total 63.00, got %s", order.Total)
	}
	if !order.RemainingBalance.Equal(dec("18.00")) {
		t.Fatalf("expected remaining 18.00, got %s", order.RemainingBalance)
	}
}

func TestRecalculate_FixedAmountIsFrozen(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	order.Items = []domain.OrderItem{line("a", "30.00", 1)}
	order.Discounts = []domain.OrderDiscount{
		{ID: "fixed", Type: domain.DiscountFixedAmount, Value: dec("5"), Amount: dec("5.00")},
		{ID: "coupon", Type: domain.DiscountCoupon, Value: dec("2.5"), Amount: dec("2.50")},
	}

	domain.Recalculate(&order)
	order.Items = append(order.Items, line("b", "100.00", 1))
	domain.Recalculate(&order)

	if !order.DiscountAmount.Equal(dec("7.50")) {
		t.Fatalf("expected frozen discount 7.50, got %s", order.DiscountAmount)
	}
	if !order.Total.Equal(dec("122.50")) {
		t.Fatalf("expected total 122.50, got %s", order.Total)
	}
}

func TestRecalculate_RoundsEachDiscountBeforeSumming(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	order.Items = []domain.OrderItem{line("a", "0.35", 1)}
	order.Discounts = []domain.OrderDiscount{
		{ID: "d1", Type: domain.DiscountPercentage, Value: dec("5")},
		{ID: "d2", Type: domain.DiscountPercentage, Value: dec("5")},
		{ID: "d3", Type: domain.DiscountPercentage, Value: dec("5")},
	}

	domain.Recalculate(&order)

	// 5% от 0.35 = 0.0175 → 0.02 на каждую скидку. Округление суммы дало бы 0.05.
	if !order.Discounts[0].Amount.Equal(dec("0.02")) || !order.DiscountAmount.Equal(dec("0.06")) {
		t.Fatalf("unexpected rounding: %s / %s", order.Discounts[0].Amount, order.DiscountAmount)
	}
}

func TestRecalculate_ScopedPercentage(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	order.Items = []domain.OrderItem{line("a", "10.00", 2), line("b", "5.00", 1)}
	order.Discounts = []domain.OrderDiscount{
		{ID: "d", Type: domain.DiscountPercentage, Value: dec("50"), ItemIDs: []string{"b"}},
	}

	domain.Recalculate(&order)
	if !order.DiscountAmount.Equal(dec("2.50")) || !order.Total.Equal(dec("22.50")) {
		t.Fatalf("unexpected scoped totals: %s / %s", order.DiscountAmount, order.Total)
	}

	order.Items = order.Items[:1]
	domain.Recalculate(&order)
	if !order.DiscountAmount.IsZero() {
		t.Fatalf("discount scoped to removed item must drop to zero, got %s", order.DiscountAmount)
	}
}

func TestRecalculate_CompFollowsScopedLines(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	order.Items = []domain.OrderItem{line("a", "8.00", 1), line("b", "4.00", 1)}
	order.Discounts = []domain.OrderDiscount{{ID: "comp", Type: domain.DiscountComp, ItemIDs: []string{"b"}}}

	domain.Recalculate(&order)
	if !order.DiscountAmount.Equal(dec("4.00")) || !order.Total.Equal(dec("8.00")) {
		t.Fatalf("unexpected comp totals: %s / %s", order.DiscountAmount, order.Total)
	}
}

func TestRecalculate_PercentageSkipsCompedLines(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	comped := line("a", "20.00", 1)
	comped.Comped = true
	order.Items = []domain.OrderItem{comped, line("b", "50.00", 1)}
	order.Discounts = []domain.OrderDiscount{
		{ID: "comp", Type: domain.DiscountComp, ItemIDs: []string{"a"}},
		{ID: "pct", Type: domain.DiscountPercentage, Value: dec("10")},
	}

	domain.Recalculate(&order)
	if !order.Discounts[1].Amount.Equal(dec("5.00")) {
		t.Fatalf("expected percentage of billable lines 5.00, got %s", order.Discounts[1].Amount)
	}
	if !order.DiscountAmount.Equal(dec("25.00")) || !order.Total.Equal(dec("45.00")) {
		t.Fatalf("unexpected totals: %s / %s", order.DiscountAmount, order.Total)
	}
	if got := domain.ScopedSubtotal(&order, nil); !got.Equal(dec("50.00")) {
		t.Fatalf("expected billable scope 50.00, got %s", got)
	}
}

func TestRecalculate_TotalNeverNegative(t *testing.T) {
	order := domain.NewOrder("o-1", "v-1", time.Now())
	order.Items = []domain.OrderItem{line("a", "3.00", 1)}
	order.Discounts = []domain.OrderDiscount{{ID: "fixed", Type: domain.DiscountFixedAmount, Amount: dec("10.00")}}
	order.PaidAmount = dec("1")

	domain.Recalculate(&order)
	if !order.Total.IsZero() || !order.RemainingBalance.IsZero() {
		t.Fatalf("expected zero total and balance, got %s / %s", order.Total, order.RemainingBalance)
	}
}
