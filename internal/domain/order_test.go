package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	order := domain.NewOrder("order-1", "venue-1", now)
	order.Items = []domain.OrderItem{
		{
			ID:        "item-1",
			OrderID:   "order-1",
			ProductID: "prod-1",
			Snapshot:  domain.ItemSnapshot{Name: "Latte", Code: "LAT", Category: "coffee"},
			Quantity:  2,
			UnitPrice: dec("4.50"),
			Modifiers: []domain.ItemModifier{
				{ModifierID: "mod-b", Name: "Oat milk", Price: dec("0.60")},
				{ModifierID: "mod-a", Name: "Extra shot", Price: dec("0.90")},
			},
			CreatedAt: now,
		},
	}
	order.Customers = []domain.OrderCustomer{
		{OrderID: "order-1", CustomerID: "c-1", IsPrimary: true, AddedAt: now},
	}
	return order
}

func TestNewOrder_Defaults(t *testing.T) {
	order := domain.NewOrder("o", "v", time.Now())
	if order.Version != 1 {
		t.Fatalf("expected version 1, got %d", order.Version)
	}
	if order.Status != domain.OrderStatusOpen || order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("unexpected initial statuses: %s/%s", order.Status, order.PaymentStatus)
	}
}

func TestOrderItem_LineTotalIncludesModifiers(t *testing.T) {
	order := makeOrder()
	got := order.Items[0].LineTotal()
	if !got.Equal(dec("12.00")) {
		t.Fatalf("expected 12.00, got %s", got)
	}
}

func TestOrderItem_ModifierKeyIsSorted(t *testing.T) {
	order := makeOrder()
	key := order.Items[0].ModifierKey()
	if len(key) != 2 || key[0] != "mod-a" || key[1] != "mod-b" {
		t.Fatalf("unexpected modifier key %v", key)
	}
}

func TestOrderEnsureMutable(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{name: "open", mut: func(o *domain.Order) {}, want: nil},
		{name: "paid", mut: func(o *domain.Order) { o.PaymentStatus = domain.PaymentStatusPaid }, want: domain.ErrOrderPaid},
		{name: "cancelled", mut: func(o *domain.Order) { o.Status = domain.OrderStatusCancelled }, want: domain.ErrOrderClosed},
		{name: "completed", mut: func(o *domain.Order) { o.Status = domain.OrderStatusCompleted }, want: domain.ErrOrderClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if err := order.EnsureMutable(); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOrderClone_IsDeep(t *testing.T) {
	order := makeOrder()
	sent := time.Now()
	order.Items[0].SentToPrepAt = &sent
	order.Discounts = []domain.OrderDiscount{{ID: "d-1", ItemIDs: []string{"item-1"}}}

	clone := order.Clone()
	clone.Items[0].Modifiers[0].Name = "changed"
	clone.Items[0].Quantity = 99
	clone.Discounts[0].ItemIDs[0] = "other"
	clone.Customers[0].IsPrimary = false
	*clone.Items[0].SentToPrepAt = sent.Add(time.Hour)

	if order.Items[0].Modifiers[0].Name != "Oat milk" || order.Items[0].Quantity != 2 {
		t.Fatal("clone shares item state with original")
	}
	if order.Discounts[0].ItemIDs[0] != "item-1" {
		t.Fatal("clone shares discount scope with original")
	}
	if !order.Customers[0].IsPrimary {
		t.Fatal("clone shares customers with original")
	}
	if !order.Items[0].SentToPrepAt.Equal(sent) {
		t.Fatal("clone shares sent timestamp with original")
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{name: "no venue", mut: func(o *domain.Order) { o.VenueID = "" }},
		{name: "qty invalid", mut: func(o *domain.Order) { o.Items[0].Quantity = 0 }},
		{name: "price invalid", mut: func(o *domain.Order) { o.Items[0].UnitPrice = dec("-1") }},
		{name: "two primaries", mut: func(o *domain.Order) {
			o.Customers = append(o.Customers, domain.OrderCustomer{CustomerID: "c-2", IsPrimary: true})
		}},
		{name: "no primary", mut: func(o *domain.Order) { o.Customers[0].IsPrimary = false }},
	}

	valid := makeOrder()
	if errs := valid.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}
