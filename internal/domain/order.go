package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа на площадке.
type OrderStatus string

const (
	// OrderStatusOpen - заказ создан, позиции можно менять.
	OrderStatusOpen OrderStatus = "OPEN"
	// OrderStatusInProgress - часть позиций отправлена на приготовление.
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	// OrderStatusCompleted - заказ оплачен и закрыт.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled - заказ отменён (например, аннулирована последняя позиция).
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal сообщает, что заказ больше не изменяется.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// ItemSnapshot - денормализованные данные товара на момент создания позиции.
// Пишется один раз и никогда не обновляется из каталога.
type ItemSnapshot struct {
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
}

// ItemModifier - применённый модификатор со снимком имени и цены.
type ItemModifier struct {
	ModifierID string          `json:"modifier_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID      string
	OrderID string
	// ProductID пуст для серийных позиций.
	ProductID string
	Snapshot  ItemSnapshot
	Quantity  int32
	UnitPrice decimal.Decimal
	Modifiers []ItemModifier
	Total     decimal.Decimal
	Notes     string
	// SentToPrepAt заполняется при отправке позиции на приготовление.
	SentToPrepAt *time.Time
	// SerializedUnitID связывает позицию с проданной серийной единицей.
	SerializedUnitID string
	Comped           bool
	PaymentIDs       []string
	CreatedAt        time.Time
}

// LineTotal считает сумму строки: qty × (цена + модификаторы), округление до копеек.
func (i OrderItem) LineTotal() decimal.Decimal {
	unit := i.UnitPrice
	for _, m := range i.Modifiers {
		unit = unit.Add(m.Price)
	}
	return unit.Mul(decimal.NewFromInt32(i.Quantity)).Round(2)
}

// ModifierKey возвращает отсортированный набор идентификаторов модификаторов.
func (i OrderItem) ModifierKey() []string {
	ids := make([]string, 0, len(i.Modifiers))
	for _, m := range i.Modifiers {
		ids = append(ids, m.ModifierID)
	}
	slices.Sort(ids)
	return ids
}

// DiscountType - тип правила скидки.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	DiscountCoupon      DiscountType = "COUPON"
	// DiscountComp создаётся операцией comp: списание стоимости позиций с сохранением строк.
	DiscountComp DiscountType = "COMP"
)

// Valid сообщает, может ли тип быть применён через ApplyDiscount.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountCoupon:
		return true
	default:
		return false
	}
}

// OrderDiscount - скидка, применённая к заказу или к части позиций.
type OrderDiscount struct {
	ID   string
	Type DiscountType
	// Value - процент для PERCENTAGE, сумма для FIXED_AMOUNT/COUPON.
	Value decimal.Decimal
	// ItemIDs ограничивает скидку позициями; пусто - на весь заказ.
	ItemIDs   []string
	Amount    decimal.Decimal
	Code      string
	AppliedBy string
	Reason    string
	CreatedAt time.Time
}

// OrderCustomer - привязка клиента к заказу.
type OrderCustomer struct {
	OrderID    string
	CustomerID string
	IsPrimary  bool
	AddedAt    time.Time
}

// Order агрегирует состояние заказа, его позиции, скидки и клиентов.
type Order struct {
	ID               string
	VenueID          string
	Version          int64
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	PaidAmount       decimal.Decimal
	RemainingBalance decimal.Decimal
	Items            []OrderItem
	Discounts        []OrderDiscount
	Customers        []OrderCustomer
	Payments         []Payment
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOrder создаёт пустой открытый заказ с версией 1.
func NewOrder(id, venueID string, now time.Time) Order {
	return Order{
		ID:            id,
		VenueID:       venueID,
		Version:       1,
		Status:        OrderStatusOpen,
		PaymentStatus: PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// EnsureMutable проверяет, что позиции и скидки заказа ещё можно менять.
func (o *Order) EnsureMutable() error {
	if o.PaymentStatus == PaymentStatusPaid {
		return ErrOrderPaid
	}
	if o.Status.IsTerminal() {
		return ErrOrderClosed
	}
	return nil
}

// ItemIndex возвращает индекс позиции по идентификатору или -1.
func (o *Order) ItemIndex(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// PrimaryCustomer возвращает основного клиента, если он есть.
func (o *Order) PrimaryCustomer() (OrderCustomer, bool) {
	for _, c := range o.Customers {
		if c.IsPrimary {
			return c, true
		}
	}
	return OrderCustomer{}, false
}

// CustomerIndex возвращает индекс привязки клиента или -1.
func (o *Order) CustomerIndex(customerID string) int {
	for i := range o.Customers {
		if o.Customers[i].CustomerID == customerID {
			return i
		}
	}
	return -1
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			item.Modifiers = slices.Clone(item.Modifiers)
			item.PaymentIDs = slices.Clone(item.PaymentIDs)
			if item.SentToPrepAt != nil {
				ts := *item.SentToPrepAt
				item.SentToPrepAt = &ts
			}
			out.Items[i] = item
		}
	}
	if o.Discounts != nil {
		out.Discounts = make([]OrderDiscount, len(o.Discounts))
		for i, d := range o.Discounts {
			d.ItemIDs = slices.Clone(d.ItemIDs)
			out.Discounts[i] = d
		}
	}
	out.Customers = slices.Clone(o.Customers)
	out.Payments = slices.Clone(o.Payments)
	return out
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.VenueID == "" {
		errs = append(errs, ErrVenueRequired)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrPriceInvalid)
		}
	}

	primaries := 0
	for _, c := range o.Customers {
		if c.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 || (len(o.Customers) > 0 && primaries == 0) {
		errs = append(errs, ErrPrimaryAlreadyAssigned)
	}

	return errs
}
