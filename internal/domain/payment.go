package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusUnpaid - по заказу не принято ни одного платежа.
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	// PaymentStatusPartiallyPaid - оплачена часть суммы.
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	// PaymentStatusPaid - остаток к оплате равен нулю, заказ заморожен.
	PaymentStatusPaid PaymentStatus = "PAID"
	// PaymentStatusRefunded - деньги возвращены клиенту.
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Payment описывает платёж, принятый по заказу.
type Payment struct {
	ID      string
	OrderID string
	Amount  decimal.Decimal
	// Reference - идентификатор операции у платёжного провайдера, может быть пустым.
	Reference string
	StaffID   string
	CreatedAt time.Time
}

// DerivePaymentStatus вычисляет статус оплаты по оплаченной сумме и итогу.
func DerivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentStatusUnpaid
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	default:
		return PaymentStatusPartiallyPaid
	}
}
