package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction - тип действия персонала, требующего аудита.
type AuditAction string

const (
	AuditVoid     AuditAction = "VOID"
	AuditComp     AuditAction = "COMP"
	AuditDiscount AuditAction = "DISCOUNT"
	AuditCancel   AuditAction = "CANCEL"
)

// AuditRecord фиксирует, кто, что и почему изменил в заказе.
type AuditRecord struct {
	OrderID   string
	VenueID   string
	Action    AuditAction
	StaffID   string
	Reason    string
	Amount    decimal.Decimal
	ItemNames []string
	Occurred  time.Time
}
