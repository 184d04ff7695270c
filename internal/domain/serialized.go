package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitStatus - жизненный цикл серийной единицы (SIM-карта, товар с IMEI).
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "AVAILABLE"
	UnitStatusSold      UnitStatus = "SOLD"
	UnitStatusReturned  UnitStatus = "RETURNED"
	UnitStatusDamaged   UnitStatus = "DAMAGED"
)

// unitTransitions перечисляет допустимые переходы. Из RETURNED/DAMAGED
// в SOLD напрямую попасть нельзя: только через возврат на склад.
var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitStatusAvailable: {UnitStatusSold, UnitStatusDamaged},
	UnitStatusSold:      {UnitStatusReturned, UnitStatusDamaged},
	UnitStatusReturned:  {UnitStatusAvailable, UnitStatusDamaged},
}

// CanTransition сообщает, допустим ли переход from → to.
func (s UnitStatus) CanTransition(to UnitStatus) bool {
	for _, next := range unitTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// SerializedUnit - единица товара с уникальным кодом.
type SerializedUnit struct {
	ID   string
	Code string
	// VenueID пуст для единиц общего пула организации.
	VenueID        string
	OrganizationID string
	Category       string
	Price          decimal.Decimal
	Status         UnitStatus
	// OrderItemID - позиция заказа, которая использовала единицу.
	OrderItemID string
	SoldAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Shared сообщает, что единица принадлежит общему пулу организации.
func (u *SerializedUnit) Shared() bool {
	return u.VenueID == ""
}

// Transition переводит единицу в новый статус, проверяя граф переходов.
func (u *SerializedUnit) Transition(to UnitStatus, now time.Time) error {
	if u.Status == UnitStatusSold && to == UnitStatusSold {
		return ErrUnitAlreadySold
	}
	if !u.Status.CanTransition(to) {
		return ErrInvalidUnitTransition
	}
	u.Status = to
	u.UpdatedAt = now
	switch to {
	case UnitStatusSold:
		u.SoldAt = &now
	case UnitStatusAvailable:
		u.SoldAt = nil
		u.OrderItemID = ""
	}
	return nil
}

// SerialLookupStatus - результат проверки кода на кассе.
type SerialLookupStatus string

const (
	SerialAvailable    SerialLookupStatus = "available"
	SerialSold         SerialLookupStatus = "sold"
	SerialUnavailable  SerialLookupStatus = "unavailable"
	SerialUnregistered SerialLookupStatus = "unregistered"
)

// BulkImportResult - итог массовой загрузки кодов: каждый код обрабатывается отдельно.
type BulkImportResult struct {
	Created    int
	Duplicates []string
}
