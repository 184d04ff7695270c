package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// auditRepository хранит записи аудита в памяти (для разработки/тестов).
type auditRepository struct {
	st *state
}

// Append добавляет запись в хранилище.
func (r auditRepository) Append(_ context.Context, record domain.AuditRecord) error {
	records := append(r.st.audit[record.OrderID], record)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Occurred.Before(records[j].Occurred)
	})
	r.st.audit[record.OrderID] = records
	return nil
}

// List возвращает записи заказа в хронологическом порядке.
func (r auditRepository) List(_ context.Context, orderID string) ([]domain.AuditRecord, error) {
	return slices.Clone(r.st.audit[orderID]), nil
}

var _ domain.AuditRepository = auditRepository{}
