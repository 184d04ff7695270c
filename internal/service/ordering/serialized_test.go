package ordering_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/ordering"
)

func sale(code, category string) ordering.SerializedSaleInput {
	return ordering.SerializedSaleInput{Code: code, Category: category, StaffID: "staff-1"}
}

func TestAttachSerializedUnit_SellThroughRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.open(t)

	_, err := f.svc.AttachSerializedUnit(ctx, venueID, order.ID, order.Version, sale("8901000000000000001", ""))
	require.ErrorIs(t, err, domain.ErrCategoryRequired)
	require.True(t, domain.IsBadRequest(err))

	status, _, err := f.svc.LookupSerial(ctx, venueID, "8901000000000000001")
	require.NoError(t, err)
	require.Equal(t, domain.SerialUnregistered, status)

	in := sale("8901000000000000001", "sim")
	in.Price = decimal.NewNullDecimal(dec("15"))
	order, err = f.svc.AttachSerializedUnit(ctx, venueID, order.ID, order.Version, in)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	line := order.Items[0]
	require.Equal(t, "8901000000000000001", line.Snapshot.Name)
	require.Equal(t, "sim", line.Snapshot.Category)
	require.Equal(t, int32(1), line.Quantity)
	require.True(t, dec("15").Equal(order.Total))

	status, unit, err := f.svc.LookupSerial(ctx, venueID, "8901000000000000001")
	require.NoError(t, err)
	require.Equal(t, domain.SerialSold, status)
	require.Equal(t, line.ID, unit.OrderItemID)
	require.Equal(t, unit.ID, line.SerializedUnitID)

	other := f.open(t)
	_, err = f.svc.AttachSerializedUnit(ctx, venueID, other.ID, other.Version, sale("8901000000000000001", "sim"))
	require.ErrorIs(t, err, domain.ErrUnitAlreadySold)

	stored, err := f.svc.GetOrder(ctx, venueID, other.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Items)
}

func TestAttachSerializedUnit_SharedPoolAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.BulkImportUnits(ctx, venueID, ordering.BulkImportInput{
		Category: "sim",
		Price:    dec("10"),
		Codes:    []string{"SHARED-1"},
		Shared:   true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	// Единица общего пула видна на любой площадке организации.
	store2Order, err := f.svc.OpenOrder(ctx, "venue-2")
	require.NoError(t, err)
	order, err := f.svc.AttachSerializedUnit(ctx, "venue-2", store2Order.ID, store2Order.Version, sale("SHARED-1", ""))
	require.NoError(t, err)
	require.True(t, dec("10").Equal(order.Total))

	order, err = f.svc.VoidItems(ctx, "venue-2", order.ID, order.Version, []string{order.Items[0].ID}, "staff-1", "wrong sim")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCancelled, order.Status)

	status, unit, err := f.svc.LookupSerial(ctx, venueID, "SHARED-1")
	require.NoError(t, err)
	require.Equal(t, domain.SerialAvailable, status)
	require.Empty(t, unit.OrderItemID)
}

func TestQuickSale_DefersSoldUntilPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := sale("IMEI-1", "phone")
	in.Price = decimal.NewNullDecimal(dec("300"))
	order, err := f.svc.QuickSale(ctx, venueID, in)
	require.NoError(t, err)
	require.Equal(t, int64(1), order.Version)
	require.Len(t, order.Items, 1)
	require.True(t, dec("300").Equal(order.Total))

	status, unit, err := f.svc.LookupSerial(ctx, venueID, "IMEI-1")
	require.NoError(t, err)
	require.Equal(t, domain.SerialAvailable, status)
	require.Equal(t, unit.ID, order.Items[0].SerializedUnitID)

	order, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("100")})
	require.NoError(t, err)
	status, _, err = f.svc.LookupSerial(ctx, venueID, "IMEI-1")
	require.NoError(t, err)
	require.Equal(t, domain.SerialAvailable, status, "partial payment keeps the unit on the shelf")

	order, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("200")})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)

	status, unit, err = f.svc.LookupSerial(ctx, venueID, "IMEI-1")
	require.NoError(t, err)
	require.Equal(t, domain.SerialSold, status)
	require.Equal(t, order.Items[0].ID, unit.OrderItemID)
}

func TestQuickSale_UnitSoldElsewhereBlocksPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := sale("IMEI-2", "phone")
	in.Price = decimal.NewNullDecimal(dec("250"))
	quick, err := f.svc.QuickSale(ctx, venueID, in)
	require.NoError(t, err)

	other := f.open(t)
	_, err = f.svc.AttachSerializedUnit(ctx, venueID, other.ID, other.Version, sale("IMEI-2", ""))
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, venueID, quick.ID, quick.Version, ordering.PaymentInput{Amount: dec("0.01")})
	require.ErrorIs(t, err, domain.ErrInventoryUnavailable)

	_, err = f.svc.QuickSale(ctx, venueID, sale("IMEI-2", "phone"))
	require.ErrorIs(t, err, domain.ErrUnitAlreadySold)
}

func TestBulkImportUnits_ReportsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BulkImportUnits(ctx, venueID, ordering.BulkImportInput{Codes: []string{"A"}})
	require.ErrorIs(t, err, domain.ErrCategoryRequired)

	first, err := f.svc.BulkImportUnits(ctx, venueID, ordering.BulkImportInput{Category: "sim", Price: dec("5"), Codes: []string{"C"}})
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	result, err := f.svc.BulkImportUnits(ctx, venueID, ordering.BulkImportInput{
		Category: "sim",
		Price:    dec("5"),
		Codes:    []string{"A", "B", "A", " ", "C"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Equal(t, []string{"A", "C"}, result.Duplicates)

	status, _, err := f.svc.LookupSerial(ctx, venueID, "B")
	require.NoError(t, err)
	require.Equal(t, domain.SerialAvailable, status)
}

func TestUnitLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.open(t)

	in := sale("IMEI-3", "phone")
	in.Price = decimal.NewNullDecimal(dec("100"))
	order, err := f.svc.AttachSerializedUnit(ctx, venueID, order.ID, order.Version, in)
	require.NoError(t, err)

	_, err = f.svc.MarkUnitDamaged(ctx, venueID, "missing")
	require.ErrorIs(t, err, domain.ErrUnitNotFound)

	order, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{PaymentID: "pay-3", Amount: dec("100")})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)

	unit, err := f.svc.ReturnUnit(ctx, venueID, "IMEI-3", false)
	require.NoError(t, err)
	require.Equal(t, domain.UnitStatusReturned, unit.Status)

	unit, err = f.svc.MarkUnitDamaged(ctx, venueID, "IMEI-3")
	require.NoError(t, err)
	require.Equal(t, domain.UnitStatusDamaged, unit.Status)

	status, _, err := f.svc.LookupSerial(ctx, venueID, "IMEI-3")
	require.NoError(t, err)
	require.Equal(t, domain.SerialUnavailable, status)

	_, err = f.svc.ReturnUnit(ctx, venueID, "IMEI-3", true)
	require.ErrorIs(t, err, domain.ErrInvalidUnitTransition)

	other := f.open(t)
	_, err = f.svc.AttachSerializedUnit(ctx, venueID, other.ID, other.Version, sale("IMEI-3", ""))
	require.ErrorIs(t, err, domain.ErrInvalidUnitTransition)
}

func TestReturnUnit_RejectedWhileLineIsInOpenOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.open(t)

	first, err := f.svc.AttachSerializedUnit(ctx, venueID, first.ID, first.Version, sale("IMEI-9", "phone"))
	require.NoError(t, err)

	_, err = f.svc.ReturnUnit(ctx, venueID, "IMEI-9", true)
	require.ErrorIs(t, err, domain.ErrUnitInOpenOrder)
	require.True(t, domain.IsBadRequest(err))
	_, err = f.svc.MarkUnitDamaged(ctx, venueID, "IMEI-9")
	require.ErrorIs(t, err, domain.ErrUnitInOpenOrder)

	// Единица по-прежнему продана и не попадает во второй заказ.
	second := f.open(t)
	_, err = f.svc.AttachSerializedUnit(ctx, venueID, second.ID, second.Version, sale("IMEI-9", ""))
	require.ErrorIs(t, err, domain.ErrUnitAlreadySold)

	// Освобождение идёт через позицию заказа.
	_, err = f.svc.VoidItems(ctx, venueID, first.ID, first.Version, []string{first.Items[0].ID}, "manager-1", "wrong unit")
	require.NoError(t, err)

	second, err = f.svc.AttachSerializedUnit(ctx, venueID, second.ID, second.Version, sale("IMEI-9", ""))
	require.NoError(t, err)

	status, unit, err := f.svc.LookupSerial(ctx, venueID, "IMEI-9")
	require.NoError(t, err)
	require.Equal(t, domain.SerialSold, status)
	require.Equal(t, second.Items[0].ID, unit.OrderItemID)
}
