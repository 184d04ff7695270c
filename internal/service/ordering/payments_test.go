package ordering_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/inventory"
	"github.com/vladislavdragonenkov/pos/internal/service/ordering"
)

func TestRecordPayment_InventoryPreflight(t *testing.T) {
	stock := inventory.NewStaticProvider()
	stock.SetStock(venueID, "burger", 1)
	f := newFixture(t, ordering.WithInventory(stock))
	ctx := context.Background()

	order := f.add(t, f.open(t), item("burger", 1), item("burger", 1, "cheese"), item("soda", 3))

	_, err := f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("10")})
	require.ErrorIs(t, err, domain.ErrInventoryUnavailable)

	stock.SetStock(venueID, "burger", 2)
	order, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("10")})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPartiallyPaid, order.PaymentStatus)

	stock.Err = errors.New("inventory offline")
	_, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("10")})
	require.Error(t, err)
	require.False(t, domain.IsBadRequest(err))
}

func TestRecordPayment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.add(t, f.open(t), item("fries", 1))

	_, err := f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("0")})
	require.ErrorIs(t, err, domain.ErrPaymentAmountInvalid)

	_, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version+1, ordering.PaymentInput{Amount: dec("5")})
	require.True(t, domain.IsVersionConflict(err))
}

func TestSettlePayment_RefetchesVersionAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.add(t, f.open(t), item("burger", 1))

	settled, err := f.svc.SettlePayment(ctx, venueID, order.ID, ordering.PaymentInput{PaymentID: "gw-1", Amount: dec("50"), Reference: "txn-1"})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, settled.PaymentStatus)
	require.Len(t, settled.Payments, 1)

	again, err := f.svc.SettlePayment(ctx, venueID, order.ID, ordering.PaymentInput{PaymentID: "gw-1", Amount: dec("50")})
	require.NoError(t, err)
	require.Equal(t, settled.Version, again.Version)
	require.Len(t, again.Payments, 1)

	_, err = f.svc.SettlePayment(ctx, venueID, "missing", ordering.PaymentInput{PaymentID: "gw-2", Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCloseOrder_FullyCompedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.add(t, f.open(t), item("fries", 1))

	order, err := f.svc.CompItems(ctx, venueID, order.ID, order.Version, []string{order.Items[0].ID}, "manager-1", "birthday")
	require.NoError(t, err)
	require.True(t, order.Total.IsZero())
	require.Equal(t, domain.PaymentStatusUnpaid, order.PaymentStatus)

	_, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{Amount: dec("0.01")})
	require.ErrorIs(t, err, domain.ErrOverpayment)

	order, err = f.svc.CloseOrder(ctx, venueID, order.ID, order.Version)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)

	_, err = f.svc.CloseOrder(ctx, venueID, order.ID, order.Version)
	require.ErrorIs(t, err, domain.ErrOrderClosed)

	events := f.publisher.Events()
	require.Equal(t, domain.ChangeOrderCompleted, events[len(events)-1].Type)
}

func TestCloseOrder_ZeroPriceQuickSaleSellsUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.QuickSale(ctx, venueID, ordering.SerializedSaleInput{
		Code: "SIM-0", Category: "sim", Price: decimal.NewNullDecimal(decimal.Zero), StaffID: "staff-1",
	})
	require.NoError(t, err)
	require.True(t, order.Total.IsZero())

	status, _, err := f.svc.LookupSerial(ctx, venueID, "SIM-0")
	require.NoError(t, err)
	require.Equal(t, domain.SerialAvailable, status)

	order, err = f.svc.CloseOrder(ctx, venueID, order.ID, order.Version)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)

	status, unit, err := f.svc.LookupSerial(ctx, venueID, "SIM-0")
	require.NoError(t, err)
	require.Equal(t, domain.SerialSold, status)
	require.Equal(t, order.Items[0].ID, unit.OrderItemID)
}

func TestCloseOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.open(t)
	_, err := f.svc.CloseOrder(ctx, venueID, empty.ID, empty.Version)
	require.ErrorIs(t, err, domain.ErrOrderEmpty)

	order := f.add(t, f.open(t), item("fries", 1))
	_, err = f.svc.CloseOrder(ctx, venueID, order.ID, order.Version)
	require.ErrorIs(t, err, domain.ErrBalanceOutstanding)
	require.True(t, domain.IsBadRequest(err))
}

func TestVoidAfterPartialPaymentCompletesCoveredOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.add(t, f.open(t), item("burger", 1), item("fries", 1))

	order, err := f.svc.ApplyDiscount(ctx, venueID, order.ID, order.Version, ordering.DiscountInput{
		Type: domain.DiscountPercentage, Value: dec("10"), StaffID: "staff-1", Reason: "regular",
	})
	require.NoError(t, err)
	require.True(t, order.Total.Equal(dec("63")), "total %s", order.Total)

	order, err = f.svc.RecordPayment(ctx, venueID, order.ID, order.Version, ordering.PaymentInput{PaymentID: "pay-1", Amount: dec("45")})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPartiallyPaid, order.PaymentStatus)

	fries := order.Items[1].ID
	order, err = f.svc.VoidItems(ctx, venueID, order.ID, order.Version, []string{fries}, "manager-1", "not served")
	require.NoError(t, err)
	require.True(t, order.RemainingBalance.IsZero())
	require.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)
}
