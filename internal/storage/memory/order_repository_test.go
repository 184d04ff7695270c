package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func newOrder() domain.Order {
	now := time.Now().UTC()
	order := domain.NewOrder("order-1", "venue-1", now)
	order.Items = []domain.OrderItem{
		{
			ID:        "item-1",
			OrderID:   order.ID,
			ProductID: "product-1",
			Snapshot:  domain.ItemSnapshot{Name: "Latte"},
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("3.50"),
			CreatedAt: now,
		},
	}
	domain.Recalculate(&order)
	return order
}

func within(t *testing.T, store *memory.Store, fn func(ctx context.Context, tx domain.Tx) error) error {
	t.Helper()
	return store.WithinTx(context.Background(), domain.TxOptions{}, fn)
}

func TestOrderRepository_CreateGet(t *testing.T) {
	store := memory.NewStore()
	order := newOrder()

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = within(t, store, func(ctx context.Context, tx domain.Tx) error {
		stored, err := tx.Orders().Get(ctx, order.VenueID, order.ID)
		if err != nil {
			return err
		}
		if stored.ID != order.ID || !stored.Total.Equal(decimal.RequireFromString("7")) {
			t.Fatalf("unexpected order: %+v", stored)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
}

func TestOrderRepository_GetScopedToVenue(t *testing.T) {
	store := memory.NewStore()
	order := newOrder()
	_ = within(t, store, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Create(ctx, order)
	})

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Orders().Get(ctx, "venue-2", order.ID)
		return err
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	store := memory.NewStore()
	order := newOrder()
	_ = within(t, store, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Create(ctx, order)
	})

	if err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Save(ctx, order)
	}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Save(ctx, order)
	})
	if !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestStore_RollbackOnError(t *testing.T) {
	store := memory.NewStore()
	order := newOrder()
	boom := errors.New("boom")

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = within(t, store, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Orders().Get(ctx, order.VenueID, order.ID)
		return err
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected rolled back order to be absent, got %v", err)
	}
}

func TestOrderRepository_OnePrimaryCustomer(t *testing.T) {
	store := memory.NewStore()
	order := newOrder()
	now := time.Now().UTC()
	_ = within(t, store, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Create(ctx, order)
	})

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().AddCustomer(ctx, domain.OrderCustomer{OrderID: order.ID, CustomerID: "c1", IsPrimary: true, AddedAt: now}); err != nil {
			return err
		}
		return tx.Orders().AddCustomer(ctx, domain.OrderCustomer{OrderID: order.ID, CustomerID: "c2", IsPrimary: true, AddedAt: now})
	})
	if !errors.Is(err, domain.ErrPrimaryAlreadyAssigned) {
		t.Fatalf("expected ErrPrimaryAlreadyAssigned, got %v", err)
	}
}

func TestOrderRepository_SaveKeepsCustomers(t *testing.T) {
	store := memory.NewStore()
	order := newOrder()
	now := time.Now().UTC()

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if err := tx.Orders().AddCustomer(ctx, domain.OrderCustomer{OrderID: order.ID, CustomerID: "c1", IsPrimary: true, AddedAt: now}); err != nil {
			return err
		}
		// Save без клиентов не должен затирать привязки.
		return tx.Orders().Save(ctx, order)
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	_ = within(t, store, func(ctx context.Context, tx domain.Tx) error {
		stored, err := tx.Orders().Get(ctx, order.VenueID, order.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(stored.Customers) != 1 || stored.Version != 2 {
			t.Fatalf("unexpected stored order: customers=%d version=%d", len(stored.Customers), stored.Version)
		}
		return nil
	})
}

func TestUnitRepository_ScopedCodes(t *testing.T) {
	store := memory.NewStore()
	store.SeedUnit(domain.SerializedUnit{ID: "u1", Code: "SIM-1", VenueID: "venue-1", Status: domain.UnitStatusAvailable})
	store.SeedUnit(domain.SerializedUnit{ID: "u2", Code: "SIM-1", OrganizationID: "org-1", Status: domain.UnitStatusAvailable})

	err := within(t, store, func(ctx context.Context, tx domain.Tx) error {
		atVenue, err := tx.Units().FindAtVenue(ctx, "venue-1", "SIM-1")
		if err != nil || atVenue.ID != "u1" {
			t.Fatalf("venue lookup: %+v %v", atVenue, err)
		}
		shared, err := tx.Units().FindShared(ctx, "org-1", "SIM-1")
		if err != nil || shared.ID != "u2" {
			t.Fatalf("shared lookup: %+v %v", shared, err)
		}
		if _, err := tx.Units().FindAtVenue(ctx, "venue-2", "SIM-1"); !errors.Is(err, domain.ErrUnitNotFound) {
			t.Fatalf("expected not found at other venue, got %v", err)
		}
		return tx.Units().Create(ctx, domain.SerializedUnit{ID: "u3", Code: "SIM-1", VenueID: "venue-1"})
	})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}
