package ordering_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/clock"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/ordering"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

const (
	venueID = "venue-1"
	orgID   = "org-1"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "ordering-test")
}

// recordingPublisher запоминает события после коммита.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChangeEvent(nil), p.events...)
}

type fixture struct {
	store     *memory.Store
	svc       *ordering.Service
	publisher *recordingPublisher
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%03d", n.Add(1))
	}
}

func newFixture(t *testing.T, opts ...ordering.Option) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.SeedVenue(domain.Venue{ID: venueID, OrganizationID: orgID, Name: "Main"})
	store.SeedVenue(domain.Venue{ID: "venue-2", OrganizationID: orgID, Name: "Second"})
	store.SeedProduct(domain.Product{ID: "burger", VenueID: venueID, Name: "Burger", Category: "food", Price: dec("50"), Active: true})
	store.SeedProduct(domain.Product{ID: "fries", VenueID: venueID, Name: "Fries", Category: "food", Price: dec("20"), Active: true})
	store.SeedProduct(domain.Product{ID: "soda", VenueID: venueID, Name: "Soda", Category: "drinks", Price: dec("2.50"), Active: true})
	store.SeedModifier(domain.Modifier{ID: "cheese", VenueID: venueID, Name: "Cheese", Price: dec("1.50")})
	store.SeedModifier(domain.Modifier{ID: "bacon", VenueID: venueID, Name: "Bacon", Price: dec("2")})
	for i := 1; i <= 10; i++ {
		store.SeedCustomer(domain.Customer{ID: fmt.Sprintf("cust-%02d", i), VenueID: venueID, Name: fmt.Sprintf("Customer %d", i)})
	}

	publisher := &recordingPublisher{}
	base := []ordering.Option{
		ordering.WithLogger(loggerForTests()),
		ordering.WithClock(clock.NewTicking(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC), time.Second)),
		ordering.WithPublisher(publisher),
		ordering.WithIDGenerator(sequentialIDs()),
		ordering.WithRetry(ordering.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}),
	}
	svc := ordering.NewService(store, append(base, opts...)...)

	return &fixture{store: store, svc: svc, publisher: publisher}
}

func (f *fixture) open(t *testing.T) domain.Order {
	t.Helper()
	order, err := f.svc.OpenOrder(context.Background(), venueID)
	require.NoError(t, err)
	return order
}

func (f *fixture) add(t *testing.T, order domain.Order, items ...ordering.AddItemInput) domain.Order {
	t.Helper()
	updated, err := f.svc.AddItems(context.Background(), venueID, order.ID, order.Version, items)
	require.NoError(t, err)
	return updated
}

func item(productID string, qty int32, modifiers ...string) ordering.AddItemInput {
	return ordering.AddItemInput{ProductID: productID, Quantity: qty, ModifierIDs: modifiers}
}
