package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// state - снимок всех данных in-memory хранилища.
type state struct {
	venues    map[string]domain.Venue
	products  map[string]domain.Product
	modifiers map[string]domain.Modifier
	customers map[string]domain.Customer
	orders    map[string]domain.Order
	units     map[string]domain.SerializedUnit
	// unitCodes индексирует единицы по области видимости и коду.
	unitCodes map[string]string
	audit     map[string][]domain.AuditRecord
}

func newState() *state {
	return &state{
		venues:    make(map[string]domain.Venue),
		products:  make(map[string]domain.Product),
		modifiers: make(map[string]domain.Modifier),
		customers: make(map[string]domain.Customer),
		orders:    make(map[string]domain.Order),
		units:     make(map[string]domain.SerializedUnit),
		unitCodes: make(map[string]string),
		audit:     make(map[string][]domain.AuditRecord),
	}
}

func (s *state) clone() *state {
	out := &state{
		venues:    maps.Clone(s.venues),
		products:  maps.Clone(s.products),
		modifiers: maps.Clone(s.modifiers),
		customers: maps.Clone(s.customers),
		orders:    make(map[string]domain.Order, len(s.orders)),
		units:     maps.Clone(s.units),
		unitCodes: maps.Clone(s.unitCodes),
		audit:     make(map[string][]domain.AuditRecord, len(s.audit)),
	}
	for id, order := range s.orders {
		out.orders[id] = order.Clone()
	}
	for id, records := range s.audit {
		out.audit[id] = slices.Clone(records)
	}
	return out
}

// Store - in-memory реализация domain.Store для локальной разработки и тестов.
//
// Транзакции выполняются строго последовательно над копией состояния:
// при ошибке копия отбрасывается, при успехе подменяет текущее состояние.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx выполняет fn атомарно.
func (s *Store) WithinTx(ctx context.Context, opts domain.TxOptions, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.ErrTxTimeout
	}
	if !opts.ReadOnly {
		s.state = work
	}
	return nil
}

// SeedVenue добавляет площадку (для разработки и тестов).
func (s *Store) SeedVenue(v domain.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.venues[v.ID] = v
}

// SeedProduct добавляет товар каталога.
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

// SeedModifier добавляет модификатор каталога.
func (s *Store) SeedModifier(m domain.Modifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.modifiers[m.ID] = m
}

// SeedCustomer добавляет клиента.
func (s *Store) SeedCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.customers[c.ID] = c
}

// SeedUnit регистрирует серийную единицу в обход бизнес-проверок.
func (s *Store) SeedUnit(u domain.SerializedUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.units[u.ID] = u
	s.state.unitCodes[unitKey(u)] = u.ID
}

type tx struct {
	st *state
}

func (t *tx) Orders() domain.OrderRepository       { return orderRepository{st: t.st} }
func (t *tx) Customers() domain.CustomerRepository { return customerRepository{st: t.st} }
func (t *tx) Catalog() domain.CatalogRepository    { return catalogRepository{st: t.st} }
func (t *tx) Units() domain.UnitRepository         { return unitRepository{st: t.st} }
func (t *tx) Audit() domain.AuditRepository        { return auditRepository{st: t.st} }

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*tx)(nil)
)
