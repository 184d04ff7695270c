package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// orderRepository работает с заказами внутри транзакционной копии состояния.
type orderRepository struct {
	st *state
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r orderRepository) Create(_ context.Context, order domain.Order) error {
	if _, exists := r.st.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.st.orders[order.ID] = order.Clone()
	return nil
}

// Get возвращает заказ площадки или ErrOrderNotFound.
func (r orderRepository) Get(_ context.Context, venueID, orderID string) (domain.Order, error) {
	order, ok := r.st.orders[orderID]
	if !ok || order.VenueID != venueID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	out := order.Clone()
	sortCustomers(out.Customers)
	return out, nil
}

// FindByItem ищет заказ по идентификатору позиции.
func (r orderRepository) FindByItem(ctx context.Context, itemID string) (domain.Order, error) {
	for _, order := range r.st.orders {
		if order.ItemIndex(itemID) >= 0 {
			return r.Get(ctx, order.VenueID, order.ID)
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r orderRepository) Save(_ context.Context, order domain.Order) error {
	current, ok := r.st.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	next := order.Clone()
	// Привязки клиентов меняются только отдельными методами.
	next.Customers = current.Customers
	next.Version++
	r.st.orders[order.ID] = next
	return nil
}

// AddCustomer добавляет привязку, соблюдая ограничение "один основной клиент".
func (r orderRepository) AddCustomer(_ context.Context, link domain.OrderCustomer) error {
	order, ok := r.st.orders[link.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.CustomerIndex(link.CustomerID) >= 0 {
		return nil
	}
	if _, hasPrimary := order.PrimaryCustomer(); hasPrimary && link.IsPrimary {
		return domain.ErrPrimaryAlreadyAssigned
	}
	order.Customers = append(order.Customers, link)
	r.st.orders[link.OrderID] = order
	return nil
}

// RemoveCustomer удаляет привязку клиента.
func (r orderRepository) RemoveCustomer(_ context.Context, orderID, customerID string) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	idx := order.CustomerIndex(customerID)
	if idx < 0 {
		return domain.ErrCustomerNotFound
	}
	customers := make([]domain.OrderCustomer, 0, len(order.Customers)-1)
	customers = append(customers, order.Customers[:idx]...)
	customers = append(customers, order.Customers[idx+1:]...)
	order.Customers = customers
	r.st.orders[orderID] = order
	return nil
}

// SetPrimary делает клиента основным и снимает флаг с остальных.
func (r orderRepository) SetPrimary(_ context.Context, orderID, customerID string) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.CustomerIndex(customerID) < 0 {
		return domain.ErrCustomerNotFound
	}
	customers := make([]domain.OrderCustomer, len(order.Customers))
	for i, c := range order.Customers {
		c.IsPrimary = c.CustomerID == customerID
		customers[i] = c
	}
	order.Customers = customers
	r.st.orders[orderID] = order
	return nil
}

// ClearCustomers удаляет все привязки заказа.
func (r orderRepository) ClearCustomers(_ context.Context, orderID string) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Customers = nil
	r.st.orders[orderID] = order
	return nil
}

func sortCustomers(customers []domain.OrderCustomer) {
	sort.SliceStable(customers, func(i, j int) bool {
		if !customers[i].AddedAt.Equal(customers[j].AddedAt) {
			return customers[i].AddedAt.Before(customers[j].AddedAt)
		}
		return customers[i].CustomerID < customers[j].CustomerID
	})
}

var _ domain.OrderRepository = orderRepository{}
