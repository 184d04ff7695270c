package ordering

import (
	"context"
	"errors"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// NewCustomerInput - данные клиента, создаваемого прямо на кассе.
type NewCustomerInput struct {
	Name  string
	Phone string
	Email string
}

// AttachCustomer привязывает существующего клиента площадки к заказу.
//
// Первый привязанный клиент становится основным. Решение "основной или нет"
// принимается в сериализуемой транзакции, поэтому параллельные привязки к пустому
// заказу дают ровно одного основного. Повторная привязка ничего не меняет.
func (s *Service) AttachCustomer(ctx context.Context, venueID, orderID, customerID string) (order domain.Order, err error) {
	done := s.observe("attach_customer")
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.ErrVenueRequired
	}

	order, err = s.attach(ctx, venueID, orderID, customerID, nil)
	if err != nil {
		s.logFailure("attach_customer", venueID, orderID, err)
		return domain.Order{}, err
	}
	return order, nil
}

// CreateAndAttachCustomer создаёт клиента и привязывает его в одной транзакции.
func (s *Service) CreateAndAttachCustomer(ctx context.Context, venueID, orderID string, in NewCustomerInput) (order domain.Order, customer domain.Customer, err error) {
	done := s.observe("create_attach_customer")
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.Customer{}, domain.ErrVenueRequired
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.Order{}, domain.Customer{}, domain.ErrCustomerNameRequired
	}

	// ID выдаётся один раз: повтор транзакции не должен плодить клиентов.
	customer = domain.Customer{
		ID:        s.newID(),
		VenueID:   venueID,
		Name:      strings.TrimSpace(in.Name),
		Phone:     in.Phone,
		Email:     in.Email,
		CreatedAt: s.clock.Now(),
	}

	order, err = s.attach(ctx, venueID, orderID, customer.ID, &customer)
	if err != nil {
		s.logFailure("create_attach_customer", venueID, orderID, err)
		return domain.Order{}, domain.Customer{}, err
	}
	return order, customer, nil
}

// attach выполняет привязку с повторами. Если вставка основного клиента упёрлась
// в ограничение уникальности, операция один раз повторяется с привязкой
// не-основным клиентом: клиент не теряется, а основной остаётся один.
func (s *Service) attach(ctx context.Context, venueID, orderID, customerID string, create *domain.Customer) (domain.Order, error) {
	order, changed, err := s.attachWithRetry(ctx, venueID, orderID, customerID, create, false)
	if errors.Is(err, domain.ErrPrimaryAlreadyAssigned) {
		s.metrics.RecordAttachDegraded()
		s.logger.WithFields(log.Fields{
			"order_id":    orderID,
			"customer_id": customerID,
		}).Warn("primary customer race detected, attaching as secondary")
		order, changed, err = s.attachWithRetry(ctx, venueID, orderID, customerID, create, true)
	}
	if err != nil {
		return domain.Order{}, err
	}

	if changed {
		s.afterCommit(ctx, order, effect{change: domain.ChangeCustomerAttached})
	}
	return order, nil
}

func (s *Service) attachWithRetry(ctx context.Context, venueID, orderID, customerID string, create *domain.Customer, secondaryOnly bool) (order domain.Order, changed bool, err error) {
	err = s.withRetry(ctx, "attach_customer", orderID, func() error {
		order, changed, err = s.attachOnce(ctx, venueID, orderID, customerID, create, secondaryOnly)
		return err
	})
	return order, changed, err
}

func (s *Service) attachOnce(ctx context.Context, venueID, orderID, customerID string, create *domain.Customer, secondaryOnly bool) (order domain.Order, changed bool, err error) {
	err = s.store.WithinTx(ctx, domain.TxOptions{Serializable: true}, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Orders().Get(ctx, venueID, orderID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return domain.ErrOrderClosed
		}

		if create != nil {
			if err := tx.Customers().Create(ctx, *create); err != nil {
				return err
			}
		} else if _, err := tx.Customers().Get(ctx, venueID, customerID); err != nil {
			return err
		}

		if current.CustomerIndex(customerID) >= 0 {
			order = current
			return nil
		}

		_, hasPrimary := current.PrimaryCustomer()
		isPrimary := !hasPrimary
		if secondaryOnly && len(current.Customers) > 0 {
			isPrimary = false
		}

		link := domain.OrderCustomer{
			OrderID:    orderID,
			CustomerID: customerID,
			IsPrimary:  isPrimary,
			AddedAt:    s.clock.Now(),
		}
		if err := tx.Orders().AddCustomer(ctx, link); err != nil {
			return err
		}

		current.UpdatedAt = link.AddedAt
		if err := tx.Orders().Save(ctx, current); err != nil {
			return err
		}

		current.Customers = append(current.Customers, link)
		current.Version++
		order = current
		changed = true
		return nil
	})
	return order, changed, err
}

// DetachCustomer отвязывает клиента. Если он был основным, основным становится
// самый ранний из оставшихся (при равенстве времени - меньший ID).
func (s *Service) DetachCustomer(ctx context.Context, venueID, orderID, customerID string) (order domain.Order, err error) {
	done := s.observe("detach_customer")
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.ErrVenueRequired
	}

	err = s.withRetry(ctx, "detach_customer", orderID, func() error {
		return s.store.WithinTx(ctx, domain.TxOptions{Serializable: true}, func(ctx context.Context, tx domain.Tx) error {
			current, err := tx.Orders().Get(ctx, venueID, orderID)
			if err != nil {
				return err
			}
			idx := current.CustomerIndex(customerID)
			if idx < 0 {
				return domain.ErrCustomerNotFound
			}
			wasPrimary := current.Customers[idx].IsPrimary

			if err := tx.Orders().RemoveCustomer(ctx, orderID, customerID); err != nil {
				return err
			}
			current.Customers = slices.Delete(current.Customers, idx, idx+1)

			if wasPrimary && len(current.Customers) > 0 {
				next := earliestCustomer(current.Customers)
				if err := tx.Orders().SetPrimary(ctx, orderID, next); err != nil {
					return err
				}
				for i := range current.Customers {
					current.Customers[i].IsPrimary = current.Customers[i].CustomerID == next
				}
			}
			if len(current.Customers) == 0 {
				current.Customers = nil
			}

			current.UpdatedAt = s.clock.Now()
			if err := tx.Orders().Save(ctx, current); err != nil {
				return err
			}
			current.Version++
			order = current
			return nil
		})
	})
	if err != nil {
		s.logFailure("detach_customer", venueID, orderID, err)
		return domain.Order{}, err
	}

	s.afterCommit(ctx, order, effect{change: domain.ChangeCustomerDetached})
	return order, nil
}

func earliestCustomer(customers []domain.OrderCustomer) string {
	best := customers[0]
	for _, c := range customers[1:] {
		if c.AddedAt.Before(best.AddedAt) || (c.AddedAt.Equal(best.AddedAt) && c.CustomerID < best.CustomerID) {
			best = c
		}
	}
	return best.CustomerID
}

// ListCustomers возвращает привязки заказа в порядке добавления.
func (s *Service) ListCustomers(ctx context.Context, venueID, orderID string) ([]domain.OrderCustomer, error) {
	order, err := s.GetOrder(ctx, venueID, orderID)
	if err != nil {
		return nil, err
	}
	return order.Customers, nil
}
