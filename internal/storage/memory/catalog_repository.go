package memory

import (
	"context"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type catalogRepository struct {
	st *state
}

func (r catalogRepository) Venue(_ context.Context, venueID string) (domain.Venue, error) {
	v, ok := r.st.venues[venueID]
	if !ok {
		return domain.Venue{}, domain.ErrVenueNotFound
	}
	return v, nil
}

func (r catalogRepository) Product(_ context.Context, venueID, productID string) (domain.Product, error) {
	p, ok := r.st.products[productID]
	if !ok || p.VenueID != venueID || !p.Active {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (r catalogRepository) Modifiers(_ context.Context, venueID string, ids []string) ([]domain.Modifier, error) {
	result := make([]domain.Modifier, 0, len(ids))
	for _, id := range ids {
		m, ok := r.st.modifiers[id]
		if !ok || m.VenueID != venueID {
			return nil, domain.ErrModifierNotFound
		}
		result = append(result, m)
	}
	return result, nil
}

type customerRepository struct {
	st *state
}

func (r customerRepository) Create(_ context.Context, customer domain.Customer) error {
	if _, exists := r.st.customers[customer.ID]; exists {
		return domain.ErrCustomerExists
	}
	r.st.customers[customer.ID] = customer
	return nil
}

func (r customerRepository) Get(_ context.Context, venueID, customerID string) (domain.Customer, error) {
	c, ok := r.st.customers[customerID]
	if !ok || c.VenueID != venueID {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return c, nil
}

var (
	_ domain.CatalogRepository  = catalogRepository{}
	_ domain.CustomerRepository = customerRepository{}
)
