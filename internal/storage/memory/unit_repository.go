package memory

import (
	"context"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type unitRepository struct {
	st *state
}

func unitKey(u domain.SerializedUnit) string {
	if u.Shared() {
		return sharedKey(u.OrganizationID, u.Code)
	}
	return venueKey(u.VenueID, u.Code)
}

func venueKey(venueID, code string) string { return "venue/" + venueID + "/" + code }
func sharedKey(orgID, code string) string  { return "org/" + orgID + "/" + code }

func (r unitRepository) FindAtVenue(_ context.Context, venueID, code string) (domain.SerializedUnit, error) {
	return r.byKey(venueKey(venueID, code))
}

func (r unitRepository) FindShared(_ context.Context, organizationID, code string) (domain.SerializedUnit, error) {
	return r.byKey(sharedKey(organizationID, code))
}

func (r unitRepository) byKey(key string) (domain.SerializedUnit, error) {
	id, ok := r.st.unitCodes[key]
	if !ok {
		return domain.SerializedUnit{}, domain.ErrUnitNotFound
	}
	return r.st.units[id], nil
}

func (r unitRepository) Get(_ context.Context, id string) (domain.SerializedUnit, error) {
	u, ok := r.st.units[id]
	if !ok {
		return domain.SerializedUnit{}, domain.ErrUnitNotFound
	}
	return u, nil
}

func (r unitRepository) Create(_ context.Context, unit domain.SerializedUnit) error {
	key := unitKey(unit)
	if _, exists := r.st.unitCodes[key]; exists {
		return domain.ErrDuplicateCode
	}
	if _, exists := r.st.units[unit.ID]; exists {
		return domain.ErrDuplicateCode
	}
	r.st.units[unit.ID] = unit
	r.st.unitCodes[key] = unit.ID
	return nil
}

func (r unitRepository) Update(_ context.Context, unit domain.SerializedUnit) error {
	current, ok := r.st.units[unit.ID]
	if !ok {
		return domain.ErrUnitNotFound
	}
	if unitKey(current) != unitKey(unit) {
		delete(r.st.unitCodes, unitKey(current))
		r.st.unitCodes[unitKey(unit)] = unit.ID
	}
	r.st.units[unit.ID] = unit
	return nil
}

var _ domain.UnitRepository = unitRepository{}
