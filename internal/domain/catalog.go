package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue - торговая точка, принадлежащая организации.
type Venue struct {
	ID             string
	OrganizationID string
	Name           string
}

// Product - позиция каталога площадки.
type Product struct {
	ID       string
	VenueID  string
	Name     string
	Code     string
	Category string
	Price    decimal.Decimal
	Active   bool
}

// Modifier - модификатор товара (соус, размер и т.п.).
type Modifier struct {
	ID      string
	VenueID string
	Name    string
	Price   decimal.Decimal
}

// Customer - минимальная карточка клиента площадки.
type Customer struct {
	ID        string
	VenueID   string
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}
