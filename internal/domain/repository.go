package domain

import "context"

// TxOptions задаёт параметры транзакции.
type TxOptions struct {
	// Serializable включает строгую изоляцию (нужна для решений вида "посчитать и вставить").
	Serializable bool
	ReadOnly     bool
}

// Store открывает атомарные единицы работы над заказами и складом серийных единиц.
type Store interface {
	// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	WithinTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// Tx даёт доступ к репозиториям внутри одной транзакции.
type Tx interface {
	Orders() OrderRepository
	Customers() CustomerRepository
	Catalog() CatalogRepository
	Units() UnitRepository
	Audit() AuditRepository
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями и скидками.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ площадки или ErrOrderNotFound.
	Get(ctx context.Context, venueID, orderID string) (Order, error)
	// FindByItem возвращает заказ, которому принадлежит позиция, без привязки к площадке.
	FindByItem(ctx context.Context, itemID string) (Order, error)
	// Save применяет обновления с учётом optimistic locking: order.Version - ожидаемая
	// версия, в хранилище записывается Version+1. Привязки клиентов не трогает.
	Save(ctx context.Context, order Order) error
	// AddCustomer вставляет привязку; второй основной клиент даёт ErrPrimaryAlreadyAssigned.
	AddCustomer(ctx context.Context, link OrderCustomer) error
	// RemoveCustomer удаляет привязку или возвращает ErrCustomerNotFound.
	RemoveCustomer(ctx context.Context, orderID, customerID string) error
	// SetPrimary назначает клиента основным.
	SetPrimary(ctx context.Context, orderID, customerID string) error
	// ClearCustomers удаляет все привязки заказа.
	ClearCustomers(ctx context.Context, orderID string) error
}

// CustomerRepository хранит карточки клиентов.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) error
	Get(ctx context.Context, venueID, customerID string) (Customer, error)
}

// CatalogRepository - чтение каталога площадки.
type CatalogRepository interface {
	Venue(ctx context.Context, venueID string) (Venue, error)
	Product(ctx context.Context, venueID, productID string) (Product, error)
	Modifiers(ctx context.Context, venueID string, ids []string) ([]Modifier, error)
}

// UnitRepository хранит серийные единицы.
type UnitRepository interface {
	// FindAtVenue ищет код в пределах площадки.
	FindAtVenue(ctx context.Context, venueID, code string) (SerializedUnit, error)
	// FindShared ищет код в общем пуле организации.
	FindShared(ctx context.Context, organizationID, code string) (SerializedUnit, error)
	Get(ctx context.Context, id string) (SerializedUnit, error)
	// Create регистрирует единицу; повтор кода даёт ErrDuplicateCode.
	Create(ctx context.Context, unit SerializedUnit) error
	Update(ctx context.Context, unit SerializedUnit) error
}

// AuditRepository хранит записи аудита действий персонала.
type AuditRepository interface {
	Append(ctx context.Context, record AuditRecord) error
	List(ctx context.Context, orderID string) ([]AuditRecord, error)
}
