package domain

import "errors"

// Классы ошибок. Вызывающая сторона различает их через errors.Is:
// NotFound и BadRequest показываются пользователю, Conflict означает
// "перечитай заказ и повтори".
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)

// kindError связывает конкретную ошибку с её классом.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func notFound(msg string) error   { return &kindError{kind: ErrNotFound, msg: msg} }
func badRequest(msg string) error { return &kindError{kind: ErrBadRequest, msg: msg} }
func conflict(msg string) error   { return &kindError{kind: ErrConflict, msg: msg} }

var (
	// ErrOrderNotFound возвращается, если заказ не найден или принадлежит другой площадке.
	ErrOrderNotFound = notFound("order not found")
	// ErrItemNotFound - позиция заказа не найдена.
	ErrItemNotFound = notFound("order item not found")
	// ErrCustomerNotFound - клиент не найден на площадке или не привязан к заказу.
	ErrCustomerNotFound = notFound("customer not found")
	// ErrProductNotFound - товар каталога не найден или неактивен.
	ErrProductNotFound = notFound("product not found")
	// ErrModifierNotFound - модификатор каталога не найден.
	ErrModifierNotFound = notFound("modifier not found")
	// ErrDiscountNotFound - скидка заказа не найдена.
	ErrDiscountNotFound = notFound("discount not found")
	// ErrUnitNotFound - серийная единица не найдена.
	ErrUnitNotFound = notFound("serialized unit not found")
	// ErrVenueNotFound - площадка не найдена.
	ErrVenueNotFound = notFound("venue not found")
	// ErrOutboxRecordNotFound - запись outbox не найдена.
	ErrOutboxRecordNotFound = notFound("outbox record not found")

	// ErrVenueRequired - не передан идентификатор площадки.
	ErrVenueRequired = badRequest("venue_id is required")
	// ErrItemsRequired - пустой список позиций.
	ErrItemsRequired = badRequest("at least one item is required")
	// ErrItemQtyInvalid - количество должно быть больше нуля.
	ErrItemQtyInvalid = badRequest("item quantity must be greater than zero")
	// ErrPriceInvalid - цена не может быть отрицательной.
	ErrPriceInvalid = badRequest("price must be non-negative")
	// ErrOrderPaid - заказ полностью оплачен, изменять его нельзя.
	ErrOrderPaid = badRequest("order is fully paid")
	// ErrOrderClosed - заказ в терминальном статусе.
	ErrOrderClosed = badRequest("order is closed")
	// ErrStaffRequired - операция требует идентификатор сотрудника.
	ErrStaffRequired = badRequest("staff_id is required")
	// ErrReasonRequired - операция требует причину.
	ErrReasonRequired = badRequest("reason is required")
	// ErrDiscountTypeInvalid - неизвестный тип скидки.
	ErrDiscountTypeInvalid = badRequest("unsupported discount type")
	// ErrDiscountOutOfRange - значение скидки вне допустимого диапазона.
	ErrDiscountOutOfRange = badRequest("discount value out of range")
	// ErrNoItemsMatched - массовая операция не нашла ни одной позиции.
	ErrNoItemsMatched = badRequest("no items matched")
	// ErrItemAlreadyComped - позиция уже списана.
	ErrItemAlreadyComped = badRequest("item already comped")
	// ErrCodeRequired - пустой серийный код.
	ErrCodeRequired = badRequest("serial code is required")
	// ErrCategoryRequired - для незарегистрированного кода нужна категория.
	ErrCategoryRequired = badRequest("category is required to register an unknown serial code")
	// ErrUnitAlreadySold - серийная единица уже продана.
	ErrUnitAlreadySold = badRequest("serialized unit already sold")
	// ErrInvalidUnitTransition - недопустимый переход статуса серийной единицы.
	ErrInvalidUnitTransition = badRequest("invalid serialized unit status transition")
	// ErrPaymentAmountInvalid - сумма платежа должна быть больше нуля.
	ErrPaymentAmountInvalid = badRequest("payment amount must be greater than zero")
	// ErrOverpayment - платёж превышает остаток к оплате.
	ErrOverpayment = badRequest("payment exceeds remaining balance")
	// ErrInventoryUnavailable - позиция недоступна на складе при проверке перед оплатой.
	ErrInventoryUnavailable = badRequest("inventory unavailable")
	// ErrCustomerNameRequired - для нового клиента нужно имя.
	ErrCustomerNameRequired = badRequest("customer name is required")
	// ErrUnitInOpenOrder - единица продана в незакрытый заказ; её освобождают через void или удаление позиции.
	ErrUnitInOpenOrder = badRequest("serialized unit belongs to an open order")
	// ErrBalanceOutstanding - заказ нельзя закрыть без оплаты остатка.
	ErrBalanceOutstanding = badRequest("order has outstanding balance")
	// ErrOrderEmpty - в заказе нет позиций.
	ErrOrderEmpty = badRequest("order has no items")

	// ErrOrderVersionConflict сигнализирует о расхождении ожидаемой и текущей версии.
	ErrOrderVersionConflict = conflict("order version conflict")
	// ErrSerialization - транзакция не прошла сериализацию и исчерпала попытки.
	ErrSerialization = conflict("transaction serialization failure")
	// ErrTxTimeout - транзакция превысила таймаут.
	ErrTxTimeout = conflict("transaction timeout")
	// ErrPrimaryAlreadyAssigned - сработало ограничение "один основной клиент на заказ".
	ErrPrimaryAlreadyAssigned = conflict("order already has a primary customer")
	// ErrDuplicateCode - серийный код уже зарегистрирован.
	ErrDuplicateCode = conflict("serial code already registered")
	// ErrOrderExists - заказ с таким ID уже существует.
	ErrOrderExists = conflict("order already exists")
	// ErrCustomerExists - клиент с таким ID уже существует.
	ErrCustomerExists = conflict("customer already exists")
)

// ErrInvariantViolation - после операции заказ нарушает собственные инварианты.
// Не относится ни к одному классу: это ошибка сервиса, а не запроса.
var ErrInvariantViolation = errors.New("order invariants violated")

// IsNotFound проверяет, относится ли ошибка к классу NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBadRequest проверяет, относится ли ошибка к классу BadRequest.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsConflict проверяет, можно ли повторить операцию после перечитывания заказа.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsRetryable - транзиентные сбои транзакции, которые имеет смысл повторить сразу.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrTxTimeout)
}
