// Package ordering реализует операции над заказом: OCC-контроллер, изменения позиций,
// привязку клиентов, продажу серийных единиц и приём платежей.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/clock"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// Options задаёт зависимости сервиса.
type Options struct {
	Logger    *log.Entry
	Clock     clock.Clock
	Metrics   *metrics.OrderMetrics
	Publisher domain.ChangePublisher
	Inventory domain.InventoryStatusProvider
	Retry     RetryConfig
	NewID     func() string
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(c clock.Clock) Option {
	return func(opts *Options) {
		opts.Clock = c
	}
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithPublisher задаёт получателя событий об изменениях.
func WithPublisher(p domain.ChangePublisher) Option {
	return func(opts *Options) {
		opts.Publisher = p
	}
}

// WithInventory задаёт сервис остатков для проверки перед оплатой.
func WithInventory(p domain.InventoryStatusProvider) Option {
	return func(opts *Options) {
		opts.Inventory = p
	}
}

// WithRetry задаёт политику повторов для сериализуемых транзакций.
func WithRetry(cfg RetryConfig) Option {
	return func(opts *Options) {
		opts.Retry = cfg
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(fn func() string) Option {
	return func(opts *Options) {
		opts.NewID = fn
	}
}

// Service - точка входа для всех операций над заказами.
type Service struct {
	store     domain.Store
	clock     clock.Clock
	metrics   *metrics.OrderMetrics
	publisher domain.ChangePublisher
	inventory domain.InventoryStatusProvider
	retry     RetryConfig
	newID     func() string
	logger    *log.Entry
}

// NewService создаёт сервис поверх транзакционного хранилища.
func NewService(store domain.Store, options ...Option) *Service {
	opts := Options{Retry: DefaultRetryConfig()}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "ordering")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Service{
		store:     store,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		inventory: opts.Inventory,
		retry:     opts.Retry.normalized(),
		newID:     opts.NewID,
		logger:    logger,
	}
}

// effect описывает, что изменила операция: тип события и затронутые позиции.
type effect struct {
	change   domain.ChangeType
	affected []string
	// unitsSold и unitsRegistered попадают в метрики после коммита.
	unitsSold       int
	unitsRegistered int
}

type mutationFunc func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error)

// mutate - OCC-обёртка над любой операцией, меняющей заказ.
//
// В одной транзакции: загрузка заказа площадки, сверка версии, операция,
// пересчёт сумм и статуса оплаты, проверка инвариантов и сохранение с version+1.
// Событие публикуется только после коммита.
func (s *Service) mutate(ctx context.Context, operation, venueID, orderID string, expectedVersion int64, fn mutationFunc) (order domain.Order, err error) {
	done := s.observe(operation)
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.ErrVenueRequired
	}

	var eff effect
	err = s.store.WithinTx(ctx, domain.TxOptions{}, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Orders().Get(ctx, venueID, orderID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return domain.ErrOrderVersionConflict
		}

		eff, err = fn(ctx, tx, &current)
		if err != nil {
			return err
		}

		domain.Recalculate(&current)
		sold, err := s.settle(ctx, tx, &current)
		if err != nil {
			return err
		}
		eff.unitsSold += sold
		if errs := current.ValidateInvariants(); len(errs) > 0 {
			return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, errors.Join(errs...))
		}

		current.UpdatedAt = s.clock.Now()
		if err := tx.Orders().Save(ctx, current); err != nil {
			return err
		}

		order = current
		return nil
	})
	if err != nil {
		s.logFailure(operation, venueID, orderID, err)
		return domain.Order{}, err
	}

	order.Version++
	s.afterCommit(ctx, order, eff)
	return order, nil
}

// afterCommit публикует событие и обновляет счётчики. Ошибки здесь не возвращаются.
func (s *Service) afterCommit(ctx context.Context, order domain.Order, eff effect) {
	s.metrics.RecordUnitsSold(eff.unitsSold)
	s.metrics.RecordUnitsRegistered(eff.unitsRegistered)
	if eff.change == "" {
		return
	}
	s.publish(ctx, domain.NewChangeEvent(eff.change, order, eff.affected, s.clock.Now()))
}

func (s *Service) publish(ctx context.Context, event domain.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, event)
}

// observe отмечает начало операции и возвращает функцию завершения.
func (s *Service) observe(operation string) func(error) {
	start := time.Now()
	s.metrics.MutationStarted()
	return func(err error) {
		s.metrics.RecordMutation(operation, err, time.Since(start))
	}
}

func (s *Service) logFailure(operation, venueID, orderID string, err error) {
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"venue_id":  venueID,
		"order_id":  orderID,
	})
	switch {
	case domain.IsNotFound(err), domain.IsBadRequest(err):
		entry.Debug("order operation rejected")
	case domain.IsConflict(err):
		entry.Info("order operation conflict")
	default:
		entry.Warn("order operation failed")
	}
}

// OpenOrder создаёт пустой открытый заказ на площадке.
func (s *Service) OpenOrder(ctx context.Context, venueID string) (order domain.Order, err error) {
	done := s.observe("open_order")
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.ErrVenueRequired
	}

	err = s.store.WithinTx(ctx, domain.TxOptions{}, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Catalog().Venue(ctx, venueID); err != nil {
			return err
		}
		order = domain.NewOrder(s.newID(), venueID, s.clock.Now())
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		s.logFailure("open_order", venueID, "", err)
		return domain.Order{}, err
	}

	s.afterCommit(ctx, order, effect{change: domain.ChangeOrderCreated})
	return order, nil
}

// GetOrder возвращает актуальное состояние заказа.
func (s *Service) GetOrder(ctx context.Context, venueID, orderID string) (domain.Order, error) {
	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.ErrVenueRequired
	}

	var order domain.Order
	err := s.store.WithinTx(ctx, domain.TxOptions{ReadOnly: true}, func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(ctx, venueID, orderID)
		return err
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// AuditTrail возвращает записи аудита заказа площадки.
func (s *Service) AuditTrail(ctx context.Context, venueID, orderID string) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	err := s.store.WithinTx(ctx, domain.TxOptions{ReadOnly: true}, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Orders().Get(ctx, venueID, orderID); err != nil {
			return err
		}
		var err error
		records, err = tx.Audit().List(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	return records, nil
}
