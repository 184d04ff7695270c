package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultTxTimeout       = 5 * time.Second
)

// SQLSTATE коды, которые различает хранилище.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Имена ограничений, на которые отображаются доменные ошибки.
const (
	constraintOnePrimary     = "order_customers_one_primary"
	constraintVenueUnitCode  = "serialized_units_venue_code"
	constraintSharedUnitCode = "serialized_units_shared_code"
	constraintOrdersPK       = "orders_pkey"
	constraintCustomersPK    = "customers_pkey"
)

// Option настраивает Store.
type Option func(*Store)

// WithTxTimeout задаёт предельную длительность одной транзакции.
func WithTxTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.txTimeout = timeout
		}
	}
}

// Store оборачивает SQL-подключение к PostgreSQL.
type Store struct {
	db        *sql.DB
	txTimeout time.Duration
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: db, txTimeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithinTx выполняет fn в одной транзакции с ограничением по времени.
// Сбой сериализации и дедлок возвращаются как domain.ErrSerialization,
// превышение таймаута - как domain.ErrTxTimeout.
func (s *Store) WithinTx(ctx context.Context, opts domain.TxOptions, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	sqlOpts := &sql.TxOptions{ReadOnly: opts.ReadOnly}
	if opts.Serializable {
		sqlOpts.Isolation = sql.LevelSerializable
	}

	sqlTx, err := s.db.BeginTx(txCtx, sqlOpts)
	if err != nil {
		return mapTxError(txCtx, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(txCtx, &tx{q: sqlTx, readOnly: opts.ReadOnly}); err != nil {
		return mapTxError(txCtx, err)
	}

	if err = sqlTx.Commit(); err != nil {
		return mapTxError(txCtx, fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func mapTxError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTxTimeout, err)
	}
	return mapPgError(err)
}

// mapPgError отображает ошибки PostgreSQL на доменную таксономию.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintOnePrimary:
			return fmt.Errorf("%w: %v", domain.ErrPrimaryAlreadyAssigned, err)
		case constraintVenueUnitCode, constraintSharedUnitCode:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateCode, err)
		case constraintOrdersPK:
			return fmt.Errorf("%w: %v", domain.ErrOrderExists, err)
		case constraintCustomersPK:
			return fmt.Errorf("%w: %v", domain.ErrCustomerExists, err)
		}
	}
	return err
}

// queryer - общее подмножество *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type tx struct {
	q        queryer
	readOnly bool
}

func (t *tx) Orders() domain.OrderRepository       { return &orderRepository{q: t.q} }
func (t *tx) Customers() domain.CustomerRepository { return &customerRepository{q: t.q} }
func (t *tx) Catalog() domain.CatalogRepository    { return &catalogRepository{q: t.q} }
func (t *tx) Units() domain.UnitRepository         { return &unitRepository{q: t.q, lock: !t.readOnly} }
func (t *tx) Audit() domain.AuditRepository        { return &auditRepository{q: t.q} }

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*tx)(nil)
)
