package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

// runtimeDependencies - хранилища, выбранные по Config.StorageDriver.
type runtimeDependencies struct {
	store      domain.Store
	outboxRepo domain.OutboxRepository
	retention  domain.OutboxRetention
	// storageChecker nil, если хранилище не требует проверки доступности.
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d runtimeDependencies) close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		outboxRepo := memory.NewOutboxRepository()
		logger.Info("используется in-memory хранилище")
		return runtimeDependencies{
			store:      memory.NewStore(),
			outboxRepo: outboxRepo,
			retention:  outboxRepo,
		}, nil
	case StorageDriverPostgres:
		return initPostgres(ctx, cfg, logger)
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return runtimeDependencies{}, errors.New("postgres storage requires POS_POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithTxTimeout(cfg.TxTimeout))
	if err != nil {
		return runtimeDependencies{}, err
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("миграции postgres применены")
	}

	outboxRepo := postgres.NewOutboxRepository(store)
	checker := healthcheck.NewPingChecker(store.Ping)

	logger.Info("используется postgres хранилище")
	return runtimeDependencies{
		store:          store,
		outboxRepo:     outboxRepo,
		retention:      outboxRepo,
		storageChecker: checker,
		closeFn:        store.Close,
	}, nil
}
