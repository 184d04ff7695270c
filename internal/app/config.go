package app

import "time"

// StorageDriver выбирает реализацию хранилища заказов.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	TxTimeout           time.Duration

	AttachMaxAttempts  int
	AttachInitialDelay time.Duration

	OutboxPollInterval       time.Duration
	OutboxBatchSize          int
	OutboxMaxAttempts        int
	OutboxRetryDelay         time.Duration
	OutboxRetentionTTL       time.Duration
	OutboxRetentionInterval  time.Duration
	OutboxRetentionBatchSize int

	// Пороги backlog outbox, после которых /healthz отдаёт degraded.
	OutboxBacklogMaxPending int
	OutboxBacklogMaxAge     time.Duration

	// KafkaBrokers - список брокеров через запятую. Пустая строка отключает Kafka.
	KafkaBrokers    string
	PaymentTopic    string
	PaymentGroupID  string
	ConsumerRetries int
	LogLevel        string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                 ":50051",
		MetricsAddr:              ":9090",
		StorageDriver:            StorageDriverMemory,
		PostgresAutoMigrate:      true,
		TxTimeout:                5 * time.Second,
		AttachMaxAttempts:        5,
		AttachInitialDelay:       20 * time.Millisecond,
		OutboxPollInterval:       time.Second,
		OutboxBatchSize:          100,
		OutboxMaxAttempts:        3,
		OutboxRetryDelay:         200 * time.Millisecond,
		OutboxRetentionTTL:       24 * time.Hour,
		OutboxRetentionInterval:  10 * time.Minute,
		OutboxRetentionBatchSize: 500,
		OutboxBacklogMaxPending:  1000,
		OutboxBacklogMaxAge:      5 * time.Minute,
		PaymentTopic:             "pos.payment.events",
		PaymentGroupID:           "pos-order-core",
		ConsumerRetries:          3,
		LogLevel:                 "info",
	}
}
