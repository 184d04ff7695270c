package app

import (
	"testing"
	"time"
)

func TestDefaultConfig_LocalOrderCore(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GRPCAddr != ":50051" || cfg.MetricsAddr != ":9090" {
		t.Fatalf("unexpected listen addresses %q %q", cfg.GRPCAddr, cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory || cfg.PostgresDSN != "" {
		t.Fatalf("local run must not need postgres, got %s %q", cfg.StorageDriver, cfg.PostgresDSN)
	}
	if cfg.KafkaBrokers != "" {
		t.Fatalf("local run must not need kafka, got %q", cfg.KafkaBrokers)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected auto migrations by default")
	}
	if cfg.PaymentTopic == "" || cfg.PaymentGroupID == "" {
		t.Error("expected payment topic and consumer group")
	}
}

func TestDefaultConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()

	positive := map[string]time.Duration{
		"TxTimeout":               cfg.TxTimeout,
		"AttachInitialDelay":      cfg.AttachInitialDelay,
		"OutboxPollInterval":      cfg.OutboxPollInterval,
		"OutboxRetentionTTL":      cfg.OutboxRetentionTTL,
		"OutboxRetentionInterval": cfg.OutboxRetentionInterval,
		"OutboxBacklogMaxAge":     cfg.OutboxBacklogMaxAge,
	}
	for name, d := range positive {
		if d <= 0 {
			t.Errorf("%s must be > 0, got %s", name, d)
		}
	}
	if cfg.OutboxRetryDelay < 0 {
		t.Errorf("OutboxRetryDelay must be >= 0, got %s", cfg.OutboxRetryDelay)
	}
	// Событие должно успеть пройти все попытки до того, как backlog сочтут отставшим.
	if cfg.OutboxBacklogMaxAge <= cfg.OutboxPollInterval*time.Duration(cfg.OutboxMaxAttempts) {
		t.Errorf("backlog age %s is shorter than a full retry cycle", cfg.OutboxBacklogMaxAge)
	}
	if cfg.OutboxRetentionTTL <= cfg.OutboxBacklogMaxAge {
		t.Errorf("sent events are purged (%s) before backlog alerts fire (%s)", cfg.OutboxRetentionTTL, cfg.OutboxBacklogMaxAge)
	}
}

func TestDefaultConfig_Limits(t *testing.T) {
	cfg := DefaultConfig()

	limits := map[string]int{
		"AttachMaxAttempts":        cfg.AttachMaxAttempts,
		"OutboxBatchSize":          cfg.OutboxBatchSize,
		"OutboxMaxAttempts":        cfg.OutboxMaxAttempts,
		"OutboxRetentionBatchSize": cfg.OutboxRetentionBatchSize,
		"OutboxBacklogMaxPending":  cfg.OutboxBacklogMaxPending,
		"ConsumerRetries":          cfg.ConsumerRetries,
	}
	for name, v := range limits {
		if v <= 0 {
			t.Errorf("%s must be > 0, got %d", name, v)
		}
	}
	if cfg.OutboxBacklogMaxPending < cfg.OutboxBatchSize {
		t.Errorf("one full batch (%d) must not mark the outbox as lagging (%d)", cfg.OutboxBatchSize, cfg.OutboxBacklogMaxPending)
	}
}
