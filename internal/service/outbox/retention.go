package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	defaultRetentionInterval  = 10 * time.Minute
	defaultRetentionBatchSize = 500
	defaultRetentionTTL       = 24 * time.Hour
)

var (
	outboxRetentionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_outbox_retention_runs_total",
		Help: "Total number of outbox retention runs grouped by result.",
	}, []string{"result"})
	outboxRetentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_outbox_retention_deleted_total",
		Help: "Total number of deleted delivered outbox records.",
	})
)

// RetentionOptions задаёт параметры очистки доставленных сообщений.
type RetentionOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	// TTL - сколько хранить доставленные сообщения для разбора инцидентов.
	TTL time.Duration
}

// RetentionOption настраивает RetentionWorker.
type RetentionOption func(*RetentionOptions)

// WithRetentionLogger задаёт logger.
func WithRetentionLogger(logger *log.Entry) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.Logger = logger
	}
}

// WithRetentionInterval задаёт интервал между циклами очистки.
func WithRetentionInterval(interval time.Duration) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.Interval = interval
	}
}

// WithRetentionBatchSize задаёт размер одного удаления.
func WithRetentionBatchSize(batchSize int) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.BatchSize = batchSize
	}
}

// WithRetentionTTL задаёт срок хранения доставленных сообщений.
func WithRetentionTTL(ttl time.Duration) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.TTL = ttl
	}
}

// RetentionWorker периодически удаляет доставленные сообщения старше TTL.
type RetentionWorker struct {
	repo      domain.OutboxRetention
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	ttl       time.Duration
}

// NewRetentionWorker создаёт воркер очистки outbox.
func NewRetentionWorker(repo domain.OutboxRetention, options ...RetentionOption) *RetentionWorker {
	opts := RetentionOptions{
		Interval:  defaultRetentionInterval,
		BatchSize: defaultRetentionBatchSize,
		TTL:       defaultRetentionTTL,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-retention")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRetentionInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRetentionBatchSize
	}
	if opts.TTL < 0 {
		opts.TTL = defaultRetentionTTL
	}

	return &RetentionWorker{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		ttl:       opts.TTL,
	}
}

// Run запускает очистку до отмены ctx.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("outbox retention is disabled: repo is nil")
		return
	}

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteSent(ctx, time.Now().UTC().Add(-w.ttl))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		outboxRetentionRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("outbox retention run failed")
		return
	}

	outboxRetentionRunsTotal.WithLabelValues("ok").Inc()
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("outbox retention completed")
	}
}

// DeleteSent удаляет доставленные сообщения, обновлённые не позже before, порциями batchSize.
func (w *RetentionWorker) DeleteSent(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteSent(before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted > 0 {
			outboxRetentionDeletedTotal.Add(float64(deleted))
		}
		if deleted < w.batchSize {
			return total, nil
		}
	}
}
