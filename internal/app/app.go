// Package app собирает сервис заказов: хранилище, операции над заказами,
// outbox с доставкой в Kafka, приём подтверждений оплат и служебные серверы.
package app

import (
	"context"
	"errors"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/ordering"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const gracefulStopTimeout = 5 * time.Second

// Run поднимает сервис и блокируется до отмены ctx или падения gRPC сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()
	changes := outbox.NewChangePublisher(deps.outboxRepo, orderMetrics, logger.WithField("layer", "change-publisher"))
	orders := ordering.NewService(deps.store,
		ordering.WithLogger(logger.WithField("layer", "ordering")),
		ordering.WithMetrics(orderMetrics),
		ordering.WithPublisher(changes),
		ordering.WithRetry(ordering.RetryConfig{
			MaxAttempts:  cfg.AttachMaxAttempts,
			InitialDelay: cfg.AttachInitialDelay,
		}),
	)

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		kafkaProducer = nil
	}
	defer closeKafka(kafkaProducer, logger)

	var eventPublisher, dlqPublisher domain.OutboxPublisher
	if kafkaProducer != nil {
		eventPublisher = kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicOrderEvents)
		dlqPublisher = kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
	} else {
		eventPublisher = outbox.NewLogPublisher(logger.WithField("layer", "outbox-log"))
	}

	worker := outbox.NewWorker(deps.outboxRepo, eventPublisher,
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	workerCancel, workerDone := startBackground(ctx, worker.Run)
	defer shutdownOutboxWorker(workerCancel, workerDone, logger)

	retention := outbox.NewRetentionWorker(deps.retention,
		outbox.WithRetentionLogger(logger.WithField("layer", "outbox-retention")),
		outbox.WithRetentionInterval(cfg.OutboxRetentionInterval),
		outbox.WithRetentionBatchSize(cfg.OutboxRetentionBatchSize),
		outbox.WithRetentionTTL(cfg.OutboxRetentionTTL),
	)
	retentionCancel, retentionDone := startBackground(ctx, retention.Run)
	defer shutdownOutboxWorker(retentionCancel, retentionDone, logger)

	if kafkaProducer != nil {
		consumer, err := initPaymentConsumer(cfg, orders, kafkaProducer, logger)
		switch {
		case err != nil:
			logger.WithError(err).Warn("failed to create payment consumer, settlements will not be received")
		case consumer != nil:
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if stopErr := consumer.Stop(); stopErr != nil {
					logger.WithError(stopErr).Warn("failed to stop payment consumer")
				}
			}()
		}
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.Register("storage", deps.storageChecker, true)
	}
	healthHandler.Register("outbox", healthcheck.OutboxBacklogChecker{
		Stats:      deps.outboxRepo.Stats,
		MaxPending: cfg.OutboxBacklogMaxPending,
		MaxAge:     cfg.OutboxBacklogMaxAge,
	}, false)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(gracefulStopTimeout):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// startBackground запускает run в отдельной горутине с собственной отменой.
func startBackground(ctx context.Context, run func(context.Context)) (context.CancelFunc, chan struct{}) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(runCtx)
	}()
	return cancel, done
}

// shutdownOutboxWorker отменяет фоновый цикл и ждёт его завершения.
func shutdownOutboxWorker(cancel func(), done chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(gracefulStopTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}
