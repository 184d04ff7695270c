package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Результаты мутаций для метки result.
const (
	ResultOK         = "ok"
	ResultNotFound   = "not_found"
	ResultBadRequest = "bad_request"
	ResultConflict   = "conflict"
	ResultError      = "error"
)

// OrderMetrics содержит метрики операций над заказами.
// Все методы безопасны для nil-получателя: сервис без метрик просто их не пишет.
type OrderMetrics struct {
	// Счётчики операций
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec

	// Гонки за основного клиента
	attachRetries  prometheus.Counter
	attachDegraded prometheus.Counter

	// Серийные единицы
	unitsRegistered prometheus.Counter
	unitsSold       prometheus.Counter

	publishFailures prometheus.Counter

	activeMutations prometheus.Gauge
}

// NewOrderMetrics создаёт метрики в стандартном регистре.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в переданном регистре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_order_mutations_total",
			Help: "Total number of order mutations grouped by operation and result",
		}, []string{"operation", "result"}),
		mutationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pos_order_mutation_duration_seconds",
			Help:    "Duration of order mutations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		attachRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_customer_attach_retries_total",
			Help: "Total number of customer attach retries after serialization failures",
		}),
		attachDegraded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_customer_attach_degraded_total",
			Help: "Total number of customer attaches downgraded to non-primary",
		}),
		unitsRegistered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_serialized_units_registered_total",
			Help: "Total number of serialized units registered (sell-through and bulk import)",
		}),
		unitsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_serialized_units_sold_total",
			Help: "Total number of serialized units marked as sold",
		}),
		publishFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_change_publish_failures_total",
			Help: "Total number of change notifications that could not be handed off",
		}),
		activeMutations: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_active_order_mutations",
			Help: "Number of order mutations currently in flight",
		}),
	}
}

// ResultLabel классифицирует ошибку операции для метки result.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case domain.IsNotFound(err):
		return ResultNotFound
	case domain.IsBadRequest(err):
		return ResultBadRequest
	case domain.IsConflict(err):
		return ResultConflict
	default:
		return ResultError
	}
}

// MutationStarted отмечает начало мутации.
func (m *OrderMetrics) MutationStarted() {
	if m == nil {
		return
	}
	m.activeMutations.Inc()
}

// RecordMutation фиксирует итог и длительность мутации.
func (m *OrderMetrics) RecordMutation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeMutations.Dec()
	m.mutations.WithLabelValues(operation, ResultLabel(err)).Inc()
	m.mutationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAttachRetry увеличивает счётчик повторов привязки клиента.
func (m *OrderMetrics) RecordAttachRetry() {
	if m == nil {
		return
	}
	m.attachRetries.Inc()
}

// RecordAttachDegraded увеличивает счётчик привязок, понижённых до неосновных.
func (m *OrderMetrics) RecordAttachDegraded() {
	if m == nil {
		return
	}
	m.attachDegraded.Inc()
}

// RecordUnitsRegistered добавляет число зарегистрированных единиц.
func (m *OrderMetrics) RecordUnitsRegistered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unitsRegistered.Add(float64(n))
}

// RecordUnitsSold добавляет число проданных единиц.
func (m *OrderMetrics) RecordUnitsSold(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unitsSold.Add(float64(n))
}

// RecordPublishFailure увеличивает счётчик неудачных публикаций изменений.
func (m *OrderMetrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
