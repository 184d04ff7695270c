// Package health отдаёт состояние сервиса заказов оркестратору:
// доступность хранилища и отставание outbox с событиями заказов.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Status - итог проверки компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 2 * time.Second

// Check - результат одной проверки.
type Check struct {
	Name       string         `json:"name"`
	Status     Status         `json:"status"`
	Critical   bool           `json:"critical"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Response - тело ответа /healthz и /readyz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент. ctx ограничен таймаутом проверки.
type Checker interface {
	Check(ctx context.Context) Check
}

// CheckerFunc позволяет использовать функцию как Checker.
type CheckerFunc func(ctx context.Context) Check

func (f CheckerFunc) Check(ctx context.Context) Check { return f(ctx) }

type registration struct {
	name     string
	checker  Checker
	critical bool
}

// Handler собирает проверки и отдаёт их по HTTP.
//
// Только критичные проверки снимают готовность: отставание outbox ухудшает
// статус до degraded, но касса продолжает принимать заказы.
type Handler struct {
	mu      sync.RWMutex
	checks  []registration
	version string
	started time.Time
	timeout time.Duration
}

// NewHandler создаёт обработчик с таймаутом проверки по умолчанию.
func NewHandler(version string) *Handler {
	return &Handler{version: version, started: time.Now(), timeout: defaultCheckTimeout}
}

// SetCheckTimeout меняет таймаут одной проверки.
func (h *Handler) SetCheckTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	h.mu.Lock()
	h.timeout = d
	h.mu.Unlock()
}

// Register добавляет проверку. Повторная регистрация имени заменяет прежнюю.
func (h *Handler) Register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].name == name {
			h.checks[i] = registration{name: name, checker: checker, critical: critical}
			return
		}
	}
	h.checks = append(h.checks, registration{name: name, checker: checker, critical: critical})
}

// Evaluate выполняет все проверки и сводит их в общий статус.
func (h *Handler) Evaluate(ctx context.Context) Response {
	h.mu.RLock()
	checks := append([]registration(nil), h.checks...)
	timeout := h.timeout
	h.mu.RUnlock()

	resp := Response{
		Status:        StatusHealthy,
		Timestamp:     time.Now().UTC(),
		Checks:        make(map[string]Check, len(checks)),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	for _, reg := range checks {
		check := runCheck(ctx, reg, timeout)
		resp.Checks[reg.name] = check
		resp.Status = worse(resp.Status, effectiveStatus(check))
	}
	return resp
}

func runCheck(ctx context.Context, reg registration, timeout time.Duration) Check {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	check := reg.checker.Check(checkCtx)
	check.Name = reg.name
	check.Critical = reg.critical
	check.DurationMs = time.Since(start).Milliseconds()
	if check.Status == "" {
		check.Status = StatusHealthy
	}
	return check
}

// effectiveStatus понижает сбой некритичной проверки до degraded.
func effectiveStatus(check Check) Status {
	if check.Status == StatusUnhealthy && !check.Critical {
		return StatusDegraded
	}
	return check.Status
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ServeHTTP отдаёт полный отчёт; 503 только при сбое критичной проверки.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.Evaluate(r.Context()))
}

// ReadinessHandler сообщает, может ли сервис принимать операции над заказами.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	resp := h.Evaluate(r.Context())
	resp.Checks = nil
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// LivenessHandler отвечает, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// NewPingChecker проверяет доступность хранилища заказов.
func NewPingChecker(ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) Check {
		if err := ping(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	})
}

// OutboxBacklogChecker следит за очередью событий заказов, ещё не доставленных в брокер.
type OutboxBacklogChecker struct {
	Stats func() (domain.OutboxStats, error)
	// MaxPending и MaxAge - пороги, после которых backlog считается отставанием.
	// Нулевое значение отключает порог.
	MaxPending int
	MaxAge     time.Duration
	Now        func() time.Time
}

// Check переводит в degraded, если очередь длиннее MaxPending или старейшее
// сообщение ждёт дольше MaxAge. Ошибка чтения статистики - unhealthy.
func (c OutboxBacklogChecker) Check(_ context.Context) Check {
	stats, err := c.Stats()
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error()}
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = now().Sub(stats.OldestPendingAt)
	}

	details := map[string]any{
		"pending":            stats.PendingCount,
		"oldest_age_seconds": int64(age.Seconds()),
	}
	check := Check{Status: StatusHealthy, Details: details}
	switch {
	case c.MaxPending > 0 && stats.PendingCount > c.MaxPending:
		check.Status = StatusDegraded
		check.Message = "outbox backlog exceeds pending limit"
	case c.MaxAge > 0 && age > c.MaxAge:
		check.Status = StatusDegraded
		check.Message = "order events are waiting too long for delivery"
	}
	return check
}
