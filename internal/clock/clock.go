package clock

import (
	"sync"
	"time"
)

// Clock позволяет подменять время в сервисах и тестах.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem возвращает часы на основе time.Now в UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed возвращает часы, которые всегда показывают один момент.
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Ticking - часы для тестов: каждый вызов Now сдвигает время на step.
// Нужны, когда важен порядок событий (например, addedAt привязок).
type Ticking struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewTicking создаёт часы, начинающиеся с start.
func NewTicking(start time.Time, step time.Duration) *Ticking {
	return &Ticking{now: start.UTC(), step: step}
}

func (t *Ticking) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now
	t.now = t.now.Add(t.step)
	return now
}
