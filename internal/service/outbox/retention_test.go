package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

var _ domain.OutboxRetention = (*stubRetentionRepo)(nil)

func TestRetentionWorker_DeleteSent_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{results: []int{2, 2, 1}}
	worker := NewRetentionWorker(repo, WithRetentionBatchSize(2))

	deleted, err := worker.DeleteSent(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteSent failed: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}
	if calls := repo.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
}

func TestRetentionWorker_DeleteSent_Error(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{err: errors.New("boom")}
	worker := NewRetentionWorker(repo)

	if _, err := worker.DeleteSent(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("expected DeleteSent error")
	}
}

func TestRetentionWorker_RunUsesTTL(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{}
	worker := NewRetentionWorker(repo,
		WithRetentionInterval(5*time.Millisecond),
		WithRetentionTTL(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retention worker did not stop on context cancel")
	}

	before := repo.lastBefore()
	if age := time.Since(before); age < time.Hour || age > time.Hour+time.Minute {
		t.Fatalf("unexpected retention cutoff age: %s", age)
	}
}

type stubRetentionRepo struct {
	mu        sync.Mutex
	results   []int
	err       error
	callCount int
	before    time.Time
}

func (s *stubRetentionRepo) DeleteSent(before time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.before = before
	if s.err != nil {
		return 0, s.err
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result, nil
}

func (s *stubRetentionRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubRetentionRepo) lastBefore() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.before
}
