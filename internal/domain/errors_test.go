package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		badRequest bool
		conflict   bool
	}{
		{name: "order not found", err: ErrOrderNotFound, notFound: true},
		{name: "unit not found", err: ErrUnitNotFound, notFound: true},
		{name: "order paid", err: ErrOrderPaid, badRequest: true},
		{name: "category required", err: ErrCategoryRequired, badRequest: true},
		{name: "already sold", err: ErrUnitAlreadySold, badRequest: true},
		{name: "version conflict", err: ErrOrderVersionConflict, conflict: true},
		{name: "serialization", err: ErrSerialization, conflict: true},
		{name: "wrapped conflict", err: fmt.Errorf("save order: %w", ErrOrderVersionConflict), conflict: true},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsBadRequest(tt.err); got != tt.badRequest {
				t.Errorf("IsBadRequest() = %v, want %v", got, tt.badRequest)
			}
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Errorf("IsConflict() = %v, want %v", got, tt.conflict)
			}
		})
	}
}

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "version conflict error", err: ErrOrderVersionConflict, want: true},
		{name: "wrapped version conflict error", err: errors.Join(ErrOrderVersionConflict, errors.New("additional context")), want: true},
		{name: "other conflict", err: ErrSerialization, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVersionConflict(tt.err); got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("commit: %w", ErrSerialization)) {
		t.Fatal("serialization failure must be retryable")
	}
	if !IsRetryable(ErrTxTimeout) {
		t.Fatal("tx timeout must be retryable")
	}
	if IsRetryable(ErrOrderVersionConflict) {
		t.Fatal("stale version must not be retried without refetch")
	}
}
