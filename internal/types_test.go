// internal/types_test.go - Error classification tests
package internal

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsCanceled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"wrapped canceled", fmt.Errorf("fetch aborted: %w", context.Canceled), true},
		{"app error wrapping canceled", NewError(ErrorCodeNetwork, "request failed", context.Canceled), true},
		// A deadline expiry is a provider failure to retry or fall back
		// from, never a user cancellation.
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"wrapped deadline exceeded", fmt.Errorf("query failed: %w", context.DeadlineExceeded), false},
		{"timeout app error", NewError(ErrorCodeTimeout, "query timed out", context.DeadlineExceeded), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCanceled(tt.err); got != tt.want {
				t.Errorf("IsCanceled(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
