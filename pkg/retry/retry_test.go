package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeFormatRejected, "not a jpeg")
	}, testConfig(5))

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "still failing")
	}, testConfig(3))

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !strings.Contains(err.Error(), "max retry attempts") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(5)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "fail")
	}, cfg)

	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() ([]byte, error) {
		calls++
		if calls < 2 {
			return nil, errs.New(errs.ErrorTypeNetwork, "timeout")
		}
		return []byte("image data"), nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "image data" {
		t.Errorf("result = %q", result)
	}
}

func TestDoOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := testConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(func() error {
		return errs.New(errs.ErrorTypeTransient, "fail")
	}, cfg)

	if len(attempts) != 3 {
		t.Errorf("expected 3 retry callbacks, got %d", len(attempts))
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", errs.New(errs.ErrorTypeTransient, ""), true},
		{"network", errs.New(errs.ErrorTypeNetwork, ""), true},
		{"storage", errs.New(errs.ErrorTypeStorage, ""), true},
		{"format rejected", errs.New(errs.ErrorTypeFormatRejected, ""), false},
		{"subsystem rejected", errs.New(errs.ErrorTypeSubsystemRejected, ""), false},
		{"context cancelled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"unknown", errors.New("mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffGrows(t *testing.T) {
	b := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0,
	}

	d1 := b.NextDelay(1)
	d2 := b.NextDelay(2)
	d3 := b.NextDelay(3)

	if d1 != 100*time.Millisecond {
		t.Errorf("first delay = %v", d1)
	}
	if d2 != 200*time.Millisecond {
		t.Errorf("second delay = %v", d2)
	}
	if d3 != 400*time.Millisecond {
		t.Errorf("third delay = %v", d3)
	}

	// Delays cap at MaxDelay
	if d := b.NextDelay(20); d > time.Second {
		t.Errorf("delay %v exceeds max", d)
	}
}
