package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:     maxRetries,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_PermanentError(t *testing.T) {
	attempts := 0
	base := errors.New("video removed")

	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return Permanent(base)
	})

	if !errors.Is(err, base) {
		t.Errorf("Do() returned error = %v, want wrapping %v", err, base)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	attempts := 0
	stop := errors.New("stop")
	classifier := func(err error) bool { return !errors.Is(err, stop) }

	err := Do(context.Background(), fastConfig(5), classifier, func(ctx context.Context) error {
		attempts++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Do() returned error = %v, want %v", err, stop)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_RetryableError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), IsRetryable, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("Do() made %d attempts, want 3", attempts)
	}
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	attempts := 0
	tempErr := errors.New("temporary")

	err := Do(context.Background(), fastConfig(3), IsRetryable, func(ctx context.Context) error {
		attempts++
		return tempErr
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Do() error = %v, want *ExhaustedError", err)
	}
	if exhausted.Retries != 3 {
		t.Errorf("Retries = %d, want 3", exhausted.Retries)
	}
	if !errors.Is(err, tempErr) {
		t.Errorf("Do() error does not wrap the last failure")
	}
	if attempts != 4 {
		t.Errorf("Do() made %d attempts, want 4", attempts)
	}
}

func TestDo_NoRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), NoRetry(), nil, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Do() returned nil error")
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	cfg := Config{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(ctx, cfg, IsRetryable, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() returned error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"permanent", Permanent(errors.New("gone")), false},
		{"wrapped permanent", errors.Join(errors.New("ctx"), Permanent(errors.New("gone"))), false},
		{"generic error", errors.New("generic"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("DefaultConfig().MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != time.Second {
		t.Errorf("DefaultConfig().InitialBackoff = %v, want 1s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 30*time.Second {
		t.Errorf("DefaultConfig().MaxBackoff = %v, want 30s", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("DefaultConfig().Multiplier = %f, want 2.0", cfg.Multiplier)
	}
}
