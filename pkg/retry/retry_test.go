package retry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestDoSlowOperationTimesOutEveryAttempt(t *testing.T) {
	p := Policy{Retries: 3, Delay: 100 * time.Millisecond, Timeout: 50 * time.Millisecond}

	var mu sync.Mutex
	var starts []time.Time
	_, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(starts))
	}
	// Each gap is the 50ms timeout plus the 100ms delay.
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 100*time.Millisecond {
			t.Errorf("attempt %d started %v after previous, want >= 100ms", i+1, gap)
		}
	}
}

func TestDoSucceedsOnSecondAttempt(t *testing.T) {
	p := Policy{Retries: 3, Delay: 10 * time.Millisecond, Timeout: time.Second}

	calls := 0
	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return calls * 10, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
	if got != 20 {
		t.Errorf("expected result of 2nd attempt (20), got %d", got)
	}
}

func TestDoReturnsLastOriginalError(t *testing.T) {
	p := Policy{Retries: 2, Delay: time.Millisecond, Timeout: time.Second}
	sentinel := errors.New("send rejected")

	calls := 0
	err := Run(context.Background(), p, func(ctx context.Context) error {
		calls++
		return sentinel
	})

	if err != sentinel {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestDoFirstSuccessStops(t *testing.T) {
	calls := 0
	err := Run(context.Background(), SendPolicy, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestDoNormalizesRetries(t *testing.T) {
	calls := 0
	_ = Run(context.Background(), Policy{Retries: 0}, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})
	if calls != 1 {
		t.Errorf("expected a single attempt for Retries=0, got %d", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Retries: 5, Delay: time.Hour, Timeout: time.Second}

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, p, func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancel, got %d", calls)
	}
}
