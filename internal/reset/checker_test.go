package reset

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeEngine struct {
	mu        sync.Mutex
	today     string
	calls     int
	lastToday string
	performed bool
}

func (f *fakeEngine) Today() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.today
}

func (f *fakeEngine) CheckAndReset(_ context.Context, today string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastToday = today
	return f.performed, nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewChecker(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	engine := &fakeEngine{today: "2024-01-10"}
	checker := NewChecker(engine, time.Minute, logger)

	if checker == nil {
		t.Fatal("expected checker to be created")
	}
	if checker.interval != time.Minute {
		t.Errorf("expected interval 1m, got %v", checker.interval)
	}
}

func TestCheckerRunsImmediatelyAndOnTicks(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	engine := &fakeEngine{today: "2024-01-10"}
	checker := NewChecker(engine, 50*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() {
		checker.Start(ctx)
		done <- true
	}()

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checker did not stop after context cancellation")
	}

	// One immediate check plus at least two ticks in 180ms at 50ms interval.
	if got := engine.callCount(); got < 3 {
		t.Errorf("expected at least 3 checks, got %d", got)
	}

	// The date handed to CheckAndReset must be the engine's own, not one the
	// checker derived from the wall clock.
	engine.mu.Lock()
	today := engine.lastToday
	engine.mu.Unlock()
	if today != "2024-01-10" {
		t.Errorf("expected engine-supplied date 2024-01-10, got %s", today)
	}
}

func TestCheckerFollowsEngineDayRollover(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	engine := &fakeEngine{today: "2024-01-10"}
	checker := NewChecker(engine, 30*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go checker.Start(ctx)

	waitForCalls := func(n int) {
		deadline := time.After(time.Second)
		for engine.callCount() < n {
			select {
			case <-deadline:
				t.Fatalf("timed out waiting for %d checks", n)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	waitForCalls(1)

	engine.mu.Lock()
	engine.today = "2024-01-11"
	before := engine.calls
	engine.mu.Unlock()

	// Two more completed checks guarantee at least one started after the
	// rollover, even if one was mid-flight with the old date.
	waitForCalls(before + 2)
	cancel()

	engine.mu.Lock()
	today := engine.lastToday
	engine.mu.Unlock()
	if today != "2024-01-11" {
		t.Errorf("expected checker to pick up the rolled-over date, got %s", today)
	}
}
