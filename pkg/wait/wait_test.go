package wait

import (
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

func TestUntil_SucceedsImmediately(t *testing.T) {
	calls := 0
	err := Until(func() (bool, error) {
		calls++
		return true, nil
	}, time.Second, 10*time.Millisecond)

	if err != nil {
		t.Fatalf("Until() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUntil_SucceedsAfterPolling(t *testing.T) {
	calls := 0
	err := Until(func() (bool, error) {
		calls++
		return calls >= 3, nil
	}, 2*time.Second, 5*time.Millisecond)

	if err != nil {
		t.Fatalf("Until() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestUntil_TimesOutWithLastError(t *testing.T) {
	boom := errors.New("no such element")
	start := time.Now()
	err := Until(func() (bool, error) {
		return false, boom
	}, 60*time.Millisecond, 10*time.Millisecond)

	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected last error in chain, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not bounded: %s", elapsed)
	}
}

func TestUntil_ZeroTimeoutEvaluatesOnce(t *testing.T) {
	calls := 0
	err := Until(func() (bool, error) {
		calls++
		return false, nil
	}, 0, 10*time.Millisecond)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPoll(t *testing.T) {
	if !Poll(func() bool { return true }, 10*time.Millisecond, time.Millisecond) {
		t.Error("Poll() = false for a true condition")
	}
	if Poll(func() bool { return false }, 20*time.Millisecond, 5*time.Millisecond) {
		t.Error("Poll() = true for a false condition")
	}
}
