package channel

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLanesKeepOrderPerKey(t *testing.T) {
	lanes := NewLanes()

	var mu sync.Mutex
	got := make(map[int64][]int)
	for i := range 50 {
		key := int64(i % 3)
		if !lanes.Submit(key, func() {
			mu.Lock()
			got[key] = append(got[key], i)
			mu.Unlock()
		}) {
			t.Fatalf("Submit(%d) rejected", key)
		}
	}
	lanes.Close()

	for key, values := range got {
		for j := 1; j < len(values); j++ {
			if values[j] < values[j-1] {
				t.Fatalf("lane %d order = %v", key, values)
			}
		}
	}
	if total := len(got[0]) + len(got[1]) + len(got[2]); total != 50 {
		t.Fatalf("ran %d tasks, want 50", total)
	}
	if lanes.Active() != 0 {
		t.Fatalf("Active = %d after Close, want 0", lanes.Active())
	}
}

func TestLanesRunKeysConcurrently(t *testing.T) {
	lanes := NewLanes()
	defer lanes.Close()

	release := make(chan struct{})
	lanes.Submit(1, func() { <-release })

	done := make(chan struct{})
	lanes.Submit(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lane 2 blocked behind lane 1")
	}
	close(release)
}

func TestLanesRejectAfterClose(t *testing.T) {
	lanes := NewLanes()
	lanes.Close()

	if lanes.Submit(1, func() {}) {
		t.Fatal("expected Submit to fail after Close")
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	err := Guard(func() error {
		panic("boom")
	})

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("error = %v, want *PanicError", err)
	}
	if panicErr.Value != "boom" || len(panicErr.Stack) == 0 {
		t.Fatalf("panic error = %#v", panicErr)
	}
}

func TestGuardPassesErrors(t *testing.T) {
	want := errors.New("plain")
	if err := Guard(func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
	if err := Guard(func() error { return nil }); err != nil {
		t.Fatalf("error = %v, want nil", err)
	}
}
