package netwatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type emitRecorder struct {
	mu      sync.Mutex
	changes []Change
	count   atomic.Int32
}

func (r *emitRecorder) emit(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
	r.count.Add(1)
}

func TestBridge_BurstCollapses(t *testing.T) {
	rec := &emitRecorder{}
	b := NewBridge(50*time.Millisecond, rec.emit, quietLogger(t))

	for i := 0; i < 10; i++ {
		b.Notify(Change{Interface: "wlan0", Source: "netlink"})
	}
	b.Notify(Change{Interface: "wlan0", Source: "poll"})

	time.Sleep(200 * time.Millisecond)

	if got := rec.count.Load(); got != 1 {
		t.Fatalf("expected exactly 1 emission, got %d", got)
	}
	if rec.changes[0].Source != "poll" {
		t.Errorf("expected the last change to be reported, got %+v", rec.changes[0])
	}
}

func TestBridge_Flood(t *testing.T) {
	rec := &emitRecorder{}
	debounce := 100 * time.Millisecond
	b := NewBridge(debounce, rec.emit, quietLogger(t))

	// 100 notifications spread over roughly one second
	start := time.Now()
	for i := 0; i < 100; i++ {
		b.Notify(Change{Interface: "eth0", Source: "netlink"})
		time.Sleep(10 * time.Millisecond)
	}
	flood := time.Since(start)

	time.Sleep(3 * debounce)

	limit := int32((flood + debounce - 1) / debounce)
	got := rec.count.Load()
	if got < 1 {
		t.Fatal("expected at least one emission after the flood")
	}
	if got > limit {
		t.Errorf("expected at most %d emissions for a %s flood, got %d", limit, flood, got)
	}
}

func TestBridge_SeparateBursts(t *testing.T) {
	rec := &emitRecorder{}
	b := NewBridge(20*time.Millisecond, rec.emit, quietLogger(t))

	b.Notify(Change{Interface: "wlan0"})
	time.Sleep(100 * time.Millisecond)
	b.Notify(Change{Interface: "wlan0"})
	time.Sleep(100 * time.Millisecond)

	if got := rec.count.Load(); got != 2 {
		t.Errorf("expected 2 emissions for separate bursts, got %d", got)
	}
}

func TestBridge_Stop(t *testing.T) {
	rec := &emitRecorder{}
	b := NewBridge(30*time.Millisecond, rec.emit, quietLogger(t))

	b.Notify(Change{Interface: "wlan0"})
	b.Stop()
	time.Sleep(100 * time.Millisecond)

	if got := rec.count.Load(); got != 0 {
		t.Errorf("expected no emission after Stop, got %d", got)
	}
}

type fakeSource struct {
	changes []Change
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Watch(ctx context.Context, out chan<- Change) error {
	for _, c := range f.changes {
		if !send(ctx, out, c) {
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestBridge_Run(t *testing.T) {
	rec := &emitRecorder{}
	b := NewBridge(20*time.Millisecond, rec.emit, quietLogger(t))

	src := &fakeSource{changes: []Change{
		{Interface: "wlan0", Source: "fake"},
		{Interface: "wlan0", Source: "fake"},
		{Interface: "eth0", Source: "fake"},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, src)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := rec.count.Load(); got != 1 {
		t.Errorf("expected 1 emission, got %d", got)
	}
}
