// Package netwatch turns raw interface change notifications into debounced
// check requests.
package netwatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Change is a raw "something changed" notification for one interface
type Change struct {
	Interface string
	Source    string // netlink, poll or resume
}

// Source produces raw changes until ctx is done
type Source interface {
	Name() string
	Watch(ctx context.Context, out chan<- Change) error
}

// Bridge debounces raw changes. Every change (re)arms the timer; when it
// expires with no further change, emit is called exactly once.
type Bridge struct {
	debounce time.Duration
	emit     func(Change)
	logger   *slog.Logger

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	last       Change
	pending    int
}

// NewBridge returns a Bridge calling emit after debounce of quiet.
// emit must not block.
func NewBridge(debounce time.Duration, emit func(Change), logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		debounce: debounce,
		emit:     emit,
		logger:   logger,
	}
}

// Notify records a raw change and restarts the debounce timer
func (b *Bridge) Notify(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
	b.last = c
	b.pending++

	if b.timer != nil {
		b.timer.Stop()
	}
	gen := b.generation
	b.timer = time.AfterFunc(b.debounce, func() { b.fire(gen) })
}

func (b *Bridge) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.generation {
		// Superseded by a later change
		b.mu.Unlock()
		return
	}
	last, count := b.last, b.pending
	b.pending = 0
	b.timer = nil
	b.mu.Unlock()

	b.logger.Debug("Network change settled, requesting check",
		"interface", last.Interface,
		"source", last.Source,
		"notifications", count)
	b.emit(last)
}

// Stop cancels a pending timer
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
	b.pending = 0
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Run starts every source and feeds their changes into the bridge until
// ctx is done. A source that fails is logged and skipped.
func (b *Bridge) Run(ctx context.Context, sources ...Source) {
	changes := make(chan Change, 64)

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			b.logger.Info("Network watcher started", "source", src.Name())
			if err := src.Watch(ctx, changes); err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Warn("Network watcher stopped", "source", src.Name(), "error", err)
			}
		}(src)
	}

	defer func() {
		b.Stop()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changes:
			b.logger.Debug("Network change", "interface", c.Interface, "source", c.Source)
			b.Notify(c)
		}
	}
}

// send delivers c unless ctx is done
func send(ctx context.Context, out chan<- Change, c Change) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
