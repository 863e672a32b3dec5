package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Tracker counts in-flight work: queued messages and spawned runs. Work that causes more
// work must register the follow-up before finishing, so the count only reaches zero when
// the whole system is idle. A nil Tracker ignores every call.
type Tracker struct {
	mu    sync.Mutex
	count int
	idle  chan struct{}
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	idle := make(chan struct{})
	close(idle)
	return &Tracker{idle: idle}
}

// Add registers n units of pending work
func (t *Tracker) Add(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 && n > 0 {
		t.idle = make(chan struct{})
	}
	t.count += n
	if t.count < 0 {
		panic("actor: negative tracker count")
	}
	if t.count == 0 {
		close(t.idle)
	}
}

// Done marks one unit of work as finished
func (t *Tracker) Done() {
	t.Add(-1)
}

// Pending returns the current amount of in-flight work
func (t *Tracker) Pending() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Wait blocks until no work is in flight or ctx is done
func (t *Tracker) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to reach quiescence with %d pending: %w", t.Pending(), ctx.Err())
	}
}

// Go runs fn in a new goroutine counted as in-flight work. Panics are recovered and logged.
func (t *Tracker) Go(logger *slog.Logger, name string, fn func()) {
	t.Add(1)
	go func() {
		defer t.Done()
		defer func() {
			if r := recover(); r != nil {
				if logger == nil {
					logger = slog.Default()
				}
				logger.Error("run panicked",
					slog.String("run", name),
					slog.String("panic", fmt.Sprint(r)))
			}
		}()
		fn()
	}()
}
