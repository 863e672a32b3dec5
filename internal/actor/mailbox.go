// Package actor provides the single-threaded entity host used by the pipeline: unbounded
// mailboxes served by one goroutine each, a lazy registry of mailboxes by identity, and an
// in-flight tracker for quiescence.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrMailboxClosed is returned when a message cannot be delivered because the mailbox stopped
var ErrMailboxClosed = errors.New("mailbox closed")

// Handler processes one message. It is only ever called from the mailbox goroutine.
type Handler[M any] func(ctx context.Context, msg M)

// Options configure a mailbox
type Options struct {
	// Logger receives panic reports and queue depth warnings
	Logger *slog.Logger
	// Tracker, if set, counts every queued message until it has been handled
	Tracker *Tracker
	// OnStart runs on the mailbox goroutine before the first message is handled
	OnStart func(ctx context.Context)
	// WarnDepth logs a warning each time the queue grows past a multiple of it. Zero disables.
	WarnDepth int
}

// Mailbox is an unbounded FIFO queue of messages served by one goroutine.
// Tell never blocks; messages from one sender are handled in the order they were sent.
type Mailbox[M any] struct {
	name    string
	handler Handler[M]
	opts    Options

	mu     sync.Mutex
	queue  []M
	closed bool
	signal chan struct{}
	done   chan struct{}
}

// Spawn creates a mailbox and starts serving it. The mailbox stops when ctx is cancelled
// (dropping queued messages) or after Close once the queue has drained.
func Spawn[M any](ctx context.Context, name string, handler Handler[M], opts Options) *Mailbox[M] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Mailbox[M]{
		name:    name,
		handler: handler,
		opts:    opts,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	// The start hook counts as in-flight work so quiescence waits for loaded state.
	opts.Tracker.Add(1)
	go m.serve(ctx)
	return m
}

// Name returns the identity the mailbox was spawned with
func (m *Mailbox[M]) Name() string {
	return m.name
}

// Tell enqueues msg without waiting. It reports false if the mailbox no longer accepts messages.
func (m *Mailbox[M]) Tell(msg M) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	depth := len(m.queue)
	m.opts.Tracker.Add(1)
	m.mu.Unlock()

	if m.opts.WarnDepth > 0 && depth%m.opts.WarnDepth == 0 {
		m.opts.Logger.Warn("mailbox queue is growing",
			slog.String("mailbox", m.name),
			slog.Int("depth", depth))
	}

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued messages not yet handled
func (m *Mailbox[M]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops accepting messages. Already queued messages are still handled.
func (m *Mailbox[M]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Done is closed once the serving goroutine has exited
func (m *Mailbox[M]) Done() <-chan struct{} {
	return m.done
}

func (m *Mailbox[M]) serve(ctx context.Context) {
	defer close(m.done)

	if m.opts.OnStart != nil {
		m.safely(func() { m.opts.OnStart(ctx) })
	}
	m.opts.Tracker.Done()

	for {
		msg, ok := m.next(ctx)
		if !ok {
			return
		}
		m.safely(func() { m.handler(ctx, msg) })
		m.opts.Tracker.Done()
	}
}

// next pops the head of the queue, waiting for one to arrive. It returns false when the
// mailbox has been closed and drained, or when ctx is cancelled.
func (m *Mailbox[M]) next(ctx context.Context) (M, bool) {
	var zero M
	for {
		if ctx.Err() != nil {
			m.drop()
			return zero, false
		}
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = zero
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, true
		}
		if m.closed {
			m.mu.Unlock()
			return zero, false
		}
		m.mu.Unlock()

		select {
		case <-m.signal:
		case <-ctx.Done():
			m.drop()
			return zero, false
		}
	}
}

// drop discards everything still queued after cancellation
func (m *Mailbox[M]) drop() {
	m.mu.Lock()
	dropped := len(m.queue)
	m.queue = nil
	m.closed = true
	m.mu.Unlock()

	for i := 0; i < dropped; i++ {
		m.opts.Tracker.Done()
	}
	if dropped > 0 {
		m.opts.Logger.Debug("mailbox stopped with pending messages",
			slog.String("mailbox", m.name),
			slog.Int("dropped", dropped))
	}
}

func (m *Mailbox[M]) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.opts.Logger.Error("actor handler panicked",
				slog.String("mailbox", m.name),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Ask sends a message built around a reply channel and waits for the answer.
func Ask[M, R any](ctx context.Context, m *Mailbox[M], build func(reply chan<- R) M) (R, error) {
	var zero R
	reply := make(chan R, 1)
	if !m.Tell(build(reply)) {
		return zero, fmt.Errorf("failed to ask %s: %w", m.name, ErrMailboxClosed)
	}
	select {
	case r := <-reply:
		return r, nil
	case <-m.done:
		// The reply may have been sent just before the goroutine exited.
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, fmt.Errorf("failed to ask %s: %w", m.name, ErrMailboxClosed)
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
