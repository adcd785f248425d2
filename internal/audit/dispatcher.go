package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Default waits used when Config leaves them zero.
const (
	DefaultCriticalWait = 250 * time.Millisecond
	DefaultDrainTimeout = 5 * time.Second
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops routine events instead of blocking the caller when
	// the buffer is full. Critical events still wait up to CriticalWait.
	DropIfFull bool
	// CriticalWait bounds how long Emit blocks on a full buffer for an event
	// Critical reports true for.
	CriticalWait time.Duration
	// DrainTimeout bounds how long Close spends delivering buffered events.
	// Events still queued afterwards are counted as dropped.
	DrainTimeout time.Duration
}

// Critical reports whether events of type typ record a security decision
// that must not be shed to make room for routine traffic.
func Critical(typ string) bool {
	switch typ {
	case EventRefreshReuse, EventRoleChange, EventDeactivate, EventActivate,
		EventPasswordChange, EventLoginThrottled:
		return true
	}
	return false
}

// Dispatcher asynchronously forwards audit events to a sink. A nil
// *Dispatcher is valid and discards everything.
//
// Under load the buffer fills with login and refresh traffic. Those events
// are dropped first; critical ones wait for room.
type Dispatcher struct {
	cfg             Config
	sink            Sink
	ch              chan Event
	done            chan struct{}
	wg              sync.WaitGroup
	dropped         atomic.Uint64
	droppedCritical atomic.Uint64
	closed          atomic.Bool
	closeOnce       sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing
// is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.CriticalWait <= 0 {
		cfg.CriticalWait = DefaultCriticalWait
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	ctx := context.Background()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(ctx, event)
		case <-d.done:
			d.drain(ctx, time.Now().Add(d.cfg.DrainTimeout))
			return
		}
	}
}

// drain delivers buffered events until the buffer is empty or deadline
// passes. Whatever is left is counted as dropped.
func (d *Dispatcher) drain(ctx context.Context, deadline time.Time) {
	for time.Now().Before(deadline) {
		select {
		case event := <-d.ch:
			d.sink.Emit(ctx, event)
		default:
			return
		}
	}
	for {
		select {
		case event := <-d.ch:
			d.drop(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if Critical(event.Type) {
		d.droppedCritical.Add(1)
	}
}

// Emit queues event. After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case d.ch <- event:
		return
	default:
	}

	if !d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-ctx.Done():
			d.drop(event)
		case <-d.done:
		}
		return
	}

	if !Critical(event.Type) {
		d.drop(event)
		return
	}

	timer := time.NewTimer(d.cfg.CriticalWait)
	defer timer.Stop()
	select {
	case d.ch <- event:
	case <-timer.C:
		d.drop(event)
	case <-ctx.Done():
		d.drop(event)
	case <-d.done:
	}
}

// Close stops accepting events and delivers what is already buffered,
// giving up after DrainTimeout.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded, either because the
// buffer was full or because Close ran out of time.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedCritical reports the subset of Dropped that Critical reports true
// for.
func (d *Dispatcher) DroppedCritical() uint64 {
	if d == nil {
		return 0
	}
	return d.droppedCritical.Load()
}
