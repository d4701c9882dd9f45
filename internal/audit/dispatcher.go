package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events while the queue is full instead of waiting
	// for the sink to catch up.
	DropIfFull bool
	// Logger receives one warning per dropped event, sampled. Nil disables it.
	Logger *zerolog.Logger
}

// Dispatcher relays session events to a Sink from a single goroutine.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	log        zerolog.Logger

	queue   chan Event
	stop    chan struct{}
	drained chan struct{}

	// mu orders sends against close(queue).
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once

	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg.Enabled is false.
// A nil *Dispatcher is a valid no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "audit").Logger().
			Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		log:        log,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.deliver()
	return d
}

// deliver runs until the queue is closed and empty.
func (d *Dispatcher) deliver() {
	defer close(d.drained)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. With DropIfFull a full queue drops the event at once;
// otherwise Emit waits for room until ctx is done. Events emitted after Close
// are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.drop(event, "queue full")
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event, "emit deadline exceeded")
	case <-d.stop:
	}
}

func (d *Dispatcher) drop(event Event, reason string) {
	n := d.dropped.Add(1)
	d.log.Warn().
		Str("event_type", event.EventType).
		Str("tracking_id", event.TrackingID).
		Str("reason", reason).
		Uint64("dropped_total", n).
		Msg("audit event dropped")
}

// Close delivers whatever is queued and stops the dispatcher. It is safe to
// call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		// Wake blocked emitters first so the write lock can be taken.
		close(d.stop)

		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.drained
}

// Dropped reports how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
