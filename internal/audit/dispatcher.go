package audit

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"
)

// RepeatsKey is the metadata key carrying how many identical events a
// coalesced event stands for.
const RepeatsKey = "repeats"

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled bool
	// BufferSize caps the events waiting for delivery. Coalesced repeats do
	// not count against it.
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the queue
	// is at BufferSize.
	DropIfFull bool
	// Coalesce lists event types whose queued duplicates are merged. Two
	// events are duplicates when type, address, IP and error code match. A
	// throttled wallet retrying in a loop then costs one queue slot.
	Coalesce []string
}

// Dispatcher delivers audit events to a sink from one goroutine, in the
// order they were queued. Each wake-up hands the sink everything queued so
// far. A nil *Dispatcher accepts and discards every call.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	coalesce map[string]struct{}

	mu      sync.Mutex
	queue   []Event
	merged  map[string]int // coalesce key -> queue index
	repeats map[string]int // coalesce key -> occurrences
	dropped map[string]uint64
	closed  bool
	space   chan struct{} // closed and replaced whenever the queue is drained

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		coalesce: make(map[string]struct{}, len(cfg.Coalesce)),
		merged:   make(map[string]int),
		repeats:  make(map[string]int),
		dropped:  make(map[string]uint64),
		space:    make(chan struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, t := range cfg.Coalesce {
		d.coalesce[t] = struct{}{}
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.wake:
			d.deliver(d.take())
		case <-d.done:
			for batch := d.take(); len(batch) > 0; batch = d.take() {
				d.deliver(batch)
			}
			return
		}
	}
}

func (d *Dispatcher) deliver(batch []Event) {
	for _, event := range batch {
		d.sink.Emit(context.Background(), event)
	}
}

// take detaches the queue, stamps repeat counts on coalesced events and
// releases blocked emitters.
func (d *Dispatcher) take() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := d.queue
	for key, idx := range d.merged {
		if n := d.repeats[key]; n > 1 {
			meta := maps.Clone(batch[idx].Metadata)
			if meta == nil {
				meta = make(map[string]string, 1)
			}
			meta[RepeatsKey] = strconv.Itoa(n)
			batch[idx].Metadata = meta
		}
	}

	d.queue = nil
	clear(d.merged)
	clear(d.repeats)
	close(d.space)
	d.space = make(chan struct{})

	return batch
}

func (d *Dispatcher) coalesceKey(event Event) string {
	if _, ok := d.coalesce[event.EventType]; !ok {
		return ""
	}
	return event.EventType + "|" + event.Address + "|" + event.IP + "|" + event.Error
}

// Emit queues event. A duplicate of a queued coalescable event only bumps
// that event's repeat count. When the queue is full, DropIfFull drops the
// event and counts it under its type; otherwise Emit waits for the next
// delivery, ctx, or Close. Events without a timestamp are stamped here.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	key := d.coalesceKey(event)

	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		if key != "" {
			if _, ok := d.merged[key]; ok {
				d.repeats[key]++
				d.mu.Unlock()
				return
			}
		}
		if len(d.queue) < d.cfg.BufferSize {
			d.queue = append(d.queue, event)
			if key != "" {
				d.merged[key] = len(d.queue) - 1
				d.repeats[key] = 1
			}
			d.mu.Unlock()

			select {
			case d.wake <- struct{}{}:
			default:
			}
			return
		}
		if d.cfg.DropIfFull {
			d.dropped[event.EventType]++
			d.mu.Unlock()
			return
		}
		space := d.space
		d.mu.Unlock()

		select {
		case <-space:
		case <-ctx.Done():
			return
		case <-d.done:
			return
		}
	}
}

// Close delivers queued events and stops the dispatcher. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var total uint64
	for _, n := range d.dropped {
		total += n
	}
	return total
}

// DroppedByType returns the drop counts keyed by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	if d == nil {
		return map[string]uint64{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.dropped)
}
