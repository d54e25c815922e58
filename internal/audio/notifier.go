package audio

import (
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// StatusNotifier receives playback state changes from the Coordinator.
// Implementations must not block: the Coordinator calls these on the
// playback path and treats delivery as fire-and-forget.
type StatusNotifier interface {
	NotifyAlarmStatus(playing bool)
	NotifyWhiteNoiseStatus(playing bool)
	NotifyVolume(volume int)
}

// EventKind identifies the type of a status event.
type EventKind string

const (
	EventAlarmStatus      EventKind = "alarm_status"
	EventWhiteNoiseStatus EventKind = "white_noise_status"
	EventVolume           EventKind = "volume"
)

// StatusEvent is one playback state change, as delivered to a Sink.
type StatusEvent struct {
	ID      string    `json:"id"`
	Kind    EventKind `json:"kind"`
	Playing bool      `json:"playing,omitempty"`
	Volume  int       `json:"volume,omitempty"`
	At      time.Time `json:"at"`
}

// Sink consumes status events, typically forwarding them to the external
// broadcast transport. Errors and stalls in a sink never reach the
// Coordinator; the Dispatcher absorbs them.
type Sink func(StatusEvent)

// defaultQueueSize bounds the dispatcher queue; events beyond it are dropped.
const defaultQueueSize = 64

// Dispatcher implements StatusNotifier with a bounded queue consumed by a
// single goroutine, so status emission never blocks a playback operation.
// A full queue drops the event with a warning.
type Dispatcher struct {
	logger *slog.Logger
	sink   Sink

	mu     sync.RWMutex
	closed bool
	events chan StatusEvent
	done   chan struct{}
}

// NewDispatcher creates a dispatcher delivering events to sink and starts
// its consumer goroutine.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		logger: logger,
		sink:   sink,
		events: make(chan StatusEvent, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// NotifyAlarmStatus implements StatusNotifier.
func (d *Dispatcher) NotifyAlarmStatus(playing bool) {
	d.enqueue(StatusEvent{Kind: EventAlarmStatus, Playing: playing})
}

// NotifyWhiteNoiseStatus implements StatusNotifier.
func (d *Dispatcher) NotifyWhiteNoiseStatus(playing bool) {
	d.enqueue(StatusEvent{Kind: EventWhiteNoiseStatus, Playing: playing})
}

// NotifyVolume implements StatusNotifier.
func (d *Dispatcher) NotifyVolume(volume int) {
	d.enqueue(StatusEvent{Kind: EventVolume, Volume: volume})
}

// enqueue stamps the event and pushes it without blocking. Events arriving
// after Close are discarded.
func (d *Dispatcher) enqueue(ev StatusEvent) {
	ev.At = time.Now()
	if id, err := ulid.New(ulid.Timestamp(ev.At), rand.Reader); err == nil {
		ev.ID = id.String()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Debug("status event discarded, dispatcher closed", "kind", ev.Kind)
		return
	}

	select {
	case d.events <- ev:
	default:
		d.logger.Warn("status event dropped, queue full", "kind", ev.Kind)
	}
}

// run is the consumer loop.
func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		d.deliver(ev)
	}
}

// deliver invokes the sink, containing any panic.
func (d *Dispatcher) deliver(ev StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("status sink panicked", "kind", ev.Kind, "panic", r)
		}
	}()

	if d.sink != nil {
		d.sink(ev)
	}
}

// Close stops the dispatcher after draining queued events. Safe to call
// multiple times; events emitted after Close are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

// NopNotifier discards all status changes. Useful when no broadcast
// transport is attached.
type NopNotifier struct{}

func (NopNotifier) NotifyAlarmStatus(bool)      {}
func (NopNotifier) NotifyWhiteNoiseStatus(bool) {}
func (NopNotifier) NotifyVolume(int)            {}
