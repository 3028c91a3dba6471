// Package notify implements the in-process event fan-out and its SSE
// transport. The incident service depends only on the Emit capability;
// it never sees the transport.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedListeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "breakdownboard",
			Subsystem: "notify",
			Name:      "listeners",
			Help:      "Number of connected event stream listeners",
		},
	)

	eventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breakdownboard",
			Subsystem: "notify",
			Name:      "events_emitted_total",
			Help:      "Events emitted by name",
		},
		[]string{"event"},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "breakdownboard",
			Subsystem: "notify",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a listener buffer was full",
		},
	)
)

// Event is one broadcast message. Data is pre-encoded at emit time so
// every listener receives identical bytes.
type Event struct {
	Name string
	Data []byte
}

// subscriberBuffer bounds how far a slow listener may fall behind before
// events are dropped for it.
const subscriberBuffer = 16

// Broker is a process-scoped connection registry: listeners subscribe,
// emitters broadcast. A slow or stuck listener loses events instead of
// blocking emission to the others.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener and returns its event channel.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	connectedListeners.Inc()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
		connectedListeners.Dec()
	}
	b.mu.Unlock()
}

// Emit broadcasts an event to all listeners, fire-and-forget. The
// payload is JSON-encoded once; an unencodable payload is replaced by an
// empty object, matching the transport's "data: {}" convention.
func (b *Broker) Emit(event string, payload any) {
	data := []byte("{}")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			slog.Error("failed to encode event payload", "event", event, "error", err)
		} else {
			data = encoded
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	eventsEmitted.WithLabelValues(event).Inc()
	for ch := range b.subs {
		select {
		case ch <- Event{Name: event, Data: data}:
		default:
			eventsDropped.Inc()
		}
	}
}

// Listeners returns the number of connected listeners.
func (b *Broker) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
