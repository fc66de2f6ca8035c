// Package notifier fans out data-change events to connected API clients.
package notifier

import "sync"

// Event names a change to the working database.
type Event string

// Events published by the API.
const (
	ForecastComputed Event = "forecast_computed"
	DataChanged      Event = "data_changed"
	DataReset        Event = "data_reset"
)

// Notifier broadcasts events to every subscriber. Delivery is best effort:
// a subscriber that has not drained its previous event misses the new one.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a Notifier with no subscribers.
func New() *Notifier {
	return &Notifier{listeners: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. Callers must Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Subscribers reports the number of registered listeners.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Publish sends ev to every listener without blocking.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
