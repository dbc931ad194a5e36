package event

import (
	"sort"
	"sync"
)

// registry manages subscriptions organized by event name.
// It is thread-safe for concurrent access.
type registry struct {
	mu   sync.RWMutex
	subs map[string][]*subscription
}

// newRegistry creates a new subscription registry.
func newRegistry() *registry {
	return &registry{
		subs: make(map[string][]*subscription),
	}
}

// add appends a subscription; subscriptions for one name stay in registration order.
func (r *registry) add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[sub.event] = append(r.subs[sub.event], sub)
}

// remove removes a subscription. Returns false if it was not present.
func (r *registry) remove(sub *subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(sub)
}

// removeLocked removes a subscription. Must be called with mu held.
func (r *registry) removeLocked(sub *subscription) bool {
	subs := r.subs[sub.event]
	for i, s := range subs {
		if s == sub {
			// Copy so snapshots handed out earlier are never mutated.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(r.subs, sub.event)
			} else {
				r.subs[sub.event] = next
			}
			return true
		}
	}
	return false
}

// removeHandler cancels and removes every subscription on eventName whose
// handler matches h. Returns the number removed.
func (r *registry) removeHandler(eventName string, h Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*subscription
	for _, s := range r.subs[eventName] {
		if s.matches(h) {
			matched = append(matched, s)
		}
	}
	for _, s := range matched {
		s.cancel()
		r.removeLocked(s)
	}
	return len(matched)
}

// removeID cancels and removes every subscription on eventName with the
// given subscriber ID. Returns the number removed.
func (r *registry) removeID(eventName, id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*subscription
	for _, s := range r.subs[eventName] {
		if s.id == id {
			matched = append(matched, s)
		}
	}
	for _, s := range matched {
		s.cancel()
		r.removeLocked(s)
	}
	return len(matched)
}

// snapshot returns the subscriptions for eventName at this instant.
// The returned slice is never modified by later registry changes.
func (r *registry) snapshot(eventName string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subs[eventName]
	if len(subs) == 0 {
		return nil
	}
	result := make([]*subscription, len(subs))
	copy(result, subs)
	return result
}

// count returns the total number of subscriptions.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.subs {
		n += len(subs)
	}
	return n
}

// countByEvent returns the number of subscriptions for eventName.
func (r *registry) countByEvent(eventName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[eventName])
}

// perEvent returns subscription counts keyed by event name.
func (r *registry) perEvent() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]int, len(r.subs))
	for name, subs := range r.subs {
		result[name] = len(subs)
	}
	return result
}

// events returns all event names with subscriptions, sorted.
func (r *registry) events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.subs))
	for name := range r.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clear cancels and removes all subscriptions.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, subs := range r.subs {
		for _, s := range subs {
			s.cancel()
		}
	}
	r.subs = make(map[string][]*subscription)
}
