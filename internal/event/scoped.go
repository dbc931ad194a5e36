package event

import (
	"sort"
	"sync"

	"github.com/dshills/pdfdesk/internal/event/name"
)

// ScopedBus is a per-feature façade over a Bus.
//
// Local operations (Emit, On, Once, Off) rewrite names to "@<namespace>/<name>"
// so two features can use the same short name without colliding. The Global
// variants pass names through unchanged. Every subscription made through a
// ScopedBus is tracked so the feature can drop them all at teardown.
type ScopedBus struct {
	namespace string
	global    *Bus

	mu        sync.Mutex
	tracked   []trackedSub
	destroyed bool
}

// trackedSub is a subscription created through a ScopedBus.
type trackedSub struct {
	sub   *subscription
	local bool
}

// NewScopedBus creates a scoped bus bound to namespace and global.
func NewScopedBus(namespace string, global *Bus) (*ScopedBus, error) {
	if !name.ValidNamespace(namespace) {
		return nil, ErrInvalidNamespace
	}
	if global == nil {
		return nil, ErrNilBus
	}
	return &ScopedBus{
		namespace: namespace,
		global:    global,
	}, nil
}

// Namespace returns the namespace this bus is bound to.
func (s *ScopedBus) Namespace() string {
	return s.namespace
}

// Global returns the underlying global bus.
func (s *ScopedBus) Global() *Bus {
	return s.global
}

// Qualify returns the full name a local name maps to.
func (s *ScopedBus) Qualify(local string) string {
	return name.Qualify(s.namespace, local)
}

// Emit emits a local event.
func (s *ScopedBus) Emit(local string, data any) (bool, error) {
	return s.EmitWithMetadata(local, data, Metadata{})
}

// EmitWithMetadata emits a local event; meta.Namespace is set to this namespace.
func (s *ScopedBus) EmitWithMetadata(local string, data any, meta Metadata) (bool, error) {
	if s.isDestroyed() {
		return false, ErrScopeDestroyed
	}
	meta.Namespace = s.namespace
	return s.global.EmitWithMetadata(s.Qualify(local), data, meta)
}

// On subscribes to a local event.
func (s *ScopedBus) On(local string, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	return s.subscribe(s.Qualify(local), true, h, opts...)
}

// Once subscribes to a single delivery of a local event.
func (s *ScopedBus) Once(local string, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	return s.subscribe(s.Qualify(local), true, h, append(opts, WithOnce())...)
}

// Off removes local subscriptions made through this bus with h.
// See Bus.Off for which handlers can be matched.
func (s *ScopedBus) Off(local string, h Handler) int {
	return s.offTracked(s.Qualify(local), func(sub *subscription) bool { return sub.matches(h) })
}

// EmitGlobal emits a global event unchanged.
func (s *ScopedBus) EmitGlobal(eventName string, data any) (bool, error) {
	return s.EmitGlobalWithMetadata(eventName, data, Metadata{})
}

// EmitGlobalWithMetadata emits a global event; meta.Source is set to this namespace.
func (s *ScopedBus) EmitGlobalWithMetadata(eventName string, data any, meta Metadata) (bool, error) {
	if s.isDestroyed() {
		return false, ErrScopeDestroyed
	}
	meta.Source = s.namespace
	return s.global.EmitWithMetadata(eventName, data, meta)
}

// OnGlobal subscribes to a global event.
func (s *ScopedBus) OnGlobal(eventName string, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	return s.subscribe(eventName, false, h, opts...)
}

// OnceGlobal subscribes to a single delivery of a global event.
func (s *ScopedBus) OnceGlobal(eventName string, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	return s.subscribe(eventName, false, h, append(opts, WithOnce())...)
}

// OffGlobal removes global subscriptions made through this bus with h.
// Subscriptions made elsewhere are never touched.
func (s *ScopedBus) OffGlobal(eventName string, h Handler) int {
	return s.offTracked(eventName, func(sub *subscription) bool { return sub.matches(h) })
}

// OffID removes local subscriptions made through this bus with subscriberID.
func (s *ScopedBus) OffID(local, subscriberID string) int {
	return s.offTracked(s.Qualify(local), byID(subscriberID))
}

// OffGlobalID removes global subscriptions made through this bus with
// subscriberID.
func (s *ScopedBus) OffGlobalID(eventName, subscriberID string) int {
	return s.offTracked(eventName, byID(subscriberID))
}

func byID(id string) func(*subscription) bool {
	return func(sub *subscription) bool { return sub.id == id }
}

// offTracked releases tracked subscriptions on eventName accepted by match.
func (s *ScopedBus) offTracked(eventName string, match func(*subscription) bool) int {
	s.mu.Lock()
	var matched []*subscription
	for _, t := range s.tracked {
		if t.sub.event == eventName && t.sub.IsActive() && match(t.sub) {
			matched = append(matched, t.sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range matched {
		s.global.release(sub)
	}
	s.prune()
	return len(matched)
}

// LocalEvents returns the local names (with prefix) that have live
// subscriptions made through this bus, sorted.
func (s *ScopedBus) LocalEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	seen := make(map[string]bool)
	var names []string
	for _, t := range s.tracked {
		if t.local && !seen[t.sub.event] {
			seen[t.sub.event] = true
			names = append(names, t.sub.event)
		}
	}
	sort.Strings(names)
	return names
}

// SubscriptionCount returns the number of live subscriptions made through this bus.
func (s *ScopedBus) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	return len(s.tracked)
}

// ClearLocalListeners removes every local subscription made through this bus.
// Global subscriptions are kept.
func (s *ScopedBus) ClearLocalListeners() {
	s.mu.Lock()
	var local []*subscription
	kept := s.tracked[:0]
	for _, t := range s.tracked {
		if t.local {
			local = append(local, t.sub)
		} else {
			kept = append(kept, t)
		}
	}
	s.tracked = kept
	s.mu.Unlock()

	for _, sub := range local {
		s.global.release(sub)
	}
}

// Destroy removes every subscription made through this bus, local and global.
// The global bus stays usable; this scoped bus rejects further calls.
func (s *ScopedBus) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	all := s.tracked
	s.tracked = nil
	s.mu.Unlock()

	for _, t := range all {
		s.global.release(t.sub)
	}
}

// subscribe registers through the global bus and tracks the result.
func (s *ScopedBus) subscribe(eventName string, local bool, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	if s.isDestroyed() {
		return nil, ErrScopeDestroyed
	}
	sub, err := s.global.subscribe(eventName, h, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tracked = append(s.tracked, trackedSub{sub: sub, local: local})
	s.mu.Unlock()

	return func() {
		s.global.release(sub)
		s.prune()
	}, nil
}

// prune drops tracked subscriptions that are no longer active.
func (s *ScopedBus) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
}

// pruneLocked drops inactive subscriptions. Must be called with mu held.
func (s *ScopedBus) pruneLocked() {
	kept := s.tracked[:0]
	for _, t := range s.tracked {
		if t.sub.IsActive() {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(s.tracked); i++ {
		s.tracked[i] = trackedSub{}
	}
	s.tracked = kept
}

func (s *ScopedBus) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
