package event

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Disposer collects cleanup funcs and runs them once, newest first.
//
// A feature hands every Unsubscribe and shutdown hook it acquires to its
// Disposer; teardown is then a single Dispose call. Funcs added after
// Dispose run immediately and their error is returned to the caller.
type Disposer struct {
	mu       sync.Mutex
	fns      []func() error
	disposed bool
}

// NewDisposer creates an empty Disposer.
func NewDisposer() *Disposer {
	return &Disposer{}
}

// Add registers a cleanup func that cannot fail. The error is non-nil only
// when the disposer already ran and fn panicked.
func (d *Disposer) Add(fn func()) error {
	if fn == nil {
		return nil
	}
	return d.AddError(func() error {
		fn()
		return nil
	})
}

// AddUnsubscribe registers an Unsubscribe.
func (d *Disposer) AddUnsubscribe(u Unsubscribe) error {
	if u == nil {
		return nil
	}
	return d.Add(u)
}

// AddError registers a cleanup func that may fail. When the disposer has
// already run, fn runs now and its error is returned.
func (d *Disposer) AddError(fn func() error) error {
	if fn == nil {
		return nil
	}
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return runCleanup(fn)
	}
	d.fns = append(d.fns, fn)
	d.mu.Unlock()
	return nil
}

// Len returns the number of pending cleanup funcs.
func (d *Disposer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fns)
}

// Dispose runs every registered func in reverse order of registration.
// A panicking func is reported as an error wrapping ErrCleanupPanic and the
// remaining funcs still run. Later calls are no-ops. Errors are combined.
func (d *Disposer) Dispose() error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil
	}
	d.disposed = true
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()

	var err error
	for i := len(fns) - 1; i >= 0; i-- {
		err = multierr.Append(err, runCleanup(fns[i]))
	}
	return err
}

// runCleanup calls fn, converting a panic into an error.
func runCleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCleanupPanic, r)
		}
	}()
	return fn()
}
