package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisposer_ReverseOrderOnce(t *testing.T) {
	d := NewDisposer()
	var order []int

	for i := 1; i <= 3; i++ {
		i := i
		d.Add(func() { order = append(order, i) })
	}
	d.Add(nil)
	d.AddUnsubscribe(nil)
	assert.Equal(t, 3, d.Len())

	require.NoError(t, d.Dispose())
	require.NoError(t, d.Dispose())
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Equal(t, 0, d.Len())
}

func TestDisposer_CombinesErrors(t *testing.T) {
	d := NewDisposer()
	errA := errors.New("a")
	errB := errors.New("b")
	ran := false

	d.AddError(func() error { return errA })
	d.Add(func() { ran = true })
	d.AddError(func() error { return errB })

	err := d.Dispose()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran)
}

func TestDisposer_AddAfterDisposeRunsImmediately(t *testing.T) {
	d := NewDisposer()
	require.NoError(t, d.Dispose())

	ran := false
	require.NoError(t, d.Add(func() { ran = true }))
	assert.True(t, ran)
	assert.Equal(t, 0, d.Len())

	errLate := errors.New("late")
	assert.ErrorIs(t, d.AddError(func() error { return errLate }), errLate)
	assert.ErrorIs(t, d.Add(func() { panic("late") }), ErrCleanupPanic)
}

func TestDisposer_PanicDoesNotSkipRemaining(t *testing.T) {
	d := NewDisposer()
	var order []string

	d.Add(func() { order = append(order, "first") })
	d.Add(func() { panic("watcher gone") })
	d.Add(func() { order = append(order, "last") })

	err := d.Dispose()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCleanupPanic)
	assert.Contains(t, err.Error(), "watcher gone")
	assert.Equal(t, []string{"last", "first"}, order)
}

func TestDisposer_Unsubscribes(t *testing.T) {
	bus := newTestBus()
	d := NewDisposer()

	unsub, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error { return nil })
	require.NoError(t, err)
	d.AddUnsubscribe(unsub)

	require.NoError(t, d.Dispose())
	assert.Equal(t, 0, bus.ListenerCount(evtListUpdated))
}
