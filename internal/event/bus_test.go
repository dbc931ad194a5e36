package event

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/pdfdesk/internal/logging"
)

const (
	evtListUpdated = "pdf:list:updated"
	evtListFailed  = "pdf:list:failed"
	evtPageChanged = "viewer:page:changed"
)

func testAllowlist() *Allowlist {
	return BuildAllowlist(map[string]any{
		"PDF": map[string]string{
			"UPDATED": evtListUpdated,
			"FAILED":  evtListFailed,
		},
		"VIEWER": []string{evtPageChanged},
	})
}

func newTestBus(opts ...BusOption) *Bus {
	return NewBus(append([]BusOption{WithAllowlist(testAllowlist())}, opts...)...)
}

func observedLogger(level zapcore.Level) (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logging.FromZap(zap.New(core)), logs
}

func TestBus_EmitWithoutSubscribers(t *testing.T) {
	bus := newTestBus()

	delivered, err := bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, uint64(1), bus.Stats().Emitted)
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := newTestBus()
	var order []string

	for _, id := range []string{"first", "second", "third"} {
		id := id
		_, err := bus.OnFunc(evtListUpdated, func(data any, meta Metadata) error {
			order = append(order, id)
			return nil
		})
		require.NoError(t, err)
	}

	delivered, err := bus.Emit(evtListUpdated, []string{"a.pdf"})
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_PayloadAndMetadata(t *testing.T) {
	bus := newTestBus()
	var gotData any
	var gotMeta Metadata

	_, err := bus.OnFunc(evtListUpdated, func(data any, meta Metadata) error {
		gotData = data
		gotMeta = meta
		return nil
	}, WithSubscriberID("home"))
	require.NoError(t, err)

	_, err = bus.EmitWithMetadata(evtListUpdated, 42, Metadata{Source: "test"}.WithField("k", "v"))
	require.NoError(t, err)

	assert.Equal(t, 42, gotData)
	assert.Equal(t, evtListUpdated, gotMeta.Event)
	assert.Equal(t, "home", gotMeta.SubscriberID)
	assert.Equal(t, "test", gotMeta.Source)
	assert.NotEmpty(t, gotMeta.ID)
	assert.False(t, gotMeta.Timestamp.IsZero())
	v, ok := gotMeta.Field("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBus_GrammarRejected(t *testing.T) {
	bus := NewBus(WithValidation(ValidationOff))
	noop := HandlerFunc(func(any, Metadata) error { return nil })

	for _, bad := range []string{"", "pdf", "pdf:list", "pdf:list:updated:extra", "PDF:list:updated", "pdf::updated", "pdf list:x:y"} {
		_, err := bus.On(bad, noop)
		assert.ErrorIs(t, err, ErrInvalidEventName, "On(%q)", bad)

		_, err = bus.Emit(bad, nil)
		var nameErr *InvalidEventNameError
		require.ErrorAs(t, err, &nameErr, "Emit(%q)", bad)
		assert.Equal(t, bad, nameErr.Name)
	}
	assert.Equal(t, 0, bus.Stats().Subscriptions)
}

func TestBus_StrictRejectsUnregistered(t *testing.T) {
	bus := newTestBus()
	noop := HandlerFunc(func(any, Metadata) error { return nil })

	_, err := bus.On("pdf:list:deleted", noop)
	assert.ErrorIs(t, err, ErrUnregisteredEvent)

	delivered, err := bus.Emit("pdf:list:deleted", nil)
	assert.False(t, delivered)
	var unreg *UnregisteredEventError
	require.ErrorAs(t, err, &unreg)
	assert.Equal(t, "pdf:list:deleted", unreg.Name)

	assert.Equal(t, uint64(2), bus.Stats().Rejected)
	assert.Equal(t, uint64(0), bus.Stats().Emitted)
}

func TestBus_NamespacedBypassesAllowlist(t *testing.T) {
	bus := newTestBus()
	var got int

	_, err := bus.OnFunc("@pdf-list/list:row:clicked", func(any, Metadata) error {
		got++
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Emit("@pdf-list/list:row:clicked", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestBus_WarnModeLogsAndProceeds(t *testing.T) {
	logger, logs := observedLogger(zapcore.WarnLevel)
	bus := newTestBus(WithValidation(ValidationWarn), WithLogger(logger))
	var got int

	_, err := bus.OnFunc("pdf:list:deleted", func(any, Metadata) error {
		got++
		return nil
	})
	require.NoError(t, err)

	delivered, err := bus.Emit("pdf:list:deleted", nil)
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, 1, got)

	warnings := logs.FilterMessage("unregistered global event").All()
	require.Len(t, warnings, 2)
	assert.Equal(t, "pdf:list:deleted", warnings[0].ContextMap()["event"])

	_, err = bus.Emit("bad name", nil)
	assert.ErrorIs(t, err, ErrInvalidEventName, "grammar is enforced in every mode")
}

func TestBus_ValidationOff(t *testing.T) {
	bus := newTestBus(WithValidation(ValidationOff))

	_, err := bus.Emit("anything:goes:here", nil)
	assert.NoError(t, err)
	assert.Equal(t, ValidationOff, bus.Validation())
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	bus := newTestBus()
	var a, b int

	unsubA, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error { a++; return nil })
	require.NoError(t, err)
	_, err = bus.OnFunc(evtListUpdated, func(any, Metadata) error { b++; return nil })
	require.NoError(t, err)

	unsubA()
	unsubA()
	assert.Equal(t, 1, bus.ListenerCount(evtListUpdated))

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

type countingHandler struct {
	calls *int
}

func (h countingHandler) Handle(any, Metadata) error {
	*h.calls++
	return nil
}

func TestBus_OffByHandler(t *testing.T) {
	bus := newTestBus()
	var calls int
	h := countingHandler{calls: &calls}

	_, err := bus.On(evtListUpdated, h)
	require.NoError(t, err)
	_, err = bus.On(evtListUpdated, h)
	require.NoError(t, err)

	assert.Equal(t, 0, bus.Off(evtListFailed, h))
	assert.Equal(t, 2, bus.Off(evtListUpdated, h))
	assert.Equal(t, 0, bus.Off(evtListUpdated, h))

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func namedHandler(any, Metadata) error { return nil }

func TestBus_OffIgnoresFuncHandlers(t *testing.T) {
	bus := newTestBus()

	_, err := bus.OnFunc(evtListUpdated, namedHandler)
	require.NoError(t, err)
	assert.Equal(t, 0, bus.Off(evtListUpdated, HandlerFunc(namedHandler)))
	assert.Equal(t, 1, bus.ListenerCount(evtListUpdated))
}

type viewer struct {
	calls int
}

func (v *viewer) handle(any, Metadata) error {
	v.calls++
	return nil
}

func TestBus_MethodValuesOnDifferentReceivers(t *testing.T) {
	bus := newTestBus()
	a, b := &viewer{}, &viewer{}

	_, err := bus.OnFunc(evtListUpdated, a.handle, WithSubscriberID("viewer-a"))
	require.NoError(t, err)
	_, err = bus.OnFunc(evtListUpdated, b.handle, WithSubscriberID("viewer-b"))
	require.NoError(t, err)

	assert.Equal(t, 0, bus.Off(evtListUpdated, HandlerFunc(a.handle)))
	assert.Equal(t, 1, bus.OffID(evtListUpdated, "viewer-a"))
	assert.Equal(t, 0, bus.OffID(evtListUpdated, "viewer-a"))

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestBus_OffIDScopedToEvent(t *testing.T) {
	bus := newTestBus()

	_, err := bus.OnFunc(evtListUpdated, namedHandler, WithSubscriberID("table"))
	require.NoError(t, err)
	_, err = bus.OnFunc(evtListFailed, namedHandler, WithSubscriberID("table"))
	require.NoError(t, err)

	assert.Equal(t, 1, bus.OffID(evtListUpdated, "table"))
	assert.Equal(t, 0, bus.ListenerCount(evtListUpdated))
	assert.Equal(t, 1, bus.ListenerCount(evtListFailed))
	assert.Equal(t, 1, bus.Stats().Subscriptions)
}

func TestBus_OnceDeliversOnce(t *testing.T) {
	bus := newTestBus()
	var calls int

	unsub, err := bus.Once(evtListUpdated, HandlerFunc(func(any, Metadata) error {
		calls++
		return nil
	}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := bus.Emit(evtListUpdated, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.ListenerCount(evtListUpdated))
	unsub()
}

func TestBus_OnceReentrantEmit(t *testing.T) {
	bus := newTestBus()
	var calls int

	_, err := bus.Once(evtListUpdated, HandlerFunc(func(any, Metadata) error {
		calls++
		_, err := bus.Emit(evtListUpdated, nil)
		return err
	}))
	require.NoError(t, err)

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBus_OnceCancelledBeforeFire(t *testing.T) {
	bus := newTestBus()
	var calls int

	unsub, err := bus.Once(evtListUpdated, HandlerFunc(func(any, Metadata) error {
		calls++
		return nil
	}))
	require.NoError(t, err)
	unsub()

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestBus_HandlerIsolation(t *testing.T) {
	logger, logs := observedLogger(zapcore.ErrorLevel)
	bus := newTestBus(WithLogger(logger))
	var reached []string

	_, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		reached = append(reached, "errors")
		return errors.New("boom")
	}, WithSubscriberID("failing"))
	require.NoError(t, err)
	_, err = bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		reached = append(reached, "panics")
		panic("kaboom")
	}, WithSubscriberID("panicking"))
	require.NoError(t, err)
	_, err = bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		reached = append(reached, "ok")
		return nil
	})
	require.NoError(t, err)

	delivered, err := bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, []string{"errors", "panics", "ok"}, reached)

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.HandlerErrors)
	assert.Equal(t, uint64(1), stats.HandlerPanics)
	assert.Equal(t, uint64(1), stats.Delivered)

	failed := logs.FilterMessage("event handler failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "failing", failed[0].ContextMap()["subscriber"])

	panicked := logs.FilterMessage("event handler panicked").All()
	require.Len(t, panicked, 1)
	assert.Equal(t, "kaboom", panicked[0].ContextMap()["panic"])
}

func TestBus_SubscribeDuringEmitNotCalled(t *testing.T) {
	bus := newTestBus()
	var late int

	_, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		_, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error {
			late++
			return nil
		})
		return err
	})
	require.NoError(t, err)

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, late)

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, late)
}

func TestBus_UnsubscribeDuringEmitSkipsPending(t *testing.T) {
	bus := newTestBus()
	var second int
	var unsubSecond Unsubscribe

	_, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		unsubSecond()
		return nil
	})
	require.NoError(t, err)
	unsubSecond, err = bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		second++
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}

func TestBus_ReentrantDepthFirst(t *testing.T) {
	bus := newTestBus()
	var order []string

	_, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error {
		order = append(order, "outer-start")
		if _, err := bus.Emit(evtPageChanged, nil); err != nil {
			return err
		}
		order = append(order, "outer-end")
		return nil
	})
	require.NoError(t, err)
	_, err = bus.OnFunc(evtPageChanged, func(any, Metadata) error {
		order = append(order, "inner")
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Emit(evtListUpdated, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer-start", "inner", "outer-end"}, order)
}

func TestBus_Filter(t *testing.T) {
	bus := newTestBus()
	var calls int

	_, err := bus.Once(evtListUpdated, HandlerFunc(func(any, Metadata) error {
		calls++
		return nil
	}), WithFilter(FilterBySource("home")))
	require.NoError(t, err)

	_, err = bus.EmitWithMetadata(evtListUpdated, nil, Metadata{Source: "viewer"})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, bus.ListenerCount(evtListUpdated), "filtered delivery must not consume once")

	_, err = bus.EmitWithMetadata(evtListUpdated, nil, Metadata{Source: "home"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.ListenerCount(evtListUpdated))
}

func TestBus_Destroy(t *testing.T) {
	bus := newTestBus()
	noop := HandlerFunc(func(any, Metadata) error { return nil })

	_, err := bus.On(evtListUpdated, noop)
	require.NoError(t, err)

	bus.Destroy()
	bus.Destroy()
	assert.True(t, bus.IsDestroyed())
	assert.Empty(t, bus.Events())

	_, err = bus.On(evtListUpdated, noop)
	assert.ErrorIs(t, err, ErrBusDestroyed)
	_, err = bus.Emit(evtListUpdated, nil)
	assert.ErrorIs(t, err, ErrBusDestroyed)
}

func TestBus_NilHandler(t *testing.T) {
	bus := newTestBus()
	_, err := bus.On(evtListUpdated, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestBus_Stats(t *testing.T) {
	bus := newTestBus()
	noop := HandlerFunc(func(any, Metadata) error { return nil })

	_, _ = bus.On(evtListUpdated, noop)
	_, _ = bus.On(evtListUpdated, noop)
	_, _ = bus.On(evtPageChanged, noop)

	stats := bus.Stats()
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 3, stats.Subscriptions)
	assert.Equal(t, map[string]int{evtListUpdated: 2, evtPageChanged: 1}, stats.PerEvent)
	assert.Equal(t, []string{evtListUpdated, evtPageChanged}, bus.Events())
}

func TestBus_ConcurrentEmitAndSubscribe(t *testing.T) {
	bus := newTestBus()
	var calls atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub, err := bus.OnFunc(evtListUpdated, func(any, Metadata) error {
				calls.Add(1)
				return nil
			})
			if err == nil {
				unsub()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = bus.Emit(evtListUpdated, j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.ListenerCount(evtListUpdated))
	assert.Equal(t, uint64(400), bus.Stats().Emitted)
}

func TestParseValidationMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ValidationMode
		wantErr bool
	}{
		{"", ValidationStrict, false},
		{"strict", ValidationStrict, false},
		{"warn", ValidationWarn, false},
		{"off", ValidationOff, false},
		{"loud", ValidationStrict, true},
	}

	for _, tt := range tests {
		got, err := ParseValidationMode(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
		if tt.input != "" {
			assert.Equal(t, tt.input, got.String())
		}
	}
}
