package script

import (
	"fmt"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/logging"
)

// api exposes the "bus" and "log" modules to one script.
type api struct {
	state  *State
	scoped *event.ScopedBus
	logger logging.Logger

	mu     sync.Mutex
	subs   map[string]event.Unsubscribe
	nextID uint64
}

func newAPI(state *State, scoped *event.ScopedBus, logger logging.Logger) *api {
	return &api{
		state:  state,
		scoped: scoped,
		logger: logger,
		subs:   make(map[string]event.Unsubscribe),
	}
}

// register installs the bus and log globals.
func (a *api) register() {
	L := a.state.L

	bus := L.NewTable()
	L.SetFuncs(bus, map[string]lua.LGFunction{
		"namespace":   a.namespace,
		"on":          a.on,
		"once":        a.once,
		"emit":        a.emit,
		"on_global":   a.onGlobal,
		"once_global": a.onceGlobal,
		"emit_global": a.emitGlobal,
		"off":         a.off,
	})
	L.SetGlobal("bus", bus)

	log := L.NewTable()
	L.SetFuncs(log, map[string]lua.LGFunction{
		"debug": a.logFunc(a.logger.Debug),
		"info":  a.logFunc(a.logger.Info),
		"warn":  a.logFunc(a.logger.Warn),
		"error": a.logFunc(a.logger.Error),
	})
	L.SetGlobal("log", log)
}

// release drops every subscription the script made.
func (a *api) release() {
	a.mu.Lock()
	subs := a.subs
	a.subs = make(map[string]event.Unsubscribe)
	a.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

// subscriptions returns the ids of live script subscriptions, sorted.
func (a *api) subscriptions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// namespace() -> string
func (a *api) namespace(L *lua.LState) int {
	L.Push(lua.LString(a.scoped.Namespace()))
	return 1
}

// on(name, fn) -> id
func (a *api) on(L *lua.LState) int {
	return a.subscribe(L, a.scoped.On)
}

// once(name, fn) -> id
func (a *api) once(L *lua.LState) int {
	return a.subscribe(L, a.scoped.Once)
}

// on_global(name, fn) -> id
func (a *api) onGlobal(L *lua.LState) int {
	return a.subscribe(L, a.scoped.OnGlobal)
}

// once_global(name, fn) -> id
func (a *api) onceGlobal(L *lua.LState) int {
	return a.subscribe(L, a.scoped.OnceGlobal)
}

type subscribeFunc func(string, event.Handler, ...event.SubscribeOption) (event.Unsubscribe, error)

func (a *api) subscribe(L *lua.LState, subscribe subscribeFunc) int {
	eventName := L.CheckString(1)
	fn := L.CheckFunction(2)

	a.mu.Lock()
	a.nextID++
	id := fmt.Sprintf("%s-lua-%d", a.scoped.Namespace(), a.nextID)
	a.mu.Unlock()

	handler := event.HandlerFunc(func(data any, meta event.Metadata) error {
		return a.state.CallFunction(fn, data, metadataFields(meta))
	})
	unsub, err := subscribe(eventName, handler, event.WithSubscriberID(id))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	a.mu.Lock()
	a.subs[id] = unsub
	a.mu.Unlock()

	L.Push(lua.LString(id))
	return 1
}

// off(id) -> bool
func (a *api) off(L *lua.LState) int {
	id := L.CheckString(1)

	a.mu.Lock()
	unsub, ok := a.subs[id]
	delete(a.subs, id)
	a.mu.Unlock()

	if ok {
		unsub()
	}
	L.Push(lua.LBool(ok))
	return 1
}

// emit(name, data) -> delivered
func (a *api) emit(L *lua.LState) int {
	return a.publish(L, a.scoped.Emit)
}

// emit_global(name, data) -> delivered
func (a *api) emitGlobal(L *lua.LState) int {
	return a.publish(L, a.scoped.EmitGlobal)
}

func (a *api) publish(L *lua.LState, emit func(string, any) (bool, error)) int {
	eventName := L.CheckString(1)
	data := ToGo(L.Get(2))

	var delivered bool
	var err error
	a.state.unlocked(func() {
		delivered, err = emit(eventName, data)
	})
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LBool(delivered))
	return 1
}

// logFunc adapts a logger method to log.<level>(msg, fields).
func (a *api) logFunc(logf func(string, ...any)) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		var kv []any
		if fields, ok := L.Get(2).(*lua.LTable); ok {
			keys := make([]string, 0)
			values := make(map[string]any)
			fields.ForEach(func(k, v lua.LValue) {
				key := k.String()
				keys = append(keys, key)
				values[key] = ToGo(v)
			})
			sort.Strings(keys)
			for _, k := range keys {
				kv = append(kv, k, values[k])
			}
		}
		logf(msg, kv...)
		return 0
	}
}

// metadataFields is the metadata table passed as a handler's second argument.
func metadataFields(meta event.Metadata) map[string]any {
	m := map[string]any{
		"id":         meta.ID,
		"event":      meta.Event,
		"timestamp":  meta.Timestamp.UnixMilli(),
		"subscriber": meta.SubscriberID,
	}
	if meta.Namespace != "" {
		m["namespace"] = meta.Namespace
	}
	if meta.Source != "" {
		m["source"] = meta.Source
	}
	return m
}
