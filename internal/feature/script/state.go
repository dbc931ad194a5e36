package script

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are base library functions removed from every state.
var blockedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"collectgarbage",
}

// State is a sandboxed Lua interpreter.
//
// gopher-lua's LState is not goroutine-safe, so every entry point takes mu.
// Go functions exposed to scripts that hand control back to the bus release
// mu for the duration of the dispatch via unlocked, so a handler running in
// the same state can re-enter. Calls that start inside such a window push
// frames on top of the suspended one; the suspended call resumes only once
// depth is back to where it left, so calls from any goroutine stay nested.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	resume *sync.Cond
	depth  int
	closed bool
}

// NewState creates a state with only the base, table, string and math
// libraries opened.
func NewState() *State {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)
	s := &State{L: L}
	s.resume = sync.NewCond(&s.mu)
	return s
}

// openSafeLibraries opens the libraries scripts may use.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, g := range blockedGlobals {
		L.SetGlobal(g, lua.LNil)
	}
}

// DoFile runs the script at path.
func (s *State) DoFile(path string) error {
	s.enter()
	defer s.leave()

	if s.closed {
		return ErrStateClosed
	}
	return recoverLua(func() error {
		return s.L.DoFile(path)
	})
}

// DoString runs code.
func (s *State) DoString(code string) error {
	s.enter()
	defer s.leave()

	if s.closed {
		return ErrStateClosed
	}
	return recoverLua(func() error {
		return s.L.DoString(code)
	})
}

// HasFunction reports whether the global fn is a function.
func (s *State) HasFunction(fn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(fn).Type() == lua.LTFunction
}

// CallGlobal calls the global function fn with args. ctx is attached to
// the VM for the duration of the call so cancellation stops the script.
func (s *State) CallGlobal(ctx context.Context, fn string, args ...lua.LValue) error {
	s.enter()
	defer s.leave()

	if s.closed {
		return ErrStateClosed
	}
	v := s.L.GetGlobal(fn)
	if v.Type() != lua.LTFunction {
		return fmt.Errorf("%q is not a function (got %s)", fn, v.Type())
	}

	prev := s.L.Context()
	s.L.SetContext(ctx)
	defer func() {
		if prev != nil {
			s.L.SetContext(prev)
		} else {
			s.L.RemoveContext()
		}
	}()
	return s.call(v, args...)
}

// CallFunction calls a function value previously captured from this state.
// args are converted with ToLua while the state is locked.
func (s *State) CallFunction(fn *lua.LFunction, args ...any) error {
	s.enter()
	defer s.leave()

	if s.closed {
		return ErrStateClosed
	}
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = ToLua(s.L, a)
	}
	return s.call(fn, largs...)
}

// call runs fn in protected mode. Must be called with mu held.
func (s *State) call(fn lua.LValue, args ...lua.LValue) error {
	return recoverLua(func() error {
		return s.L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, args...)
	})
}

// enter takes mu for a call into the VM.
func (s *State) enter() {
	s.mu.Lock()
	s.depth++
}

// leave ends a call started with enter and wakes suspended callers.
func (s *State) leave() {
	s.depth--
	s.resume.Broadcast()
	s.mu.Unlock()
}

// unlocked runs fn with mu released. It must only be called from a Go
// function invoked by the VM, which means the caller holds mu. On return
// it waits until every call started during fn has left the VM.
func (s *State) unlocked(fn func()) {
	depth := s.depth
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		for s.depth != depth {
			s.resume.Wait()
		}
	}()
	fn()
}

// Close releases the interpreter. Further calls return ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// IsClosed returns true after Close.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// recoverLua converts panics raised inside the VM into errors.
func recoverLua(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
