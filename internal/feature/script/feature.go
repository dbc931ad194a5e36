package script

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/pdfdesk/internal/feature"
)

// Lua entry points.
const (
	installFunc   = "install"
	uninstallFunc = "uninstall"
)

// Feature is a feature implemented by a Lua script.
//
// Install creates a fresh sandboxed state, runs the entry script and calls
// its global install(). Uninstall calls uninstall() when the script defines
// one, drops the script's subscriptions and closes the state.
type Feature struct {
	manifest *Manifest

	mu    sync.Mutex
	state *State
	api   *api
}

var _ feature.Feature = (*Feature)(nil)

// New returns a feature for m.
func New(m *Manifest) *Feature {
	return &Feature{manifest: m}
}

// Manifest returns the manifest the feature was created from.
func (f *Feature) Manifest() *Manifest {
	return f.manifest
}

// Name implements feature.Feature.
func (f *Feature) Name() string { return f.manifest.Name }

// Version implements feature.Feature.
func (f *Feature) Version() string { return f.manifest.Version }

// Dependencies implements feature.Feature.
func (f *Feature) Dependencies() []string { return f.manifest.Dependencies }

// Install implements feature.Feature.
func (f *Feature) Install(ctx context.Context, fc *feature.Context) error {
	state := NewState()
	a := newAPI(state, fc.Scoped, fc.Logger.With("script", f.manifest.Main))
	a.register()

	fail := func(fn string, err error) error {
		a.release()
		state.Close()
		return &ScriptError{Feature: f.Name(), Func: fn, Err: err}
	}

	if err := state.DoFile(f.manifest.MainPath()); err != nil {
		return fail("load", err)
	}
	if !state.HasFunction(installFunc) {
		return fail(installFunc, ErrNoInstall)
	}
	if err := state.CallGlobal(ctx, installFunc); err != nil {
		return fail(installFunc, err)
	}

	f.mu.Lock()
	f.state = state
	f.api = a
	f.mu.Unlock()
	return nil
}

// Uninstall implements feature.Feature.
func (f *Feature) Uninstall(ctx context.Context) error {
	f.mu.Lock()
	state, a := f.state, f.api
	f.state, f.api = nil, nil
	f.mu.Unlock()

	if state == nil {
		return ErrNotInstalled
	}

	var err error
	if state.HasFunction(uninstallFunc) {
		if cerr := state.CallGlobal(ctx, uninstallFunc); cerr != nil {
			err = &ScriptError{Feature: f.Name(), Func: uninstallFunc, Err: cerr}
		}
	}
	a.release()
	state.Close()
	return err
}

// Subscriptions returns the ids of the script's live subscriptions.
func (f *Feature) Subscriptions() []string {
	f.mu.Lock()
	a := f.api
	f.mu.Unlock()

	if a == nil {
		return nil
	}
	return a.subscriptions()
}

// IsInstalled returns true between a successful Install and Uninstall.
func (f *Feature) IsInstalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != nil
}

// IsScriptError reports whether err came from running Lua code.
func IsScriptError(err error) bool {
	var se *ScriptError
	return errors.As(err, &se)
}
