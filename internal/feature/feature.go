package feature

import (
	"context"

	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/logging"
)

// Feature is a pluggable application module.
type Feature interface {
	// Name is unique among registered features and becomes the namespace of
	// the feature's scoped bus.
	Name() string

	// Version is informational.
	Version() string

	// Dependencies lists the names of features that must be installed first.
	Dependencies() []string

	// Install wires the feature into the application. Work that outlives
	// ctx should be bound to fc.Disposer.
	Install(ctx context.Context, fc *Context) error

	// Uninstall releases what Install acquired.
	Uninstall(ctx context.Context) error
}

// Context is what a feature receives at install time.
type Context struct {
	// Scoped is the feature's private bus, namespaced to its name.
	Scoped *event.ScopedBus

	// Global is the application-wide bus.
	Global *event.Bus

	// Logger is labelled with feature=<name>.
	Logger logging.Logger

	// Container is the shared application container. Services registered
	// here are visible to every feature installed later.
	Container *container.Container

	// Disposer runs after Uninstall, newest cleanup first.
	Disposer *event.Disposer
}

// Basic is a Feature assembled from funcs. It keeps the Context it was
// installed with so OnUninstall can use it.
type Basic struct {
	FeatureName    string
	FeatureVersion string
	Requires       []string

	OnInstall   func(ctx context.Context, fc *Context) error
	OnUninstall func(ctx context.Context, fc *Context) error

	fc *Context
}

// Name implements Feature.
func (b *Basic) Name() string { return b.FeatureName }

// Version implements Feature.
func (b *Basic) Version() string { return b.FeatureVersion }

// Dependencies implements Feature.
func (b *Basic) Dependencies() []string { return b.Requires }

// Install implements Feature.
func (b *Basic) Install(ctx context.Context, fc *Context) error {
	b.fc = fc
	if b.OnInstall == nil {
		return nil
	}
	return b.OnInstall(ctx, fc)
}

// Uninstall implements Feature.
func (b *Basic) Uninstall(ctx context.Context) error {
	if b.OnUninstall == nil {
		return nil
	}
	return b.OnUninstall(ctx, b.fc)
}
