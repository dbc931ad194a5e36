// Package event provides the pdfdesk event bus.
//
// The bus is the kernel's communication backbone: features never call each
// other directly, they emit and subscribe to named events.
//
// # Architecture
//
//	                ┌───────────────────────────────────────┐
//	                │                 Bus                    │
//	                │  - subscription registry               │
//	                │  - name grammar + global allowlist     │
//	                │  - synchronous, re-entrant dispatch    │
//	                └───────────────────────────────────────┘
//	                      ▲                      ▲
//	          ┌───────────┴─────────┐  ┌─────────┴───────────┐
//	          │ ScopedBus "pdf-home"│  │ScopedBus "pdf-viewer"│
//	          │  @pdf-home/...      │  │  @pdf-viewer/...     │
//	          └─────────────────────┘  └──────────────────────┘
//
// # Event Names
//
// Global names have three lower-case segments, module:action:status, and
// must appear in the Allowlist built at startup from every module's constant
// table. A ScopedBus rewrites local names to "@<namespace>/<name>"; those are
// private to one feature and bypass the allowlist. The grammar is checked in
// every validation mode.
//
// # Dispatch
//
// Emit runs every subscriber on the caller's goroutine in subscription order.
// Handler errors and panics are logged and counted; they never reach the
// emitter or stop delivery to the remaining subscribers.
//
// # Usage
//
//	bus := event.NewBus(
//	    event.WithAllowlist(event.BuildAllowlist(events.Tables()...)),
//	    event.WithLogger(logger),
//	)
//
//	unsub, err := bus.OnFunc(events.PDFListUpdated, func(data any, meta event.Metadata) error {
//	    return refresh(data)
//	})
//	defer unsub()
//
//	scoped, _ := event.NewScopedBus("pdf-home", bus)
//	scoped.Emit("table:row:selected", row)
//	scoped.EmitGlobal(events.PDFListRequested, nil)
//
// # Teardown
//
// ScopedBus.Destroy drops every subscription made through the scope. A
// Disposer collects Unsubscribe funcs and other cleanup hooks and runs them
// in reverse order.
package event
