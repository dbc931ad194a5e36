// Package script runs features written in Lua.
//
// A script directory holds one subdirectory per feature:
//
//	scripts/
//	  recent-files/
//	    feature.yaml
//	    init.lua
//
// feature.yaml names the feature and its dependencies:
//
//	name: recent-files
//	version: 1.0.0
//	dependencies: [pdf-list]
//	main: init.lua
//
// The entry script defines a global install() and, optionally, uninstall().
// Scripts run in a sandbox with only the base, table, string and math
// libraries, plus two modules bound to the feature:
//
//	bus.namespace()              -- the feature name
//	bus.on(name, fn)             -- local subscription, returns an id
//	bus.once(name, fn)
//	bus.emit(name, data)         -- local emission, returns delivered
//	bus.on_global(name, fn)
//	bus.once_global(name, fn)
//	bus.emit_global(name, data)
//	bus.off(id)
//	log.debug(msg, fields)       -- also info, warn, error
//
// Handlers receive (data, meta). Go payloads are converted to Lua tables;
// tables emitted from Lua arrive in Go as map[string]any or []any.
//
// Events may arrive on any goroutine, e.g. config-watch emits from its
// watcher. Each state runs one call at a time; a call made while a script
// is blocked in bus.emit runs to completion before that script resumes.
package script
