// Package events declares the global event names each pdfdesk module owns.
//
// Every module exports its names as constants plus a table value. The tables
// are the single source of truth for the global allowlist: bootstrap passes
// Tables() to event.BuildAllowlist, and the bus rejects any global name that
// is not declared here (or in a configured table file).
//
// # Naming Convention
//
// Global names have three segments:
//
//	<module>:<action>:<status>
//
// Examples:
//   - pdf:list:updated
//   - feature:install:completed
//   - config:file:changed
//
// Feature-private events are not declared here. They are emitted through a
// scoped bus and travel as @<namespace>/<module>:<action>:<status>.
package events
