// Package config loads the pdfdesk configuration.
//
// Configuration is read from a TOML or YAML file, chosen by extension,
// checked against an embedded JSON schema, overlaid with PDFDESK_*
// environment variables and finally validated as a whole.
//
// Example pdfdesk.toml:
//
//	[log]
//	level = "debug"
//	file = "~/.local/state/pdfdesk/pdfdesk.log"
//
//	[bus]
//	validation = "strict"
//	event_tables = ["events/extra.yaml"]
//
//	[features]
//	continue_on_error = true
//	install_timeout = "5s"
//	script_dir = "features"
//	disabled = ["ai-chat"]
//
// The package also loads extra event-name tables for the bus allowlist and
// watches the configuration file for changes.
package config
