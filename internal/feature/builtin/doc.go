// Package builtin provides the features compiled into pdfdesk.
//
//	metrics       feature lifecycle collectors on the shared prometheus registry
//	config-watch  republishes configuration file changes as config:file:changed
//
// Both are ordinary feature.Feature values and go through the runner like
// scripted features do.
package builtin
