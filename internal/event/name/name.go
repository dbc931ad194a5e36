// Package name implements the event-name grammar used by the event bus.
//
// Two shapes are legal:
//
//	module:action:status              global name, three segments of [a-z][a-z0-9-]*
//	@namespace/module:action:status   namespaced (local) name
//
// Global names are shared by every feature and are subject to the allowlist.
// Namespaced names belong to one feature's scoped bus.
package name

import "strings"

const (
	// Separator splits the segments of a global name.
	Separator = ":"

	// NamespacePrefix introduces a namespaced name.
	NamespacePrefix = "@"

	// NamespaceSeparator ends the namespace part of a namespaced name.
	NamespaceSeparator = "/"

	// SegmentCount is the number of segments in a global name.
	SegmentCount = 3
)

// IsValid reports whether s is a valid global or namespaced event name.
func IsValid(s string) bool {
	if IsNamespaced(s) {
		_, local, ok := SplitNamespaced(s)
		return ok && IsValidGlobal(local)
	}
	return IsValidGlobal(s)
}

// IsValidGlobal reports whether s is a valid three-segment global name.
func IsValidGlobal(s string) bool {
	segments := strings.Split(s, Separator)
	if len(segments) != SegmentCount {
		return false
	}
	for _, seg := range segments {
		if !validSegment(seg) {
			return false
		}
	}
	return true
}

// validSegment checks [a-z][a-z0-9-]*.
func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if seg[0] < 'a' || seg[0] > 'z' {
		return false
	}
	for i := 1; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

// IsNamespaced reports whether s starts with the namespace prefix.
// It does not validate the rest of the name.
func IsNamespaced(s string) bool {
	return strings.HasPrefix(s, NamespacePrefix)
}

// SplitNamespaced splits "@ns/local" into its namespace and local parts.
// ok is false when s is not namespaced or the namespace is empty.
func SplitNamespaced(s string) (namespace, local string, ok bool) {
	if !IsNamespaced(s) {
		return "", "", false
	}
	rest := s[len(NamespacePrefix):]
	idx := strings.Index(rest, NamespaceSeparator)
	if idx <= 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// ValidNamespace reports whether ns can be used as a namespace.
func ValidNamespace(ns string) bool {
	return ns != "" && !strings.Contains(ns, NamespaceSeparator)
}

// NamespacePrefixFor returns "@ns/".
func NamespacePrefixFor(ns string) string {
	return NamespacePrefix + ns + NamespaceSeparator
}

// Qualify rewrites local to "@ns/local". A name already carrying the "@ns/"
// prefix is returned unchanged.
func Qualify(ns, local string) string {
	prefix := NamespacePrefixFor(ns)
	if strings.HasPrefix(local, prefix) {
		return local
	}
	return prefix + local
}

// Join builds a global name from its segments.
//
// Example: Join("pdf", "list", "updated") -> "pdf:list:updated"
func Join(module, action, status string) string {
	return module + Separator + action + Separator + status
}

// Segments returns the module, action and status of a global name.
// ok is false when s is not a valid global name.
func Segments(s string) (module, action, status string, ok bool) {
	if !IsValidGlobal(s) {
		return "", "", "", false
	}
	parts := strings.Split(s, Separator)
	return parts[0], parts[1], parts[2], true
}
