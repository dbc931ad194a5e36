// Package container provides the hierarchical service container shared by
// pdfdesk features.
//
// A Container maps string keys to providers. Providers are either a
// Constructor, which receives its declared dependencies positionally, or a
// Factory, which receives the container itself. Dependencies are always
// declared explicitly with WithDependencies; a dependency key with no
// registration is injected as nil so optional collaborators stay optional.
//
// Containers form a tree. CreateScope returns a named child whose lookups
// fall back to its parent; registrations in a child may shadow the parent's.
//
//	root := container.New("app")
//	_ = root.RegisterInstance("logger", logger)
//	_ = root.Register("library", newLibrary, container.WithDependencies("logger", "store"))
//
//	lib, err := container.Resolve[*Library](root, "library")
package container
