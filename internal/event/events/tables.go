package events

// Tables returns every built-in event table, ready for event.BuildAllowlist.
func Tables() []any {
	return []any{
		PDF,
		Viewer,
		Annotation,
		Translation,
		Chat,
		Connection,
		Lifecycle,
		Config,
	}
}
