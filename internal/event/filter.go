package event

// FilterFunc is a predicate evaluated before a delivery.
// Return true to deliver, false to skip.
type FilterFunc func(data any, meta Metadata) bool

// FilterBySource delivers only events emitted with the given Metadata.Source.
// Scoped buses set Source to their namespace on global emissions.
func FilterBySource(source string) FilterFunc {
	return func(_ any, meta Metadata) bool {
		return meta.Source == source
	}
}
