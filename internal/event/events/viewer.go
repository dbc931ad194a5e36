package events

// Viewer events, owned by the PDF viewer screen.
const (
	// ViewerFileLoadRequested asks the viewer to load a document.
	ViewerFileLoadRequested = "pdf-viewer:file:load-requested"

	// ViewerFileLoaded is published once a document is parsed.
	ViewerFileLoaded = "pdf-viewer:file:loaded"

	// ViewerFileLoadFailed is published when a document failed to load.
	ViewerFileLoadFailed = "pdf-viewer:file:load-failed"

	// ViewerPageChanged is published when the current page changes.
	ViewerPageChanged = "pdf-viewer:page:changed"

	// ViewerPageRendered is published after a page has been drawn.
	ViewerPageRendered = "pdf-viewer:page:rendered"

	// ViewerZoomChanged is published when the zoom level changes.
	ViewerZoomChanged = "pdf-viewer:zoom:changed"

	// ViewerTextSelected is published when the user selects text on a page.
	ViewerTextSelected = "pdf-viewer:text:selected"

	// ViewerTextCleared is published when the text selection is cleared.
	ViewerTextCleared = "pdf-viewer:text:cleared"
)

// Viewer is the viewer event table.
var Viewer = map[string]any{
	"FILE": []string{ViewerFileLoadRequested, ViewerFileLoaded, ViewerFileLoadFailed},
	"PAGE": []string{ViewerPageChanged, ViewerPageRendered},
	"ZOOM": ViewerZoomChanged,
	"TEXT": map[string]string{
		"SELECTED": ViewerTextSelected,
		"CLEARED":  ViewerTextCleared,
	},
}

// PageChanged is the payload of ViewerPageChanged.
type PageChanged struct {
	Page  int
	Total int
}
