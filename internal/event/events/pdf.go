package events

// PDF library events, owned by the home screen.
const (
	// PDFListRequested asks the backend for the current PDF list.
	PDFListRequested = "pdf:list:requested"

	// PDFListUpdated is published when a fresh PDF list is available.
	PDFListUpdated = "pdf:list:updated"

	// PDFListFailed is published when loading the PDF list failed.
	PDFListFailed = "pdf:list:failed"

	// PDFAddRequested asks the backend to import a file.
	PDFAddRequested = "pdf:add:requested"

	// PDFAddCompleted is published when an import finished.
	PDFAddCompleted = "pdf:add:completed"

	// PDFAddFailed is published when an import failed.
	PDFAddFailed = "pdf:add:failed"

	// PDFRemoveRequested asks the backend to remove a file.
	PDFRemoveRequested = "pdf:remove:requested"

	// PDFRemoveCompleted is published when a file was removed.
	PDFRemoveCompleted = "pdf:remove:completed"

	// PDFOpenRequested asks the host to open a file in the viewer.
	PDFOpenRequested = "pdf:open:requested"

	// PDFSelectionChanged is published when the selected rows change.
	PDFSelectionChanged = "pdf:selection:changed"
)

// PDF is the PDF library event table.
var PDF = map[string]any{
	"LIST": map[string]string{
		"REQUESTED": PDFListRequested,
		"UPDATED":   PDFListUpdated,
		"FAILED":    PDFListFailed,
	},
	"ADD": map[string]string{
		"REQUESTED": PDFAddRequested,
		"COMPLETED": PDFAddCompleted,
		"FAILED":    PDFAddFailed,
	},
	"REMOVE": map[string]string{
		"REQUESTED": PDFRemoveRequested,
		"COMPLETED": PDFRemoveCompleted,
	},
	"OPEN":      PDFOpenRequested,
	"SELECTION": PDFSelectionChanged,
}

// PDFListItem describes one entry of a PDFListUpdated payload.
type PDFListItem struct {
	ID       string
	Filename string
	Path     string
	Size     int64
	Pages    int
}
