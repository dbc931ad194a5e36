package events

// Annotation events: highlights, screenshots and comments.
const (
	AnnotationCreateRequested = "annotation:create:requested"
	AnnotationCreated         = "annotation:create:completed"
	AnnotationCreateFailed    = "annotation:create:failed"
	AnnotationUpdated         = "annotation:update:completed"
	AnnotationDeleted         = "annotation:delete:completed"
	AnnotationListUpdated     = "annotation:list:updated"
	AnnotationNavigate        = "annotation:navigate:requested"
)

// Annotation is the annotation event table.
var Annotation = map[string]any{
	"CREATE": map[string]string{
		"REQUESTED": AnnotationCreateRequested,
		"COMPLETED": AnnotationCreated,
		"FAILED":    AnnotationCreateFailed,
	},
	"UPDATE":   AnnotationUpdated,
	"DELETE":   AnnotationDeleted,
	"LIST":     AnnotationListUpdated,
	"NAVIGATE": AnnotationNavigate,
}
