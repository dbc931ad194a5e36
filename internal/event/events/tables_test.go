package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/pdfdesk/internal/event"
)

func TestTables_AllNamesValid(t *testing.T) {
	allow := event.BuildAllowlist(Tables()...)

	assert.Empty(t, allow.Invalid(), "every declared event name must follow module:action:status")
	assert.Greater(t, allow.Len(), 40)
}

func TestTables_ContainLifecycleEvents(t *testing.T) {
	allow := event.BuildAllowlist(Tables()...)

	for _, n := range []string{
		FeatureInstallStarted,
		FeatureInstallCompleted,
		FeatureInstallFailed,
		FeatureUninstallCompleted,
		AppFeaturesReady,
		ConfigFileChanged,
		PDFListUpdated,
		ViewerTextSelected,
	} {
		assert.True(t, allow.IsGlobalEventAllowed(n), n)
	}
}
