package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
	"github.com/dshills/pdfdesk/internal/logging"
)

func TestConfigWatch_PublishesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdfdesk.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\n"), 0o644))

	bus := newTestBus()
	changes := make(chan events.FileChanged, 4)
	sources := make(chan string, 4)
	_, err := event.Subscribe(bus, events.ConfigFileChanged, func(p events.FileChanged, meta event.Metadata) error {
		sources <- meta.Source
		changes <- p
		return nil
	})
	require.NoError(t, err)

	runner := feature.NewRunner(bus, container.New("app"), logging.Nop())
	w := NewConfigWatch(10*time.Millisecond, path, "")
	require.NoError(t, runner.Register(w))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{})
	require.NoError(t, err)
	require.True(t, result.OK())
	assert.Equal(t, []string{path}, w.Paths())
	assert.Equal(t, 1, w.Watching())

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644))

	select {
	case got := <-changes:
		abs, err := filepath.Abs(path)
		require.NoError(t, err)
		assert.Equal(t, abs, got.Path)
		assert.Equal(t, "write", got.Op)
		assert.Equal(t, ConfigWatchName, <-sources)
	case <-time.After(2 * time.Second):
		t.Fatal("no config:file:changed event")
	}

	require.NoError(t, runner.UninstallAll(context.Background()))
	assert.Equal(t, 0, w.Watching())
}

func TestConfigWatch_NoFiles(t *testing.T) {
	runner := feature.NewRunner(newTestBus(), container.New("app"), logging.Nop())
	w := NewConfigWatch(0)
	require.NoError(t, runner.Register(w))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{})
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 0, w.Watching())
	require.NoError(t, runner.UninstallAll(context.Background()))
}

func TestConfigWatch_MissingDirectory(t *testing.T) {
	runner := feature.NewRunner(newTestBus(), container.New("app"), logging.Nop())
	w := NewConfigWatch(0, filepath.Join(t.TempDir(), "absent", "pdfdesk.toml"))
	require.NoError(t, runner.Register(w))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ConfigWatchName, result.Failed[0].Name)
	assert.Equal(t, feature.StateFailed, runner.State(ConfigWatchName))
}
