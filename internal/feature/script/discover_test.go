package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "b-dir", "name: notes\ndependencies: [recent]\n", `function install() end`)
	writeFeature(t, dir, "a-dir", "name: recent\n", `function install() end`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "no-manifest"), 0o755))

	features, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "notes", features[0].Name())
	assert.Equal(t, []string{"recent"}, features[0].Dependencies())
	assert.Equal(t, "recent", features[1].Name())
	assert.Equal(t, "0.0.0", features[1].Version())
}

func TestDiscover_CollectsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "good", "name: good\n", `function install() end`)
	writeFeature(t, dir, "bad", "name: bad\nversion: nope\n", `function install() end`)
	writeFeature(t, dir, "no-script", "name: no-script\n", "")
	writeFeature(t, dir, "zz-dup", "name: good\n", `function install() end`)

	features, err := Discover(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidManifest))

	require.Len(t, features, 1)
	assert.Equal(t, "good", features[0].Name())
	assert.Contains(t, err.Error(), "already defined")
	assert.Contains(t, err.Error(), "entry script")
}

func TestDiscover_MissingDir(t *testing.T) {
	features, err := Discover(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, features)

	features, err = Discover("")
	require.NoError(t, err)
	assert.Empty(t, features)
}
