package script

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/dshills/pdfdesk/internal/event/name"
)

// ManifestFile is the manifest file name inside a feature directory.
const ManifestFile = "feature.yaml"

// DefaultMain is the entry script used when a manifest names none.
const DefaultMain = "init.lua"

//go:embed manifest.schema.json
var manifestSchema []byte

// Manifest describes a scripted feature.
type Manifest struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Description  string   `yaml:"description"`
	Main         string   `yaml:"main"`
	Dependencies []string `yaml:"dependencies"`

	// Dir is the directory the manifest was loaded from.
	Dir string `yaml:"-"`
}

// MainPath returns the absolute path of the entry script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.Dir, m.Main)
}

// LoadManifest reads and validates the manifest in dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data, path)
	if err != nil {
		return nil, err
	}
	m.Dir = dir
	return m, nil
}

// ParseManifest decodes and validates manifest data. source names the
// data in errors.
func ParseManifest(data []byte, source string) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ManifestError{Path: source, Err: err}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(manifestSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, &ManifestError{Path: source, Err: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &ManifestError{Path: source, Problems: problems}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Path: source, Err: err}
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, &ManifestError{Path: source, Problems: []string{err.Error()}}
	}
	return &m, nil
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks the rules the schema cannot express.
func (m *Manifest) Validate() error {
	if !name.ValidNamespace(m.Name) {
		return fmt.Errorf("name %q is not a valid namespace", m.Name)
	}
	if !filepath.IsLocal(m.Main) {
		return fmt.Errorf("main %q must be a relative path inside the feature directory", m.Main)
	}
	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("feature %q depends on itself", m.Name)
		}
	}
	return nil
}
