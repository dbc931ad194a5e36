package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/multierr"
)

// Discover loads every feature under dir. Each immediate subdirectory
// holding a feature.yaml is one feature; other entries are ignored.
// Features with valid manifests are returned, sorted by name, together with
// the combined errors of the ones that could not be loaded. A missing dir
// yields no features and no error.
func Discover(dir string) ([]*Feature, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading script directory: %w", err)
	}

	var (
		features []*Feature
		errs     error
		seen     = make(map[string]string)
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		featureDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(featureDir, ManifestFile)); err != nil {
			continue
		}

		m, err := LoadManifest(featureDir)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if prev, dup := seen[m.Name]; dup {
			errs = multierr.Append(errs, &ManifestError{
				Path:     filepath.Join(featureDir, ManifestFile),
				Problems: []string{fmt.Sprintf("feature %q already defined in %s", m.Name, prev)},
			})
			continue
		}
		if _, err := os.Stat(m.MainPath()); err != nil {
			errs = multierr.Append(errs, &ManifestError{
				Path: filepath.Join(featureDir, ManifestFile),
				Err:  fmt.Errorf("entry script: %w", err),
			})
			continue
		}
		seen[m.Name] = featureDir
		features = append(features, New(m))
	}

	sort.Slice(features, func(i, j int) bool {
		return features[i].Name() < features[j].Name()
	})
	return features, errs
}
