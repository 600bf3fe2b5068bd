// Package resources implements directory enumeration only, no mutation.
package resources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/jmagar/swag-mcp/internal/validation"
)

const op = "resources"

// Manager enumerates the managed configuration directory.
type Manager struct {
	dir string
}

// New constructs a Manager rooted at dir.
func New(dir string) *Manager {
	return &Manager{dir: dir}
}

// ListActive returns every file matching the active-config pattern,
// lexically sorted, case-insensitive.
func (m *Manager) ListActive() ([]string, error) {
	return m.listMatching(func(name string) bool {
		_, err := validation.ValidateConfigName(name)
		return err == nil
	})
}

// ListSamples returns every file ending in `.sample`, lexically sorted,
// case-insensitive.
func (m *Manager) ListSamples() ([]string, error) {
	return m.listMatching(func(name string) bool {
		return strings.HasSuffix(name, ".sample")
	})
}

// SamplesFor filters ListSamples by a prefix derived from service.
func (m *Manager) SamplesFor(service string) ([]string, error) {
	samples, err := m.ListSamples()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range samples {
		if strings.HasPrefix(s, service+".") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Manager) listMatching(keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errs.Target(errs.IOFailure, op+".listMatching", m.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if keep(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	return names, nil
}

// Describe stats name within the managed directory and classifies it.
func (m *Manager) Describe(name string) (models.ConfigFile, error) {
	full := filepath.Join(m.dir, name)
	info, err := os.Stat(full)
	if err != nil {
		return models.ConfigFile{}, errs.Target(errs.NotFound, op+".Describe", name, err)
	}
	return models.ConfigFile{
		Name:           name,
		Path:           full,
		SizeBytes:      info.Size(),
		ModifiedAt:     info.ModTime(),
		Classification: classify(name),
	}, nil
}

func classify(name string) models.Classification {
	switch {
	case strings.Contains(name, ".backup."):
		return models.ClassBackup
	case strings.HasSuffix(name, ".sample"):
		return models.ClassSample
	case strings.HasSuffix(name, ".conf"):
		return models.ClassActive
	default:
		return models.ClassOther
	}
}
