package gate

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"stack-keeper/internal/models"
	"stack-keeper/internal/render"

	"gopkg.in/yaml.v3"
)

// Marker is the persisted "first-time setup completed" fact.
type Marker struct {
	path string
}

func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

func (m *Marker) Path() string {
	return m.path
}

// IsSetupComplete reports whether the marker exists.
func (m *Marker) IsSetupComplete() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

/**
 * Record that setup completed
 * @param {string} runID - Run that completed setup
 * @param {[]string} services - Services initialized by that run
 * @returns {error} Returns error if the marker cannot be written
 * @description
 * - Only called after every artifact is fresh and every init step succeeded
 * - Written atomically, a crash never leaves a half-written marker
 */
func (m *Marker) MarkSetupComplete(runID string, services []string) error {
	names := append([]string(nil), services...)
	sort.Strings(names)
	data, err := yaml.Marshal(models.SetupState{
		RunID:       runID,
		CompletedAt: time.Now().UTC(),
		Services:    names,
	})
	if err != nil {
		return fmt.Errorf("marshal setup marker: %w", err)
	}
	if err := render.WriteFileAtomic(m.path, data, 0644); err != nil {
		return fmt.Errorf("write setup marker %s: %w", m.path, err)
	}
	return nil
}

// Load reads the marker body.
func (m *Marker) Load() (*models.SetupState, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var state models.SetupState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse setup marker %s: %w", m.path, err)
	}
	return &state, nil
}

// Reset deletes the marker so the next run performs full setup. A missing marker is not an error.
func (m *Marker) Reset() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove setup marker %s: %w", m.path, err)
	}
	return nil
}
