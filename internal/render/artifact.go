package render

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"stack-keeper/internal/models"
)

// Artifact is a template rendered to a fixed output path.
type Artifact struct {
	Name     string
	Template string
	Output   string
	Mode     os.FileMode
}

func NewArtifact(spec models.ArtifactSpecification) *Artifact {
	mode := os.FileMode(spec.Mode)
	if mode == 0 {
		mode = 0644
	}
	return &Artifact{
		Name:     spec.Name,
		Template: spec.Template,
		Output:   spec.Output,
		Mode:     mode,
	}
}

/**
 * Check whether the rendered output must be regenerated
 * @returns {(bool, string)} Stale flag and the reason
 * @description
 * - Output missing or unreadable
 * - Output still contains "${", whatever its modification time
 * - Template modified after the output
 */
func (a *Artifact) Stale() (bool, string) {
	info, err := os.Stat(a.Output)
	if err != nil {
		return true, "missing"
	}
	data, err := os.ReadFile(a.Output)
	if err != nil {
		return true, "unreadable"
	}
	if HasUnresolved(string(data)) {
		return true, "unresolved placeholder"
	}
	if tinfo, err := os.Stat(a.Template); err == nil && tinfo.ModTime().After(info.ModTime()) {
		return true, "template newer"
	}
	return false, ""
}

/**
 * Render the template and replace the output atomically
 * @param {Source} src - Variable source
 * @returns {error} *models.TemplateError or *models.ConfigWriteError
 */
func (a *Artifact) Write(src Source) error {
	text, err := RenderFile(a.Template, src)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(a.Output, []byte(text), a.Mode); err != nil {
		return &models.ConfigWriteError{Path: a.Output, Err: err}
	}
	return nil
}

// Missing lists template variables without a value, nil if the template is unreadable.
func (a *Artifact) Missing(src Source) []string {
	data, err := os.ReadFile(a.Template)
	if err != nil {
		return nil
	}
	return Missing(string(data), src)
}

/**
 * Refresh the artifact if it is stale
 * @param {Source} src - Variable source
 * @returns {(bool, error)} true if the output was rewritten
 */
func (a *Artifact) Refresh(src Source) (bool, error) {
	if stale, _ := a.Stale(); !stale {
		return false, nil
	}
	if err := a.Write(src); err != nil {
		return false, err
	}
	return true, nil
}

/**
 * Write a file through a temporary file and rename
 * @param {string} path - Target path
 * @param {[]byte} data - Content
 * @param {os.FileMode} mode - Target mode
 * @returns {error} Error of any step; the target is untouched on failure
 * @description
 * - Missing parent directories are created
 * - renameio keeps the temporary file in the target directory and syncs it before rename
 * - The mode is applied as given, without the umask
 */
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, mode, renameio.IgnoreUmask())
}
