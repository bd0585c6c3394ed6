package media

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Workspace is the temp directory for intermediate media files. Stale files
// are cleaned up by the maintenance sweeper.
type Workspace struct {
	dir string
}

// NewWorkspace creates dir if needed.
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "kleinbot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create media workspace")
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Path returns a fresh file name such as sticker_<uuid>.webp.
func (w *Workspace) Path(prefix, ext string) string {
	return filepath.Join(w.dir, prefix+"_"+uuid.NewString()+ext)
}

// Write stores data under a fresh name.
func (w *Workspace) Write(prefix, ext string, data []byte) (string, error) {
	p := w.Path(prefix, ext)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write temp file")
	}
	return p, nil
}

// Remove deletes paths, ignoring files that are already gone.
func (w *Workspace) Remove(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
