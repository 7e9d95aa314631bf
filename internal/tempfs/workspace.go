// Package tempfs owns every file a request creates. Each request gets its own
// workspace directory; releasing the workspace removes all of it.
package tempfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const workspacePrefix = "req-"

// Root is the directory under which request workspaces are created.
type Root struct {
	dir string
}

// NewRoot ensures dir exists and returns a Root bound to it.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tealpdf")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	return &Root{dir: dir}, nil
}

// Dir returns the root directory.
func (r *Root) Dir() string { return r.dir }

// Workspace creates a fresh, uniquely named directory for one request.
func (r *Root) Workspace() (*Workspace, error) {
	dir := filepath.Join(r.dir, workspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Workspace is a scoped temp directory. It has a single owner, the request
// that created it, and must be released on every exit path.
type Workspace struct {
	dir  string
	once sync.Once
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory. Only the base name is used,
// so client-supplied names cannot escape the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, safeName(name))
}

// Unique returns a path for a not-yet-created file named prefix-<uuid><ext>.
func (w *Workspace) Unique(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext))
}

// Subdir creates a uniquely named directory inside the workspace.
func (w *Workspace) Subdir(prefix string) (string, error) {
	dir := filepath.Join(w.dir, prefix+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("create subdir: %w", err)
	}
	return dir, nil
}

// Save copies src into the workspace under a unique name that keeps the
// extension of name. It returns the stored path and the byte count.
func (w *Workspace) Save(name string, src io.Reader) (string, int64, error) {
	path := w.Unique("upload", strings.ToLower(filepath.Ext(safeName(name))))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	return path, n, nil
}

// Release removes the workspace and everything in it. Calling it more than
// once is a no-op.
func (w *Workspace) Release() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			log.Warn().Err(err).Str("dir", w.dir).Msg("failed to release workspace")
		}
	})
}

func safeName(name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return "file"
	}
	return base
}
