package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

// ProjectDirName is the per-project directory used by current writes and by
// the preview cache: the sanitized project code, or the numeric id when the
// code is empty.
func ProjectDirName(project models.Project) string {
	name := Sanitize(project.Code)
	if name == "" || name == "." || name == ".." {
		return strconv.FormatInt(project.ID, 10)
	}
	return name
}

// Layout builds a candidate location for a stored file under root.
type Layout func(root string, project models.Project, storedName string) string

// ProjectCodeLayout is the current convention: <root>/<projectCode>/<name>.
func ProjectCodeLayout(root string, project models.Project, storedName string) string {
	return filepath.Join(root, ProjectDirName(project), storedName)
}

// ProjectIDLayout is the legacy per-numeric-id convention.
func ProjectIDLayout(root string, project models.Project, storedName string) string {
	return filepath.Join(root, strconv.FormatInt(project.ID, 10), storedName)
}

// FlatLayout is the oldest convention with everything in the root.
func FlatLayout(root string, _ models.Project, storedName string) string {
	return filepath.Join(root, storedName)
}

// DefaultLayouts lists the conventions newest first. The first entry is the
// only one new writes use.
var DefaultLayouts = []Layout{ProjectCodeLayout, ProjectIDLayout, FlatLayout}

// PathResolver locates stored bytes across the historical layouts.
type PathResolver struct {
	root    string
	layouts []Layout
}

func NewPathResolver(root string, layouts ...Layout) *PathResolver {
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	return &PathResolver{root: root, layouts: layouts}
}

func (r *PathResolver) Root() string { return r.root }

// ResolveReadPath returns the first layout whose file exists. When none
// does it returns the primary path so callers report a stable location.
func (r *PathResolver) ResolveReadPath(project models.Project, storedName string) string {
	for _, layout := range r.layouts {
		p := layout(r.root, project, storedName)
		if fileExists(p) {
			return p
		}
	}
	return r.primary(project, storedName)
}

// WritePath returns the primary location and makes sure its directory exists.
func (r *PathResolver) WritePath(project models.Project, storedName string) (string, error) {
	p := r.primary(project, storedName)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create project directory: %w", err)
	}
	return p, nil
}

func (r *PathResolver) primary(project models.Project, storedName string) string {
	return r.layouts[0](r.root, project, storedName)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
