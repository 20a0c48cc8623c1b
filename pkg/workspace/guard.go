// Package workspace confines file operations to the four areas of a test
// project: tests, page objects, fixtures and results.
//
// Every path handed to the tool dispatcher is resolved through a Guard. Names
// are interpreted relative to their area; absolute names, traversal out of
// the area and symlinks pointing elsewhere are rejected.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Area is one of the fixed project directories.
type Area string

const (
	Tests    Area = "tests"
	Pages    Area = "pages"
	Fixtures Area = "fixtures"
	Results  Area = "results"
)

// Areas lists every area.
var Areas = []Area{Tests, Pages, Fixtures, Results}

// ErrOutsideArea is returned for paths that escape their area.
var ErrOutsideArea = errors.New("path is outside its area")

// Layout maps each area to a directory relative to the project root.
type Layout map[Area]string

// Guard enforces area boundaries on file paths.
type Guard struct {
	root  string          // Absolute, symlink-free project root
	areas map[Area]string // Absolute area directories
}

// NewGuard creates a guard for the project at root. Area directories need not
// exist yet.
func NewGuard(root string, layout Layout) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("project directory cannot be empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	evalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate project directory symlinks: %w", err)
	}

	g := &Guard{root: evalRoot, areas: make(map[Area]string, len(Areas))}
	for _, area := range Areas {
		rel := layout[area]
		if rel == "" {
			return nil, fmt.Errorf("no directory configured for %s", area)
		}
		if filepath.IsAbs(rel) {
			return nil, fmt.Errorf("%s directory must be relative: %s", area, rel)
		}
		dir := filepath.Join(evalRoot, filepath.Clean(rel))
		if !within(dir, evalRoot) || dir == evalRoot {
			return nil, fmt.Errorf("%s directory must be inside the project: %s", area, rel)
		}
		g.areas[area] = dir
	}
	return g, nil
}

// Root returns the absolute project directory.
func (g *Guard) Root() string {
	return g.root
}

// Dir returns the absolute directory of area.
func (g *Guard) Dir(area Area) (string, error) {
	dir, ok := g.areas[area]
	if !ok {
		return "", fmt.Errorf("unknown area %q", area)
	}
	return dir, nil
}

// Resolve returns the absolute path of name inside area.
//
// Returns an error if:
// - name is empty or absolute
// - name climbs out of the area with ..
// - an existing symlink along the path leads outside the area
func (g *Guard) Resolve(area Area, name string) (string, error) {
	dir, err := g.Dir(area)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("'%s': absolute paths are not allowed: %w", name, ErrOutsideArea)
	}

	path := filepath.Join(dir, filepath.Clean(name))
	if path == dir || !within(path, dir) {
		return "", fmt.Errorf("'%s' escapes the %s area: %w", name, area, ErrOutsideArea)
	}

	// The area itself may be a symlink; compare fully resolved forms.
	if !within(resolveSymlinks(path), resolveSymlinks(dir)) {
		return "", fmt.Errorf("'%s' links outside the %s area: %w", name, area, ErrOutsideArea)
	}
	return path, nil
}

// Rel returns path relative to the project root, with forward slashes.
func (g *Guard) Rel(path string) string {
	rel, err := filepath.Rel(g.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path+string(filepath.Separator), dir+string(filepath.Separator))
}

// resolveSymlinks resolves symlinks in a path, handling non-existent paths
// by resolving the nearest existing parent.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var components []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			result := resolved
			for i := len(components) - 1; i >= 0; i-- {
				result = filepath.Join(result, components[i])
			}
			return result
		}

		dir := filepath.Dir(current)
		if dir == current {
			return path
		}
		components = append(components, filepath.Base(current))
		current = dir
	}
}

// EnsureDir creates area's directory if needed and returns it.
func (g *Guard) EnsureDir(area Area) (string, error) {
	dir, err := g.Dir(area)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", area, err)
	}
	return dir, nil
}
