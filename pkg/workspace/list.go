package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"
)

// Entry is a file found by List.
type Entry struct {
	// Name is relative to the area, with forward slashes.
	Name    string
	Size    int64
	ModTime time.Time
}

// Matcher selects files by glob patterns over area-relative names. "*" stays
// within one directory level, "**" crosses levels.
type Matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewMatcher compiles include and exclude patterns. With no include patterns
// everything not excluded matches.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	for _, pattern := range include {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		m.include = append(m.include, g)
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		m.exclude = append(m.exclude, g)
	}
	return m, nil
}

// Match reports whether name is selected. Excludes take precedence.
func (m *Matcher) Match(name string) bool {
	for _, g := range m.exclude {
		if g.Match(name) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, g := range m.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// List walks area and returns the regular files m selects, sorted by name. A
// missing area directory yields no entries.
func (g *Guard) List(area Area, m *Matcher) ([]Entry, error) {
	dir, err := g.Dir(area)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir && errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if m != nil && !m.Match(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: name, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list %s: %w", area, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Newest returns the most recently modified entry, or false when there are
// none.
func Newest(entries []Entry) (Entry, bool) {
	var newest Entry
	found := false
	for _, e := range entries {
		if !found || e.ModTime.After(newest.ModTime) {
			newest, found = e, true
		}
	}
	return newest, found
}
