// Package filter decides which folders and files are indexed.
//
// Folder inclusion is resolved against the configured folder list: the
// deepest configured folder whose scope covers a path decides whether it is
// included or excluded. Names are then checked against exclude patterns
// (doublestar syntax) and the hidden-file setting.
package filter

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Aman-CERP/semdesk/internal/config"
)

// Filter answers inclusion questions for paths. It is immutable and safe
// for concurrent use.
type Filter struct {
	folders     []config.Folder // deepest first
	patterns    []string
	indexHidden bool
}

// New builds a Filter from the indexing configuration.
func New(cfg config.IndexingConfig) (*Filter, error) {
	for _, p := range cfg.ExcludeFilters {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude filter %q", p)
		}
	}

	folders := make([]config.Folder, len(cfg.Folders))
	for i, f := range cfg.Folders {
		f.Path = filepath.Clean(f.Path)
		folders[i] = f
	}
	sort.SliceStable(folders, func(i, j int) bool {
		return len(folders[i].Path) > len(folders[j].Path)
	})

	return &Filter{
		folders:     folders,
		patterns:    append([]string(nil), cfg.ExcludeFilters...),
		indexHidden: cfg.IndexHidden,
	}, nil
}

// IncludedFolders returns the configured folders that are indexed.
func (f *Filter) IncludedFolders() []config.Folder {
	var out []config.Folder
	for i := len(f.folders) - 1; i >= 0; i-- {
		if !f.folders[i].Exclude {
			out = append(out, f.folders[i])
		}
	}
	return out
}

// ShouldIndexFolder reports whether the configuration says dir is indexed.
func (f *Filter) ShouldIndexFolder(dir string) bool {
	dir = filepath.Clean(dir)
	root, ok := f.governing(dir)
	if !ok || root.Exclude {
		return false
	}
	return !f.excludedBelow(root.Path, dir)
}

// ShouldIndexFile reports whether the configuration says path is indexed.
func (f *Filter) ShouldIndexFile(path string) bool {
	path = filepath.Clean(path)
	return f.ShouldIndexFolder(filepath.Dir(path)) && !f.ExcludedName(filepath.Base(path))
}

// Accepts reports whether path passes the name filters alone, ignoring the
// configured folder list. Used for explicit index requests.
func (f *Filter) Accepts(path string) bool {
	path = filepath.Clean(path)
	if f.ExcludedName(filepath.Base(path)) {
		return false
	}
	return !f.matchesPath(path)
}

// ExcludedName reports whether a single file or folder name is filtered out.
func (f *Filter) ExcludedName(name string) bool {
	if !f.indexHidden && strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	for _, p := range f.patterns {
		if strings.Contains(p, "/") {
			continue
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// matchesPath checks the patterns containing a separator against the full path.
func (f *Filter) matchesPath(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, p := range f.patterns {
		if !strings.Contains(p, "/") {
			continue
		}
		target := slashed
		if !strings.HasPrefix(p, "/") {
			target = strings.TrimPrefix(slashed, "/")
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}

// governing returns the deepest configured folder whose scope covers dir.
func (f *Filter) governing(dir string) (config.Folder, bool) {
	for _, folder := range f.folders {
		if dir == folder.Path {
			return folder, true
		}
		if folder.Recursive && isUnder(dir, folder.Path) {
			return folder, true
		}
	}
	return config.Folder{}, false
}

// excludedBelow checks each path component between root and dir.
func (f *Filter) excludedBelow(root, dir string) bool {
	if f.matchesPath(dir) {
		return true
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if f.ExcludedName(part) {
			return true
		}
	}
	return false
}

func isUnder(path, root string) bool {
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root) && path != root
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
