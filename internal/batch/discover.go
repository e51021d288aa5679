// Package batch finds candidate binaries and analyzes each one in its own
// worker, collecting one outcome per binary.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Candidate is a file selected for analysis.
type Candidate struct {
	Path string
	Name string
	Ext  string
	Size int64
}

// Discover expands paths into candidate files. A path is a doublestar glob,
// a directory (its direct entries are considered) or a file. Files found
// through a glob or a directory are kept only when their extension is in
// exts; an explicitly named file is always kept. An empty exts keeps
// everything. The result is sorted by path with duplicates removed.
func Discover(paths, exts []string) ([]Candidate, error) {
	seen := make(map[string]bool)
	var out []Candidate

	add := func(path string, explicit bool) error {
		path = filepath.Clean(path)
		if seen[path] {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		ext := filepath.Ext(path)
		if !explicit && !hasExtension(ext, exts) {
			return nil
		}
		seen[path] = true
		out = append(out, Candidate{
			Path: path,
			Name: filepath.Base(path),
			Ext:  ext,
			Size: info.Size(),
		})
		return nil
	}

	for _, p := range paths {
		if isGlob(p) {
			matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("expand %q: %w", p, err)
			}
			for _, m := range matches {
				if err := add(m, false); err != nil {
					return nil, err
				}
			}
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("search path: %w", err)
		}
		if !info.IsDir() {
			if err := add(p, true); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("search path: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := add(filepath.Join(p, e.Name()), false); err != nil {
				return nil, err
			}
		}
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

func isGlob(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}

func hasExtension(ext string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
