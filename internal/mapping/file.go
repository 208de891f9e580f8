package mapping

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFile parses the mapping file at path.
func ReadFile(path string) (*Class, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, path)
}

// WriteFile persists the simplified form of root at path. When nothing is
// left after simplifying, the file is removed instead, together with every
// directory between it and stopAt that became empty. stopAt itself is never
// removed. It reports whether a file was written.
func WriteFile(root *Class, path, stopAt string) (bool, error) {
	data, err := Format(root)
	if err != nil {
		return false, err
	}

	if data == nil {
		if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return false, PruneEmptyDirs(filepath.Dir(path), stopAt)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create mapping directory: %w", err)
	}

	// Write to a temp file in the same directory, then rename into place so
	// a failed write never leaves a truncated mapping behind.
	tmp, err := os.CreateTemp(dir, ".knit-*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return false, fmt.Errorf("failed to finalize mapping file: %w", err)
	}

	success = true
	return true, nil
}

// PruneEmptyDirs removes dir and its ancestors while they are empty,
// stopping at stopAt (exclusive) or at the first directory outside it.
func PruneEmptyDirs(dir, stopAt string) error {
	stopAt = filepath.Clean(stopAt)
	for {
		dir = filepath.Clean(dir)
		if dir == stopAt || !within(stopAt, dir) {
			return nil
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				dir = filepath.Dir(dir)
				continue
			}
			return err
		}
		if len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return err
		}
		dir = filepath.Dir(dir)
	}
}

// within reports whether path is strictly inside root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !filepath.IsAbs(rel) &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Loaded is a root class read from a mapping directory.
type Loaded struct {
	Name  string // qualified name derived from the file path
	File  string
	Class *Class
}

// ReadDir parses every mapping file below dir. Malformed files do not stop
// the walk; they are returned as format errors alongside the parsed roots.
func ReadDir(dir string) ([]Loaded, []*FormatError, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, &FormatError{File: dir, Message: "not a directory"}
	}

	var loaded []Loaded
	var malformed []*FormatError
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, ok := NameFromPath(dir, path)
		if !ok {
			return nil
		}

		c, err := ReadFile(path)
		if err != nil {
			var ferr *FormatError
			if stderrors.As(err, &ferr) {
				malformed = append(malformed, ferr)
				return nil
			}
			return err
		}
		loaded = append(loaded, Loaded{Name: name, File: path, Class: c})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return loaded, malformed, nil
}

// WriteDir replaces the contents of dir with one file per root, named after
// the root's current name. It returns the number of files written.
func WriteDir(roots []*Class, dir string) (int, error) {
	if err := os.RemoveAll(dir); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	sorted := append([]*Class(nil), roots...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	count := 0
	for _, root := range sorted {
		written, err := WriteFile(root, FilePath(dir, root.Name), dir)
		if err != nil {
			return count, err
		}
		if written {
			count++
		}
	}
	return count, nil
}
