package mapping

import (
	"path/filepath"
	"strings"
)

// Extension is the suffix of every mapping file.
const Extension = ".mapping"

// noPackage is the pseudo package that classes in the default package are
// reported under by some tools.
const noPackage = "nopackage"

// NormalizeName converts a qualified class name written with dots or
// slashes to the slash-separated form used in mapping files.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, noPackage+".") || strings.HasPrefix(name, noPackage+"/") {
		name = name[len(noPackage)+1:]
	}
	return strings.ReplaceAll(name, ".", "/")
}

// SimpleName returns the part of a binary class name after the last slash.
func SimpleName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// PackageName returns the part of a binary class name before the last
// slash, or "" for the default package.
func PackageName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// FilePath returns the file that stores the root class name under dir.
func FilePath(dir, name string) string {
	return filepath.Join(dir, filepath.FromSlash(name)+Extension)
}

// NameFromPath is the inverse of FilePath. It reports false when path is
// not a mapping file inside dir.
func NameFromPath(dir, path string) (string, bool) {
	rel, err := filepath.Rel(dir, path)
	if err != nil || !strings.HasSuffix(rel, Extension) {
		return "", false
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, Extension))
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
