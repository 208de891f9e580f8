package store

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/Runemoro/knit/internal/mapping"
)

// Rename sets the name of the entity Target addresses. Root classes take a
// qualified name with dots or slashes.
type Rename struct {
	Target  Ref    `json:"target"`
	NewName string `json:"new_name"`
}

// Applied describes a rename that took effect. Current addresses the
// renamed entity, so Rename{Target: Current, NewName: Previous} undoes it.
type Applied struct {
	Previous string `json:"previous"`
	Current  Ref    `json:"current"`
}

// Inverse returns the rename that restores the previous name.
func (a Applied) Inverse() Rename {
	return Rename{Target: a.Current, NewName: a.Previous}
}

// Preview is the effect a rename would have on disk.
type Preview struct {
	OldFile string
	NewFile string
	Before  []byte // nil when no file exists
	After   []byte // nil when the root would be removed
}

var reservedMethods = map[string]bool{"<init>": true, "<clinit>": true}

// Apply performs cmd and persists the affected root. Missing entities along
// the way are created.
func (s *Store) Apply(cmd Rename) (Applied, error) {
	if err := s.checkRename(cmd); err != nil {
		return Applied{}, err
	}
	root, err := s.GetOrCreate(cmd.Target.Class)
	if err != nil {
		return Applied{}, err
	}
	key := mapping.NormalizeName(cmd.Target.Class)
	cmd.Target.Class = key

	applied, err := rename(root, cmd)
	if err != nil {
		return Applied{}, err
	}
	if cmd.Target.Kind == KindClass && len(cmd.Target.Nested) == 0 {
		if err := s.checkRootFree(key, applied.Current.Class); err != nil {
			root.Name = applied.Previous
			return Applied{}, err
		}
	}

	if err := s.markChanged(key); err != nil {
		return Applied{}, err
	}
	return applied, nil
}

// Preview computes the file contents before and after cmd without changing
// the store or the mapping directory.
func (s *Store) Preview(cmd Rename) (Preview, error) {
	if err := s.checkRename(cmd); err != nil {
		return Preview{}, err
	}
	root, err := s.GetOrCreate(cmd.Target.Class)
	if err != nil {
		return Preview{}, err
	}
	key := mapping.NormalizeName(cmd.Target.Class)
	cmd.Target.Class = key

	clone := mapping.Clone(root)
	applied, err := rename(clone, cmd)
	if err != nil {
		return Preview{}, err
	}
	if cmd.Target.Kind == KindClass && len(cmd.Target.Nested) == 0 {
		if err := s.checkRootFree(key, applied.Current.Class); err != nil {
			return Preview{}, err
		}
	}

	p := Preview{NewFile: mapping.FilePath(s.dir, mapping.NormalizeName(clone.Name))}
	if f, ok := s.files[key]; ok {
		p.OldFile = f
		if p.Before, err = mapping.Format(root); err != nil {
			return Preview{}, err
		}
	}
	if p.After, err = mapping.Format(clone); err != nil {
		return Preview{}, err
	}
	return p, nil
}

func (s *Store) checkRename(cmd Rename) error {
	if !s.HasMappings() {
		return ErrDisabled
	}
	if err := cmd.Target.Validate(); err != nil {
		return err
	}
	return validateName(cmd.Target, cmd.NewName)
}

// checkRootFree fails when moving the root at key to newKey would collide
// with another root. A cached identity mapping that was only looked up does
// not count; it is replaced when the root moves in.
func (s *Store) checkRootFree(key, newKey string) error {
	if newKey == key {
		return nil
	}
	if other, ok := s.roots[newKey]; ok && mapping.Simplify(other) != nil {
		return fmt.Errorf("%w: class %s already exists", ErrConflict, newKey)
	}
	if _, err := os.Stat(mapping.FilePath(s.dir, newKey)); err == nil {
		return fmt.Errorf("%w: class %s already exists", ErrConflict, newKey)
	} else if !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func validateName(target Ref, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}

	switch {
	case target.Kind == KindClass && len(target.Nested) == 0:
		for _, segment := range strings.Split(mapping.NormalizeName(name), "/") {
			if segment == "" {
				return fmt.Errorf("%w: %q has an empty segment", ErrInvalidName, name)
			}
		}
	case strings.ContainsAny(name, "/.;[<>"):
		return fmt.Errorf("%w: %q is not a simple name", ErrInvalidName, name)
	}

	if target.Kind == KindMethod && reservedMethods[target.Member] {
		return fmt.Errorf("%w: %s cannot be renamed", ErrInvalidName, target.Member)
	}
	return nil
}

// rename applies cmd to root in memory. cmd.Target.Class must already be
// normalized.
func rename(root *mapping.Class, cmd Rename) (Applied, error) {
	node, err := locate(root, cmd.Target, true)
	if err != nil {
		return Applied{}, err
	}

	current := cmd.Target
	current.Nested = append([]string(nil), cmd.Target.Nested...)
	var previous string

	switch n := node.(type) {
	case *mapping.Class:
		if len(current.Nested) == 0 {
			previous = n.Name
			n.Name = mapping.NormalizeName(cmd.NewName)
			current.Class = n.Name
			break
		}
		parent, _ := locate(root, Ref{Kind: KindClass, Class: current.Class, Nested: current.Nested[:len(current.Nested)-1]}, false)
		if other := parent.(*mapping.Class).NestedClassNamed(cmd.NewName); other != nil && other != n {
			return Applied{}, fmt.Errorf("%w: nested class %s already exists", ErrConflict, cmd.NewName)
		}
		previous = n.Name
		n.Name = cmd.NewName
		current.Nested[len(current.Nested)-1] = n.Name
	case *mapping.Field:
		class, _ := locate(root, current.ClassRef(), false)
		if other := class.(*mapping.Class).FieldNamed(cmd.NewName, n.ObfuscatedDescriptor); other != nil && other != n {
			return Applied{}, fmt.Errorf("%w: field %s %s already exists", ErrConflict, cmd.NewName, n.ObfuscatedDescriptor)
		}
		previous = n.Name
		n.Name = cmd.NewName
		current.Member = n.Name
	case *mapping.Method:
		class, _ := locate(root, current.ClassRef(), false)
		if other := class.(*mapping.Class).MethodNamed(cmd.NewName, n.ObfuscatedDescriptor); other != nil && other != n {
			return Applied{}, fmt.Errorf("%w: method %s%s already exists", ErrConflict, cmd.NewName, n.ObfuscatedDescriptor)
		}
		previous = n.Name
		n.Name = cmd.NewName
		current.Member = n.Name
	case *mapping.LocalVariable:
		previous = n.Name
		n.Name = cmd.NewName
	default:
		return Applied{}, fmt.Errorf("%w: cannot rename %T", ErrInvalidRef, node)
	}
	return Applied{Previous: previous, Current: current}, nil
}

// SetComments replaces the comment lines of the entity r addresses and
// persists the change. It returns the previous lines.
func (s *Store) SetComments(r Ref, lines []string) ([]string, error) {
	if !s.HasMappings() {
		return nil, ErrDisabled
	}
	for _, l := range lines {
		if strings.ContainsAny(l, "\t\r\n") {
			return nil, fmt.Errorf("%w: comment line contains a tab or newline", ErrInvalidName)
		}
	}

	node, err := s.Lookup(r, true)
	if err != nil {
		return nil, err
	}

	comments := mapping.Comments(lines)
	var previous []mapping.Comment
	switch n := node.(type) {
	case *mapping.Class:
		previous, n.Comments = n.Comments, comments
	case *mapping.Field:
		previous, n.Comments = n.Comments, comments
	case *mapping.Method:
		previous, n.Comments = n.Comments, comments
	case *mapping.LocalVariable:
		previous, n.Comments = n.Comments, comments
	}

	if err := s.markChanged(mapping.NormalizeName(r.Class)); err != nil {
		return nil, err
	}
	return mapping.Lines(previous), nil
}

// RenamePackage moves every root class in package from, including its
// subpackages, to package to. An empty to moves classes to the default
// package.
func (s *Store) RenamePackage(from, to string) ([]Applied, error) {
	if !s.HasMappings() {
		return nil, ErrDisabled
	}
	from = strings.Trim(mapping.NormalizeName(from), "/")
	to = strings.Trim(mapping.NormalizeName(to), "/")
	if from == "" {
		return nil, fmt.Errorf("%w: package name is empty", ErrInvalidName)
	}
	if strings.ContainsAny(to, " \t\r\n") {
		return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, to)
	}

	persisted, err := s.Roots()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, name := range persisted {
		seen[name] = true
		names = append(names, name)
	}
	for key, root := range s.roots {
		if !seen[key] && mapping.Simplify(root) != nil {
			names = append(names, key)
		}
	}
	sort.Strings(names)

	var applied []Applied
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, from+"/")
		if !ok {
			continue
		}
		newName := rest
		if to != "" {
			newName = to + "/" + rest
		}

		a, err := s.Apply(Rename{Target: Ref{Kind: KindClass, Class: name}, NewName: newName})
		if err != nil {
			return applied, err
		}
		applied = append(applied, a)
	}
	return applied, nil
}
