// Package store owns the mapping directory: it loads root class mappings on
// demand, caches them by qualified name, and persists them after changes.
//
// A Store is not safe for concurrent use. Long-lived servers wrap it in a
// Locked. Modifying the mapping directory behind the store's back while it
// holds cached roots is not supported.
package store

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Runemoro/knit/internal/descriptor"
	"github.com/Runemoro/knit/internal/mapping"
)

var (
	// ErrDisabled is returned when no mapping directory is configured.
	ErrDisabled = stderrors.New("no mapping directory configured")
	// ErrNotFound is returned when a ref addresses nothing.
	ErrNotFound = stderrors.New("mapping not found")
	// ErrInvalidRef is returned for refs that are missing required keys.
	ErrInvalidRef = stderrors.New("invalid reference")
	// ErrInvalidName is returned for names that cannot be written to a
	// mapping file.
	ErrInvalidName = stderrors.New("invalid name")
	// ErrConflict is returned when a change would give two entities the
	// same identity.
	ErrConflict = stderrors.New("mapping conflict")
)

// Store caches root class mappings read from a directory.
type Store struct {
	dir      string
	reporter Reporter
	metrics  *Metrics

	roots       map[string]*mapping.Class // by normalized current name
	files       map[string]string         // root key -> file last read or written
	descriptors map[string]string         // type expression -> descriptor
	resolver    *descriptor.Resolver
}

// Option configures a Store.
type Option func(*Store)

// WithReporter sets the collaborator that receives format errors.
func WithReporter(r Reporter) Option {
	return func(s *Store) { s.reporter = r }
}

// WithMetrics enables store metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a store with no mapping directory.
func New(opts ...Option) *Store {
	s := &Store{reporter: NopReporter{}}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = descriptor.NewResolver(descriptor.LookupFunc(s.resolveRoot))
	s.reset()
	return s
}

// Open creates a store for dir.
func Open(dir string, opts ...Option) *Store {
	s := New(opts...)
	s.Load(dir)
	return s
}

func (s *Store) reset() {
	s.roots = make(map[string]*mapping.Class)
	s.files = make(map[string]string)
	s.descriptors = make(map[string]string)
}

// HasMappings reports whether a mapping directory is configured.
func (s *Store) HasMappings() bool {
	return s.dir != ""
}

// Dir returns the mapping directory, or "" when disabled.
func (s *Store) Dir() string {
	return s.dir
}

// Load sets the mapping directory and drops every cached mapping.
func (s *Store) Load(dir string) {
	s.dir = ""
	if dir != "" {
		s.dir = filepath.Clean(dir)
	}
	s.reset()
}

// Clear unsets the mapping directory and drops every cached mapping.
func (s *Store) Clear() {
	s.dir = ""
	s.reset()
}

// GetOrCreate returns the root mapping for a qualified class name. The first
// call reads it from disk, or synthesizes an identity mapping when there is
// no file or the file is malformed; later calls return the same mapping.
func (s *Store) GetOrCreate(name string) (*mapping.Class, error) {
	if !s.HasMappings() {
		return nil, ErrDisabled
	}
	key := mapping.NormalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("%w: empty class name", ErrInvalidName)
	}

	if root, ok := s.roots[key]; ok {
		s.metrics.cacheHit()
		return root, nil
	}

	path := mapping.FilePath(s.dir, key)
	root, err := mapping.ReadFile(path)
	switch {
	case err == nil:
		s.files[key] = path
		s.metrics.loaded()
	case stderrors.Is(err, fs.ErrNotExist):
		root = mapping.NewClass(key, key)
	default:
		var ferr *mapping.FormatError
		if !stderrors.As(err, &ferr) {
			return nil, err
		}
		s.metrics.formatError()
		s.reporter.Report(ferr)
		root = mapping.NewClass(key, key)
	}

	s.roots[key] = root
	return root, nil
}

// Lookup returns the entity r addresses. With create set, missing entities
// are created with their current name as obfuscated identity; they are not
// persisted until MarkChanged.
func (s *Store) Lookup(r Ref, create bool) (mapping.Node, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	root, err := s.GetOrCreate(r.Class)
	if err != nil {
		return nil, err
	}
	return locate(root, r, create)
}

// MarkChanged persists the root that contains r. The file previously
// associated with the root is removed and the root is written at the path
// derived from its current name, or removed entirely when nothing in it is
// worth keeping. The cache follows the root to its current name, which must
// not belong to another persisted or changed root (ErrConflict).
func (s *Store) MarkChanged(r Ref) error {
	if !s.HasMappings() {
		return ErrDisabled
	}
	key, ok := s.rootKey(mapping.NormalizeName(r.Class))
	if !ok {
		return fmt.Errorf("%w: root %s is not loaded", ErrNotFound, r.Class)
	}
	return s.markChanged(key)
}

// rootKey finds the cache key of a root by current name or cache key. A
// root that was renamed to name wins over a root cached under name.
func (s *Store) rootKey(name string) (string, bool) {
	for key, root := range s.roots {
		if key != name && mapping.NormalizeName(root.Name) == name {
			return key, true
		}
	}
	if _, ok := s.roots[name]; ok {
		return name, true
	}
	return "", false
}

func (s *Store) markChanged(key string) error {
	root := s.roots[key]
	newKey := mapping.NormalizeName(root.Name)
	if err := s.checkRootFree(key, newKey); err != nil {
		return err
	}
	path := mapping.FilePath(s.dir, newKey)

	if old, ok := s.files[key]; ok && old != path {
		if err := os.Remove(old); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale mapping file: %w", err)
		}
		if err := mapping.PruneEmptyDirs(filepath.Dir(old), s.dir); err != nil {
			return err
		}
	}
	delete(s.files, key)

	written, err := mapping.WriteFile(root, path, s.dir)
	if err != nil {
		return err
	}
	if written {
		s.files[newKey] = path
		s.metrics.written()
	} else {
		s.metrics.deleted()
	}

	if newKey != key {
		delete(s.roots, key)
		s.roots[newKey] = root
	}
	clear(s.descriptors)
	return nil
}

// Resolve returns the obfuscated descriptor of t, computed against the
// cached mappings.
func (s *Store) Resolve(t descriptor.Type) string {
	expr := descriptor.String(t)
	if d, ok := s.descriptors[expr]; ok {
		return d
	}
	d := s.resolver.Descriptor(t)
	s.descriptors[expr] = d
	return d
}

// MethodDescriptor returns the obfuscated descriptor of a method signature.
func (s *Store) MethodDescriptor(params []descriptor.Type, ret descriptor.Type) string {
	return s.resolver.MethodDescriptor(params, ret)
}

func (s *Store) resolveRoot(name string) *mapping.Class {
	if !s.HasMappings() {
		return nil
	}
	root, err := s.GetOrCreate(name)
	if err != nil {
		return nil
	}
	return root
}

// Roots lists the qualified names of every root class persisted in the
// mapping directory, sorted.
func (s *Store) Roots() ([]string, error) {
	if !s.HasMappings() {
		return nil, ErrDisabled
	}

	var names []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.dir && stderrors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if name, ok := mapping.NameFromPath(s.dir, path); ok {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Cached returns the cached root for a qualified name without loading it.
func (s *Store) Cached(name string) (*mapping.Class, bool) {
	root, ok := s.roots[mapping.NormalizeName(name)]
	return root, ok
}

// File returns the file a root was last read from or written to.
func (s *Store) File(name string) (string, bool) {
	f, ok := s.files[mapping.NormalizeName(name)]
	return f, ok
}
