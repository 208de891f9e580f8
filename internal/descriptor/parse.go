package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for malformed type expressions.
var ErrSyntax = errors.New("invalid type expression")

// Parse reads a type expression:
//
//	int, long, void, ...      primitive keywords
//	T[]                       arrays, one suffix per dimension
//	pkg/sub/Outer.Inner       class references; slashes separate packages,
//	                          dots separate nested classes
//	?T                        unbounded type parameter
//	?T extends a/B & a/C      bounded type parameter
//	!Name                     unresolved class
//
// Array suffixes apply to the whole expression.
func Parse(expr string) (Type, error) {
	s := strings.TrimSpace(expr)

	dims := 0
	for strings.HasSuffix(s, "[]") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
		dims++
	}

	t, err := parseBase(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrSyntax, expr, err)
	}
	for i := 0; i < dims; i++ {
		t = Array{Component: t}
	}
	return t, nil
}

// ParseList parses each expression in exprs.
func ParseList(exprs []string) ([]Type, error) {
	types := make([]Type, 0, len(exprs))
	for _, e := range exprs {
		t, err := Parse(e)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func parseBase(s string) (Type, error) {
	switch {
	case s == "":
		return nil, errors.New("missing type")
	case strings.HasPrefix(s, "?"):
		return parseTypeParameter(s[1:])
	case strings.HasPrefix(s, "!"):
		name := s[1:]
		if !validName(name, true) {
			return nil, errors.New("invalid class name")
		}
		return Unresolved{Name: name}, nil
	}

	if p, ok := PrimitiveFor(s); ok {
		return p, nil
	}
	return parseClassRef(s)
}

func parseTypeParameter(s string) (Type, error) {
	name, bounds, hasBounds := strings.Cut(s, " extends ")
	name = strings.TrimSpace(name)
	if !validName(name, false) {
		return nil, errors.New("invalid type parameter name")
	}

	tp := TypeParameter{Name: name}
	if !hasBounds {
		return tp, nil
	}
	for _, b := range strings.Split(bounds, "&") {
		bound, err := parseBase(strings.TrimSpace(b))
		if err != nil {
			return nil, fmt.Errorf("bound: %w", err)
		}
		tp.Bounds = append(tp.Bounds, bound)
	}
	return tp, nil
}

func parseClassRef(s string) (Type, error) {
	pkg, names := "", s
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		pkg, names = s[:i], s[i+1:]
		for _, p := range strings.Split(pkg, "/") {
			if !validName(p, false) {
				return nil, errors.New("invalid package name")
			}
		}
	}

	path := strings.Split(names, ".")
	for _, p := range path {
		if !validName(p, false) {
			return nil, errors.New("invalid class name")
		}
	}
	return ClassRef{Package: pkg, Path: path}, nil
}

func validName(s string, allowSeparators bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', ';', '[', ']', '<', '>', '?', '!', '&':
			return false
		case '/', '.':
			if !allowSeparators {
				return false
			}
		}
	}
	return true
}
