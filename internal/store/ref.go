package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Runemoro/knit/internal/mapping"
)

// Kind is the kind of entity a Ref addresses.
type Kind string

const (
	KindClass  Kind = "class"
	KindField  Kind = "field"
	KindMethod Kind = "method"
	KindLocal  Kind = "local"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindClass, KindField, KindMethod, KindLocal:
		return k, nil
	case "parameter", "arg":
		return KindLocal, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRef, s)
}

// Ref addresses an entity by current names. Class is the qualified name of
// the root class and Nested the chain of nested class names below it.
// Fields and methods are addressed by Member and their obfuscated
// Descriptor; local variables additionally by slot Index.
type Ref struct {
	Kind       Kind     `json:"kind"`
	Class      string   `json:"class"`
	Nested     []string `json:"nested,omitempty"`
	Member     string   `json:"member,omitempty"`
	Descriptor string   `json:"descriptor,omitempty"`
	Index      int      `json:"index,omitempty"`
}

// ClassRef returns the ref of the class that declares r (r itself for
// classes).
func (r Ref) ClassRef() Ref {
	return Ref{Kind: KindClass, Class: r.Class, Nested: append([]string(nil), r.Nested...)}
}

// MethodRef returns the ref of the method that declares a local variable.
func (r Ref) MethodRef() Ref {
	return Ref{Kind: KindMethod, Class: r.Class, Nested: append([]string(nil), r.Nested...), Member: r.Member, Descriptor: r.Descriptor}
}

// Validate checks that r carries the keys its kind needs.
func (r Ref) Validate() error {
	if mapping.NormalizeName(r.Class) == "" {
		return fmt.Errorf("%w: class is required", ErrInvalidRef)
	}
	for _, n := range r.Nested {
		if n == "" {
			return fmt.Errorf("%w: empty nested class name", ErrInvalidRef)
		}
	}

	switch r.Kind {
	case KindClass:
		return nil
	case KindField, KindMethod, KindLocal:
		if r.Member == "" || r.Descriptor == "" {
			return fmt.Errorf("%w: %s requires member and descriptor", ErrInvalidRef, r.Kind)
		}
		if r.Kind == KindLocal && r.Index < 0 {
			return fmt.Errorf("%w: negative local variable index", ErrInvalidRef)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRef, r.Kind)
	}
}

// String formats r for display, e.g. a/Outer$Inner#run()V[1].
func (r Ref) String() string {
	var b strings.Builder
	b.WriteString(mapping.NormalizeName(r.Class))
	for _, n := range r.Nested {
		b.WriteByte('$')
		b.WriteString(n)
	}
	if r.Kind == KindClass {
		return b.String()
	}
	b.WriteByte('#')
	b.WriteString(r.Member)
	if r.Kind == KindField {
		b.WriteByte(':')
	}
	b.WriteString(r.Descriptor)
	if r.Kind == KindLocal {
		b.WriteString("[" + strconv.Itoa(r.Index) + "]")
	}
	return b.String()
}

// locate finds the entity r addresses inside root. With create set, missing
// entities are added with their current name as obfuscated identity.
func locate(root *mapping.Class, r Ref, create bool) (mapping.Node, error) {
	class := root
	for _, name := range r.Nested {
		next := class.NestedClassNamed(name)
		if next == nil {
			if !create {
				return nil, fmt.Errorf("%w: nested class %s", ErrNotFound, name)
			}
			next = mapping.NewClass(name, name)
			if !class.AddNestedClass(next) {
				return nil, fmt.Errorf("%w: obfuscated nested class %s is named %s", ErrConflict, name, class.NestedClass(name).Name)
			}
		}
		class = next
	}

	switch r.Kind {
	case KindClass:
		return class, nil
	case KindField:
		f := class.FieldNamed(r.Member, r.Descriptor)
		if f == nil {
			if !create {
				return nil, fmt.Errorf("%w: field %s %s", ErrNotFound, r.Member, r.Descriptor)
			}
			f = mapping.NewField(r.Member, r.Descriptor, r.Member)
			if !class.AddField(f) {
				return nil, fmt.Errorf("%w: obfuscated field %s %s is named %s", ErrConflict, r.Member, r.Descriptor, class.Field(r.Member, r.Descriptor).Name)
			}
		}
		return f, nil
	case KindMethod, KindLocal:
		m := class.MethodNamed(r.Member, r.Descriptor)
		if m == nil {
			if !create {
				return nil, fmt.Errorf("%w: method %s%s", ErrNotFound, r.Member, r.Descriptor)
			}
			m = mapping.NewMethod(r.Member, r.Descriptor, r.Member)
			if !class.AddMethod(m) {
				return nil, fmt.Errorf("%w: obfuscated method %s%s is named %s", ErrConflict, r.Member, r.Descriptor, class.Method(r.Member, r.Descriptor).Name)
			}
		}
		if r.Kind == KindMethod {
			return m, nil
		}

		v := m.LocalVariable(r.Index)
		if v == nil {
			if !create {
				return nil, fmt.Errorf("%w: local variable %d", ErrNotFound, r.Index)
			}
			v = mapping.NewLocalVariable(r.Index)
			m.AddLocalVariable(v)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRef, r.Kind)
	}
}
