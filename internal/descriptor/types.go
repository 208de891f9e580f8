// Package descriptor computes JVM binary descriptors for source-level type
// references. Descriptors are always expressed in obfuscated names, however
// much of the source has been renamed.
package descriptor

import "strings"

// Type is one of Primitive, Array, TypeParameter, ClassRef or Unresolved.
type Type interface {
	isType()
}

// Primitive is a primitive type, represented by its descriptor letter.
type Primitive byte

// Primitive types.
const (
	Boolean Primitive = 'Z'
	Byte    Primitive = 'B'
	Char    Primitive = 'C'
	Short   Primitive = 'S'
	Int     Primitive = 'I'
	Long    Primitive = 'J'
	Float   Primitive = 'F'
	Double  Primitive = 'D'
	Void    Primitive = 'V'
)

var primitiveKeywords = map[string]Primitive{
	"boolean": Boolean,
	"byte":    Byte,
	"char":    Char,
	"short":   Short,
	"int":     Int,
	"long":    Long,
	"float":   Float,
	"double":  Double,
	"void":    Void,
}

// PrimitiveFor returns the primitive type named by a source keyword.
func PrimitiveFor(keyword string) (Primitive, bool) {
	p, ok := primitiveKeywords[keyword]
	return p, ok
}

// String returns the source keyword of p.
func (p Primitive) String() string {
	for k, v := range primitiveKeywords {
		if v == p {
			return k
		}
	}
	return string(rune(p))
}

// Array is an array of Component.
type Array struct {
	Component Type
}

// TypeParameter is a generic type variable. Only the first bound affects the
// descriptor.
type TypeParameter struct {
	Name   string
	Bounds []Type
}

// ClassRef is a resolved class reference written in current (source) names.
// Path lists the enclosing classes from the top-level class down, so
// Outer.Inner in package a/b is {Package: "a/b", Path: ["Outer", "Inner"]}.
type ClassRef struct {
	Package string
	Path    []string
}

// Root returns the qualified name of the top-level class of r.
func (r ClassRef) Root() string {
	if len(r.Path) == 0 {
		return ""
	}
	if r.Package == "" {
		return r.Path[0]
	}
	return r.Package + "/" + r.Path[0]
}

// Unresolved is a class reference that could not be resolved.
type Unresolved struct {
	Name string
}

func (Primitive) isType()     {}
func (Array) isType()         {}
func (TypeParameter) isType() {}
func (ClassRef) isType()      {}
func (Unresolved) isType()    {}

// String formats t in the expression syntax accepted by Parse.
func String(t Type) string {
	switch t := t.(type) {
	case Primitive:
		return t.String()
	case Array:
		return String(t.Component) + "[]"
	case TypeParameter:
		if len(t.Bounds) == 0 {
			return "?" + t.Name
		}
		bounds := make([]string, len(t.Bounds))
		for i, b := range t.Bounds {
			bounds[i] = String(b)
		}
		return "?" + t.Name + " extends " + strings.Join(bounds, " & ")
	case ClassRef:
		path := strings.Join(t.Path, ".")
		if t.Package == "" {
			return path
		}
		return t.Package + "/" + path
	case Unresolved:
		return "!" + t.Name
	default:
		return ""
	}
}
