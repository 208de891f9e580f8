package descriptor

import (
	"strings"

	"github.com/Runemoro/knit/internal/mapping"
)

// Well-known descriptors.
const (
	UnresolvedDescriptor = "Lunresolved_class;"
	ObjectDescriptor     = "Ljava/lang/Object;"
)

// Lookup finds the root mapping for a qualified class name. Implementations
// should return the same mapping for repeated requests. A nil result means
// no mapping is available and the name is used as-is.
type Lookup interface {
	Root(qualifiedName string) *mapping.Class
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(qualifiedName string) *mapping.Class

// Root calls f.
func (f LookupFunc) Root(qualifiedName string) *mapping.Class { return f(qualifiedName) }

// Resolver computes descriptors against a set of class mappings.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Descriptor returns the obfuscated descriptor of t. It never fails;
// references that cannot be resolved degrade to UnresolvedDescriptor.
func (r *Resolver) Descriptor(t Type) string {
	switch t := t.(type) {
	case Primitive:
		return string(rune(t))
	case Array:
		return "[" + r.Descriptor(t.Component)
	case TypeParameter:
		if len(t.Bounds) == 0 {
			return ObjectDescriptor
		}
		return r.Descriptor(t.Bounds[0])
	case ClassRef:
		return r.classDescriptor(t)
	default:
		return UnresolvedDescriptor
	}
}

func (r *Resolver) classDescriptor(ref ClassRef) string {
	if len(ref.Path) == 0 {
		return UnresolvedDescriptor
	}

	root := ref.Root()
	var current *mapping.Class
	if r.lookup != nil {
		current = r.lookup.Root(root)
	}

	var b strings.Builder
	b.WriteByte('L')
	if current != nil {
		b.WriteString(current.ObfuscatedName)
	} else {
		b.WriteString(root)
	}

	// Nested classes are matched by current name but written by
	// obfuscated name. After the first miss every remaining segment is
	// written literally.
	for _, segment := range ref.Path[1:] {
		b.WriteByte('$')
		if current != nil {
			current = current.NestedClassNamed(segment)
		}
		if current != nil {
			b.WriteString(current.ObfuscatedName)
		} else {
			b.WriteString(segment)
		}
	}

	b.WriteByte(';')
	return b.String()
}

// MethodDescriptor returns the descriptor of a method taking params and
// returning ret. A nil ret is treated as void.
func (r *Resolver) MethodDescriptor(params []Type, ret Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(r.Descriptor(p))
	}
	b.WriteByte(')')
	if ret == nil {
		ret = Void
	}
	b.WriteString(r.Descriptor(ret))
	return b.String()
}

// ParameterSlots returns the local variable slot of each parameter. Slot 0
// holds the receiver of instance methods; long and double take two slots.
func ParameterSlots(static bool, params []Type) []int {
	slots := make([]int, len(params))
	index := 1
	if static {
		index = 0
	}
	for i, p := range params {
		slots[i] = index
		index += SlotSize(p)
	}
	return slots
}

// SlotSize returns the number of local variable slots a value of t uses.
func SlotSize(t Type) int {
	if p, ok := t.(Primitive); ok && (p == Long || p == Double) {
		return 2
	}
	return 1
}
