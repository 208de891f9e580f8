package descriptor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/Runemoro/knit/internal/mapping"
)

// fakeLookup serves roots from a map and records every request.
type fakeLookup struct {
	roots    map[string]*mapping.Class
	requests []string
}

func (f *fakeLookup) Root(name string) *mapping.Class {
	f.requests = append(f.requests, name)
	return f.roots[name]
}

func outerInner() *fakeLookup {
	outer := mapping.NewClass("a", "net/example/Outer")
	inner := mapping.NewClass("b", "Inner")
	inner.AddNestedClass(mapping.NewClass("c", "Deep"))
	outer.AddNestedClass(inner)
	outer.AddNestedClass(mapping.NewClass("d", "d"))
	return &fakeLookup{roots: map[string]*mapping.Class{"net/example/Outer": outer}}
}

func ref(pkg string, path ...string) ClassRef {
	return ClassRef{Package: pkg, Path: path}
}

func TestDescriptor(t *testing.T) {
	r := NewResolver(outerInner())

	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"int", Int, "I"},
		{"long", Long, "J"},
		{"void", Void, "V"},
		{"boolean", Boolean, "Z"},
		{"root class", ref("net/example", "Outer"), "La;"},
		{"nested class", ref("net/example", "Outer", "Inner"), "La$b;"},
		{"array of nested", Array{Component: ref("net/example", "Outer", "Inner")}, "[La$b;"},
		{"two dimensions", Array{Component: Array{Component: Int}}, "[[I"},
		{"doubly nested", ref("net/example", "Outer", "Inner", "Deep"), "La$b$c;"},
		{"unrenamed nested", ref("net/example", "Outer", "d"), "La$d;"},
		{"nested miss", ref("net/example", "Outer", "Missing"), "La$Missing;"},
		{"resolution not recovered", ref("net/example", "Outer", "Missing", "Deep"), "La$Missing$Deep;"},
		{"unmapped root", ref("java/lang", "String"), "Ljava/lang/String;"},
		{"unmapped nested", ref("java/util", "Map", "Entry"), "Ljava/util/Map$Entry;"},
		{"unresolved", Unresolved{Name: "Unknown"}, UnresolvedDescriptor},
		{"unbounded type parameter", TypeParameter{Name: "T"}, ObjectDescriptor},
		{"bounded type parameter", TypeParameter{Name: "T", Bounds: []Type{ref("net/example", "Outer", "Inner"), ref("java/lang", "Runnable")}}, "La$b;"},
		{"empty class ref", ClassRef{}, UnresolvedDescriptor},
		{"nil type", nil, UnresolvedDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Descriptor(tt.typ); got != tt.want {
				t.Errorf("Descriptor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescriptor_LooksUpQualifiedRoot(t *testing.T) {
	lookup := outerInner()
	r := NewResolver(lookup)
	r.Descriptor(ref("net/example", "Outer", "Inner"))
	r.Descriptor(ref("", "Solo"))

	want := []string{"net/example/Outer", "Solo"}
	if !reflect.DeepEqual(lookup.requests, want) {
		t.Errorf("requests = %v, want %v", lookup.requests, want)
	}
}

func TestDescriptor_NilLookup(t *testing.T) {
	r := NewResolver(nil)
	if got := r.Descriptor(ref("a", "B", "C")); got != "La/B$C;" {
		t.Errorf("Descriptor() = %q", got)
	}
}

func TestDescriptor_LookupFunc(t *testing.T) {
	r := NewResolver(LookupFunc(func(name string) *mapping.Class {
		return mapping.NewClass("x", name)
	}))
	if got := r.Descriptor(ref("", "Named")); got != "Lx;" {
		t.Errorf("Descriptor() = %q", got)
	}
}

func TestMethodDescriptor(t *testing.T) {
	r := NewResolver(outerInner())

	got := r.MethodDescriptor([]Type{Long, Int, ref("net/example", "Outer", "Inner")}, Array{Component: Int})
	if want := "(JILa$b;)[I"; got != want {
		t.Errorf("MethodDescriptor() = %q, want %q", got, want)
	}

	if got := r.MethodDescriptor(nil, nil); got != "()V" {
		t.Errorf("MethodDescriptor(nil, nil) = %q, want ()V", got)
	}
}

func TestParameterSlots(t *testing.T) {
	params := []Type{Long, Int}

	tests := []struct {
		name   string
		static bool
		params []Type
		want   []int
	}{
		{"instance", false, params, []int{1, 3}},
		{"static", true, params, []int{0, 2}},
		{"double then class", false, []Type{Double, ref("", "A"), Array{Component: Long}}, []int{1, 3, 4}},
		{"no params", false, nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParameterSlots(tt.static, tt.params)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParameterSlots() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want Type
	}{
		{"int", Int},
		{" double ", Double},
		{"int[][]", Array{Component: Array{Component: Int}}},
		{"Outer", ref("", "Outer")},
		{"net/example/Outer.Inner", ref("net/example", "Outer", "Inner")},
		{"net/example/Outer.Inner[]", Array{Component: ref("net/example", "Outer", "Inner")}},
		{"?T", TypeParameter{Name: "T"}},
		{"?T extends a/B", TypeParameter{Name: "T", Bounds: []Type{ref("a", "B")}}},
		{"?T extends a/B & C", TypeParameter{Name: "T", Bounds: []Type{ref("a", "B"), ref("", "C")}}},
		{"!Unknown", Unresolved{Name: "Unknown"}},
		{"!a/b.C", Unresolved{Name: "a/b.C"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() mismatch\ngot:\n%swant:\n%s", spew.Sdump(got), spew.Sdump(tt.want))
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"[]",
		"a/",
		"/A",
		"Outer.",
		"int[",
		"a b",
		"?",
		"?T extends",
		"?T extends ",
		"!",
		"a//B",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("Parse(%q) error = %v, want ErrSyntax", expr, err)
			}
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, expr := range []string{
		"int",
		"long[]",
		"net/example/Outer.Inner[][]",
		"?T",
		"?T extends a/B & C",
		"!Unknown",
	} {
		typ, err := Parse(expr)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", expr, err)
		}
		if got := String(typ); got != expr {
			t.Errorf("String(Parse(%q)) = %q", expr, got)
		}
	}
}

func TestParseList(t *testing.T) {
	types, err := ParseList([]string{"long", "int"})
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}
	if got := ParameterSlots(false, types); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("slots = %v", got)
	}

	if _, err := ParseList([]string{"int", "a b"}); !errors.Is(err, ErrSyntax) {
		t.Errorf("ParseList() error = %v, want ErrSyntax", err)
	}
}
