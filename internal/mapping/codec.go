package mapping

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Runemoro/knit/internal/tree"
)

// Entry labels.
const (
	ClassLabel         = "CLASS"
	FieldLabel         = "FIELD"
	MethodLabel        = "METHOD"
	LocalVariableLabel = "ARG"
	CommentLabel       = "JAVADOC"
)

// Label returns the single-line representation of n.
func Label(n Node) string {
	switch n := n.(type) {
	case *Class:
		return ClassLabel + " " + formatName(n.ObfuscatedName, n.Name)
	case *Field:
		return FieldLabel + " " + formatName(n.ObfuscatedName, n.Name) + " " + n.ObfuscatedDescriptor
	case *Method:
		return MethodLabel + " " + formatName(n.ObfuscatedName, n.Name) + " " + n.ObfuscatedDescriptor
	case *LocalVariable:
		l := LocalVariableLabel + " " + strconv.Itoa(n.Index)
		if n.IsRenamed() {
			l += " " + n.Name
		}
		return l
	case Comment:
		return CommentLabel + " " + n.Text
	default:
		panic(fmt.Sprintf("mapping: unknown node type %T", n))
	}
}

func formatName(obfuscatedName, name string) string {
	if obfuscatedName == name {
		return obfuscatedName
	}
	return obfuscatedName + " " + name
}

// Children returns the children of n in the order they are written:
// comments, nested classes, fields, methods for classes; comments then local
// variables for methods.
func Children(n Node) []Node {
	var children []Node
	switch n := n.(type) {
	case *Class:
		children = appendComments(children, n.Comments)

		nested := append([]*Class(nil), n.NestedClasses...)
		sort.SliceStable(nested, func(i, j int) bool {
			return compareShortFirst(nested[i].ObfuscatedName, nested[j].ObfuscatedName) < 0
		})
		for _, c := range nested {
			children = append(children, c)
		}

		fields := append([]*Field(nil), n.Fields...)
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].ObfuscatedName+fields[i].ObfuscatedDescriptor < fields[j].ObfuscatedName+fields[j].ObfuscatedDescriptor
		})
		for _, f := range fields {
			children = append(children, f)
		}

		methods := append([]*Method(nil), n.Methods...)
		sort.SliceStable(methods, func(i, j int) bool {
			return methods[i].ObfuscatedName+methods[i].ObfuscatedDescriptor < methods[j].ObfuscatedName+methods[j].ObfuscatedDescriptor
		})
		for _, m := range methods {
			children = append(children, m)
		}
	case *Method:
		children = appendComments(children, n.Comments)

		locals := append([]*LocalVariable(nil), n.LocalVariables...)
		sort.SliceStable(locals, func(i, j int) bool { return locals[i].Index < locals[j].Index })
		for _, v := range locals {
			children = append(children, v)
		}
	case *Field:
		children = appendComments(children, n.Comments)
	case *LocalVariable:
		children = appendComments(children, n.Comments)
	case Comment:
	}
	return children
}

func appendComments(children []Node, comments []Comment) []Node {
	for _, c := range comments {
		children = append(children, c)
	}
	return children
}

// compareShortFirst orders shorter strings first and equal lengths
// lexicographically.
func compareShortFirst(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// Simplify returns a copy of c without any subtree that carries no
// information, or nil when nothing in c is worth persisting.
func Simplify(c *Class) *Class {
	simplified := NewClass(c.ObfuscatedName, c.Name)
	for _, n := range c.NestedClasses {
		if s := Simplify(n); s != nil {
			simplified.NestedClasses = append(simplified.NestedClasses, s)
		}
	}
	for _, f := range c.Fields {
		if s := simplifyField(f); s != nil {
			simplified.Fields = append(simplified.Fields, s)
		}
	}
	for _, m := range c.Methods {
		if s := simplifyMethod(m); s != nil {
			simplified.Methods = append(simplified.Methods, s)
		}
	}
	simplified.Comments = append([]Comment(nil), c.Comments...)

	hasChildren := len(simplified.NestedClasses) > 0 || len(simplified.Fields) > 0 ||
		len(simplified.Methods) > 0 || len(simplified.Comments) > 0
	if !hasChildren && !c.IsRenamed() {
		return nil
	}
	return simplified
}

func simplifyMethod(m *Method) *Method {
	simplified := NewMethod(m.ObfuscatedName, m.ObfuscatedDescriptor, m.Name)
	for _, v := range m.LocalVariables {
		if s := simplifyLocalVariable(v); s != nil {
			simplified.LocalVariables = append(simplified.LocalVariables, s)
		}
	}
	simplified.Comments = append([]Comment(nil), m.Comments...)

	if len(simplified.LocalVariables) == 0 && len(simplified.Comments) == 0 && !m.IsRenamed() {
		return nil
	}
	return simplified
}

func simplifyField(f *Field) *Field {
	if len(f.Comments) == 0 && !f.IsRenamed() {
		return nil
	}
	simplified := NewField(f.ObfuscatedName, f.ObfuscatedDescriptor, f.Name)
	simplified.Comments = append([]Comment(nil), f.Comments...)
	return simplified
}

func simplifyLocalVariable(v *LocalVariable) *LocalVariable {
	if len(v.Comments) == 0 && !v.IsRenamed() {
		return nil
	}
	return &LocalVariable{Index: v.Index, Name: v.Name, Comments: append([]Comment(nil), v.Comments...)}
}

// Encode writes root as-is, without simplifying it first.
func Encode(w io.Writer, root *Class) error {
	return tree.Write[Node](w, root, Children, Label)
}

// Format simplifies root and returns its file contents, or nil when the
// simplified tree is empty.
func Format(root *Class) ([]byte, error) {
	simplified := Simplify(root)
	if simplified == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := Encode(&buf, simplified); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a single root class from r. file is only used for error
// reporting.
func Decode(r io.Reader, file string) (*Class, error) {
	nodes, err := tree.Read[Node](r, parseEntry)
	if err != nil {
		return nil, newFormatError(file, err)
	}

	switch {
	case len(nodes) == 0:
		return nil, &FormatError{File: file, Message: "no entries in file"}
	case len(nodes) > 1:
		return nil, &FormatError{File: file, Message: "two top-level entries in the same file"}
	}

	root, ok := nodes[0].(*Class)
	if !ok {
		return nil, &FormatError{File: file, Message: "top-level entry isn't a class entry"}
	}
	return root, nil
}

// parseEntry is the tree factory for mapping entries.
func parseEntry(label string, children []Node, line int) (Node, error) {
	kind, rest, _ := strings.Cut(label, " ")
	if kind == CommentLabel {
		if len(children) > 0 {
			return nil, tree.Errorf(line, "comment entry has children")
		}
		return Comment{Text: rest}, nil
	}

	parts := strings.Split(label, " ")
	for _, p := range parts {
		if p == "" {
			return nil, tree.Errorf(line, "invalid %s entry", strings.ToLower(kind))
		}
	}

	switch kind {
	case ClassLabel:
		return parseClass(parts, children, line)
	case FieldLabel:
		return parseField(parts, children, line)
	case MethodLabel:
		return parseMethod(parts, children, line)
	case LocalVariableLabel:
		return parseLocalVariable(parts, children, line)
	default:
		return nil, tree.Errorf(line, "unknown entry type %q", kind)
	}
}

func parseClass(parts []string, children []Node, line int) (Node, error) {
	var c *Class
	switch len(parts) {
	case 2:
		c = NewClass(parts[1], parts[1])
	case 3:
		c = NewClass(parts[1], parts[2])
	default:
		return nil, tree.Errorf(line, "invalid class entry")
	}

	for _, child := range children {
		switch child := child.(type) {
		case *Class:
			if !c.AddNestedClass(child) {
				return nil, tree.Errorf(line, "duplicate nested class %s", child.ObfuscatedName)
			}
		case *Field:
			if !c.AddField(child) {
				return nil, tree.Errorf(line, "duplicate field %s %s", child.ObfuscatedName, child.ObfuscatedDescriptor)
			}
		case *Method:
			if !c.AddMethod(child) {
				return nil, tree.Errorf(line, "duplicate method %s %s", child.ObfuscatedName, child.ObfuscatedDescriptor)
			}
		case Comment:
			c.Comments = append(c.Comments, child)
		default:
			return nil, tree.Errorf(line, "class entry has invalid child")
		}
	}
	return c, nil
}

func parseField(parts []string, children []Node, line int) (Node, error) {
	var f *Field
	switch len(parts) {
	case 3:
		f = NewField(parts[1], parts[2], parts[1])
	case 4:
		f = NewField(parts[1], parts[3], parts[2])
	default:
		return nil, tree.Errorf(line, "invalid field entry")
	}

	comments, err := commentsOnly(children, line, "field")
	if err != nil {
		return nil, err
	}
	f.Comments = comments
	return f, nil
}

func parseMethod(parts []string, children []Node, line int) (Node, error) {
	var m *Method
	switch len(parts) {
	case 3:
		m = NewMethod(parts[1], parts[2], parts[1])
	case 4:
		m = NewMethod(parts[1], parts[3], parts[2])
	default:
		return nil, tree.Errorf(line, "invalid method entry")
	}

	for _, child := range children {
		switch child := child.(type) {
		case *LocalVariable:
			if !m.AddLocalVariable(child) {
				return nil, tree.Errorf(line, "duplicate local variable %d", child.Index)
			}
		case Comment:
			m.Comments = append(m.Comments, child)
		default:
			return nil, tree.Errorf(line, "method entry has invalid child")
		}
	}
	return m, nil
}

func parseLocalVariable(parts []string, children []Node, line int) (Node, error) {
	if len(parts) != 2 && len(parts) != 3 {
		return nil, tree.Errorf(line, "invalid local variable entry")
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return nil, tree.Errorf(line, "argument index not a number")
	}

	v := NewLocalVariable(index)
	if len(parts) == 3 {
		v.Name = parts[2]
	}

	comments, err := commentsOnly(children, line, "local variable")
	if err != nil {
		return nil, err
	}
	v.Comments = comments
	return v, nil
}

func commentsOnly(children []Node, line int, kind string) ([]Comment, error) {
	var comments []Comment
	for _, child := range children {
		c, ok := child.(Comment)
		if !ok {
			return nil, tree.Errorf(line, "%s entry has invalid child", kind)
		}
		comments = append(comments, c)
	}
	return comments, nil
}
