// Package mapping holds the naming relationship between obfuscated and
// human-assigned identifiers for classes, fields, methods and local
// variables, and reads and writes it in the tab-indented .mapping format.
package mapping

import "strconv"

// Node is one of *Class, *Field, *Method, *LocalVariable or Comment.
type Node interface {
	node()
}

// Class maps an obfuscated class to its current name. Top-level classes use
// slash-separated binary names; nested classes use their simple name.
type Class struct {
	ObfuscatedName string
	Name           string
	NestedClasses  []*Class
	Fields         []*Field
	Methods        []*Method
	Comments       []Comment
}

// Field maps an obfuscated field, identified by name and descriptor.
type Field struct {
	ObfuscatedName       string
	ObfuscatedDescriptor string
	Name                 string
	Comments             []Comment
}

// Method maps an obfuscated method, identified by name and descriptor.
type Method struct {
	ObfuscatedName       string
	ObfuscatedDescriptor string
	Name                 string
	LocalVariables       []*LocalVariable
	Comments             []Comment
}

// LocalVariable maps a local variable slot. Index is the JVM slot, not the
// position in the parameter list.
type LocalVariable struct {
	Index    int
	Name     string
	Comments []Comment
}

// Comment is a single documentation line.
type Comment struct {
	Text string
}

func (*Class) node()         {}
func (*Field) node()         {}
func (*Method) node()        {}
func (*LocalVariable) node() {}
func (Comment) node()        {}

// NewClass creates a class mapping.
func NewClass(obfuscatedName, name string) *Class {
	return &Class{ObfuscatedName: obfuscatedName, Name: name}
}

// NewField creates a field mapping.
func NewField(obfuscatedName, obfuscatedDescriptor, name string) *Field {
	return &Field{ObfuscatedName: obfuscatedName, ObfuscatedDescriptor: obfuscatedDescriptor, Name: name}
}

// NewMethod creates a method mapping.
func NewMethod(obfuscatedName, obfuscatedDescriptor, name string) *Method {
	return &Method{ObfuscatedName: obfuscatedName, ObfuscatedDescriptor: obfuscatedDescriptor, Name: name}
}

// NewLocalVariable creates a local variable mapping with the default name.
func NewLocalVariable(index int) *LocalVariable {
	return &LocalVariable{Index: index, Name: DefaultLocalName(index)}
}

// DefaultLocalName is the name a local variable has until it is renamed.
func DefaultLocalName(index int) string {
	return "arg" + strconv.Itoa(index)
}

// Comments converts plain lines to comments.
func Comments(lines []string) []Comment {
	if len(lines) == 0 {
		return nil
	}
	comments := make([]Comment, len(lines))
	for i, l := range lines {
		comments[i] = Comment{Text: l}
	}
	return comments
}

// Lines converts comments back to plain lines.
func Lines(comments []Comment) []string {
	lines := make([]string, len(comments))
	for i, c := range comments {
		lines[i] = c.Text
	}
	return lines
}

// NestedClass returns the nested class with the given obfuscated name.
func (c *Class) NestedClass(obfuscatedName string) *Class {
	for _, n := range c.NestedClasses {
		if n.ObfuscatedName == obfuscatedName {
			return n
		}
	}
	return nil
}

// NestedClassNamed returns the first nested class whose current name is name.
func (c *Class) NestedClassNamed(name string) *Class {
	for _, n := range c.NestedClasses {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// AddNestedClass adds n unless a nested class with the same obfuscated name
// exists. It reports whether n was added.
func (c *Class) AddNestedClass(n *Class) bool {
	if c.NestedClass(n.ObfuscatedName) != nil {
		return false
	}
	c.NestedClasses = append(c.NestedClasses, n)
	return true
}

// Field returns the field with the given obfuscated identity.
func (c *Class) Field(obfuscatedName, obfuscatedDescriptor string) *Field {
	for _, f := range c.Fields {
		if f.ObfuscatedName == obfuscatedName && f.ObfuscatedDescriptor == obfuscatedDescriptor {
			return f
		}
	}
	return nil
}

// FieldNamed returns the field with the given current name and obfuscated
// descriptor.
func (c *Class) FieldNamed(name, obfuscatedDescriptor string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && f.ObfuscatedDescriptor == obfuscatedDescriptor {
			return f
		}
	}
	return nil
}

// AddField adds f unless its obfuscated identity is taken.
func (c *Class) AddField(f *Field) bool {
	if c.Field(f.ObfuscatedName, f.ObfuscatedDescriptor) != nil {
		return false
	}
	c.Fields = append(c.Fields, f)
	return true
}

// Method returns the method with the given obfuscated identity.
func (c *Class) Method(obfuscatedName, obfuscatedDescriptor string) *Method {
	for _, m := range c.Methods {
		if m.ObfuscatedName == obfuscatedName && m.ObfuscatedDescriptor == obfuscatedDescriptor {
			return m
		}
	}
	return nil
}

// MethodNamed returns the method with the given current name and obfuscated
// descriptor.
func (c *Class) MethodNamed(name, obfuscatedDescriptor string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.ObfuscatedDescriptor == obfuscatedDescriptor {
			return m
		}
	}
	return nil
}

// AddMethod adds m unless its obfuscated identity is taken.
func (c *Class) AddMethod(m *Method) bool {
	if c.Method(m.ObfuscatedName, m.ObfuscatedDescriptor) != nil {
		return false
	}
	c.Methods = append(c.Methods, m)
	return true
}

// LocalVariable returns the local variable in slot index.
func (m *Method) LocalVariable(index int) *LocalVariable {
	for _, v := range m.LocalVariables {
		if v.Index == index {
			return v
		}
	}
	return nil
}

// AddLocalVariable adds v unless its slot is taken.
func (m *Method) AddLocalVariable(v *LocalVariable) bool {
	if m.LocalVariable(v.Index) != nil {
		return false
	}
	m.LocalVariables = append(m.LocalVariables, v)
	return true
}

// IsRenamed reports whether the class name differs from its identity.
func (c *Class) IsRenamed() bool { return c.Name != c.ObfuscatedName }

// IsRenamed reports whether the field name differs from its identity.
func (f *Field) IsRenamed() bool { return f.Name != f.ObfuscatedName }

// IsRenamed reports whether the method name differs from its identity.
func (m *Method) IsRenamed() bool { return m.Name != m.ObfuscatedName }

// IsRenamed reports whether the variable has a non-default name.
func (v *LocalVariable) IsRenamed() bool { return v.Name != DefaultLocalName(v.Index) }

// Clone returns a deep copy of c.
func Clone(c *Class) *Class {
	clone := NewClass(c.ObfuscatedName, c.Name)
	clone.Comments = append([]Comment(nil), c.Comments...)
	for _, n := range c.NestedClasses {
		clone.NestedClasses = append(clone.NestedClasses, Clone(n))
	}
	for _, f := range c.Fields {
		cf := NewField(f.ObfuscatedName, f.ObfuscatedDescriptor, f.Name)
		cf.Comments = append([]Comment(nil), f.Comments...)
		clone.Fields = append(clone.Fields, cf)
	}
	for _, m := range c.Methods {
		cm := NewMethod(m.ObfuscatedName, m.ObfuscatedDescriptor, m.Name)
		cm.Comments = append([]Comment(nil), m.Comments...)
		for _, v := range m.LocalVariables {
			cm.LocalVariables = append(cm.LocalVariables, &LocalVariable{
				Index:    v.Index,
				Name:     v.Name,
				Comments: append([]Comment(nil), v.Comments...),
			})
		}
		clone.Methods = append(clone.Methods, cm)
	}
	return clone
}
