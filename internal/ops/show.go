package ops

import (
	"sort"

	"github.com/Runemoro/knit/internal/config"
	"github.com/Runemoro/knit/internal/mapping"
	"github.com/Runemoro/knit/internal/store"
)

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	Class string // qualified current name, dots or slashes
}

// ClassView is a class mapping prepared for display. Unmapped reports
// whether the current name still looks obfuscated.
type ClassView struct {
	Obfuscated string       `json:"obfuscated" yaml:"obfuscated"`
	Name       string       `json:"name" yaml:"name"`
	Unmapped   bool         `json:"unmapped" yaml:"unmapped"`
	Comments   []string     `json:"comments,omitempty" yaml:"comments,omitempty"`
	Fields     []MemberView `json:"fields,omitempty" yaml:"fields,omitempty"`
	Methods    []MethodView `json:"methods,omitempty" yaml:"methods,omitempty"`
	Classes    []ClassView  `json:"classes,omitempty" yaml:"classes,omitempty"`
}

// MemberView is a field or method prepared for display.
type MemberView struct {
	Obfuscated string   `json:"obfuscated" yaml:"obfuscated"`
	Name       string   `json:"name" yaml:"name"`
	Descriptor string   `json:"descriptor" yaml:"descriptor"`
	Unmapped   bool     `json:"unmapped" yaml:"unmapped"`
	Comments   []string `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// MethodView is a method with its local variables.
type MethodView struct {
	MemberView `yaml:",inline"`
	Locals     []LocalView `json:"locals,omitempty" yaml:"locals,omitempty"`
}

// LocalView is a local variable prepared for display.
type LocalView struct {
	Index    int      `json:"index" yaml:"index"`
	Name     string   `json:"name" yaml:"name"`
	Comments []string `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// ShowOutput contains the result of the Show operation.
type ShowOutput struct {
	Class     ClassView `json:"class" yaml:"class"`
	File      string    `json:"file,omitempty" yaml:"file,omitempty"`
	Persisted bool      `json:"persisted" yaml:"persisted"`
}

// Show returns the mapping of a root class. Classes without a mapping file
// are shown as identity mappings.
func Show(env *Env, input ShowInput) (*ShowOutput, error) {
	name := mapping.NormalizeName(input.Class)
	var out *ShowOutput
	err := env.Store.Do(func(s *store.Store) error {
		root, err := s.GetOrCreate(name)
		if err != nil {
			return err
		}
		out = &ShowOutput{Class: NewClassView(root, env.classifier())}
		out.File, out.Persisted = s.File(root.Name)
		return nil
	})
	if err != nil {
		return nil, convertError(err, name)
	}
	return out, nil
}

// NewClassView builds the display tree of c, sorted the way mapping files
// are.
func NewClassView(c *mapping.Class, cls config.Classifier) ClassView {
	v := ClassView{
		Obfuscated: c.ObfuscatedName,
		Name:       c.Name,
		Unmapped:   cls.IsClassObfuscated(c.Name),
		Comments:   mapping.Lines(c.Comments),
	}
	for _, f := range c.Fields {
		v.Fields = append(v.Fields, MemberView{
			Obfuscated: f.ObfuscatedName,
			Name:       f.Name,
			Descriptor: f.ObfuscatedDescriptor,
			Unmapped:   cls.IsFieldObfuscated(f.Name),
			Comments:   mapping.Lines(f.Comments),
		})
	}
	for _, m := range c.Methods {
		mv := MethodView{MemberView: MemberView{
			Obfuscated: m.ObfuscatedName,
			Name:       m.Name,
			Descriptor: m.ObfuscatedDescriptor,
			Unmapped:   cls.IsMethodObfuscated(m.Name),
			Comments:   mapping.Lines(m.Comments),
		}}
		for _, l := range m.LocalVariables {
			mv.Locals = append(mv.Locals, LocalView{Index: l.Index, Name: l.Name, Comments: mapping.Lines(l.Comments)})
		}
		sort.Slice(mv.Locals, func(i, j int) bool { return mv.Locals[i].Index < mv.Locals[j].Index })
		v.Methods = append(v.Methods, mv)
	}
	for _, n := range c.NestedClasses {
		v.Classes = append(v.Classes, NewClassView(n, cls))
	}

	sort.Slice(v.Fields, func(i, j int) bool { return memberLess(v.Fields[i], v.Fields[j]) })
	sort.Slice(v.Methods, func(i, j int) bool { return memberLess(v.Methods[i].MemberView, v.Methods[j].MemberView) })
	sort.Slice(v.Classes, func(i, j int) bool {
		a, b := v.Classes[i].Obfuscated, v.Classes[j].Obfuscated
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return v
}

func memberLess(a, b MemberView) bool {
	if a.Obfuscated != b.Obfuscated {
		return a.Obfuscated < b.Obfuscated
	}
	return a.Descriptor < b.Descriptor
}

// Count returns the number of entities in v that still look obfuscated and
// the total number of entities, nested classes included.
func (v ClassView) Count() (unmapped, total int) {
	add := func(u bool) {
		total++
		if u {
			unmapped++
		}
	}
	add(v.Unmapped)
	for _, f := range v.Fields {
		add(f.Unmapped)
	}
	for _, m := range v.Methods {
		add(m.Unmapped)
	}
	for _, c := range v.Classes {
		u, t := c.Count()
		unmapped += u
		total += t
	}
	return unmapped, total
}
