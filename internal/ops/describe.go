package ops

import (
	"github.com/Runemoro/knit/internal/descriptor"
	"github.com/Runemoro/knit/internal/store"
)

// DescribeInput contains parameters for the Describe operation.
type DescribeInput struct {
	Type string // type expression in current names
}

// DescribeOutput contains the result of the Describe operation.
type DescribeOutput struct {
	Type       string `json:"type"`
	Descriptor string `json:"descriptor"`
}

// Describe computes the obfuscated descriptor of a type expression.
// Without a mapping directory class names are emitted as written.
func Describe(env *Env, input DescribeInput) (*DescribeOutput, error) {
	var out *DescribeOutput
	err := env.Store.Do(func(s *store.Store) error {
		t, err := descriptor.Parse(input.Type)
		if err != nil {
			return err
		}
		out = &DescribeOutput{Type: descriptor.String(t), Descriptor: s.Resolve(t)}
		return nil
	})
	if err != nil {
		return nil, convertError(err, input.Type)
	}
	return out, nil
}

// MethodInput contains parameters for the Method operation.
type MethodInput struct {
	Params      []string
	Return      string // default void
	Static      bool
	Constructor bool // forces a void return on an instance method
}

// ParameterSlot is the local variable slot of one parameter.
type ParameterSlot struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MethodOutput contains the result of the Method operation.
type MethodOutput struct {
	Descriptor string          `json:"descriptor"`
	Parameters []ParameterSlot `json:"parameters"`
}

// Method computes the obfuscated descriptor of a method signature and the
// slot of each parameter.
func Method(env *Env, input MethodInput) (*MethodOutput, error) {
	ret := input.Return
	static := input.Static
	if input.Constructor {
		ret = ""
		static = false
	}
	out := &MethodOutput{Parameters: []ParameterSlot{}}
	err := env.Store.Do(func(s *store.Store) error {
		params, retType, err := parseSignature(input.Params, ret)
		if err != nil {
			return err
		}
		out.Descriptor = s.MethodDescriptor(params, retType)
		for i, slot := range descriptor.ParameterSlots(static, params) {
			out.Parameters = append(out.Parameters, ParameterSlot{Type: descriptor.String(params[i]), Index: slot})
		}
		return nil
	})
	if err != nil {
		return nil, convertError(err, "")
	}
	return out, nil
}
