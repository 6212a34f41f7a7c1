package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-forcegraph/pkg/accessor"
)

// AccessorSpec is an accessor as written in a config file:
//
//	val: size            # attribute name
//	opacity: 0.5         # number or bool constant
//	color: {value: red}  # explicit constant
//	color: {field: hue}  # explicit attribute name
type AccessorSpec struct {
	acc accessor.Accessor
}

// Field returns a spec reading the named attribute
func Field(name string) AccessorSpec { return AccessorSpec{acc: accessor.Field(name)} }

// Const returns a spec with a constant value
func Const(v any) AccessorSpec { return AccessorSpec{acc: accessor.Const(v)} }

// Accessor returns the normalized accessor
func (s AccessorSpec) Accessor() accessor.Accessor { return s.acc }

// IsSet reports whether the spec was configured
func (s AccessorSpec) IsSet() bool { return s.acc.IsSet() }

// IsZero reports whether the spec is unset, so omitempty drops it
func (s AccessorSpec) IsZero() bool { return !s.acc.IsSet() }

// String describes the spec
func (s AccessorSpec) String() string { return s.acc.Describe() }

// UnmarshalYAML implements yaml.Unmarshaler
func (s *AccessorSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			s.acc = accessor.None()
		case "!!str":
			s.acc = accessor.Field(n.Value)
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return err
			}
			s.acc = accessor.Const(f)
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return err
			}
			s.acc = accessor.Const(b)
		default:
			return fmt.Errorf("line %d: unsupported accessor value %q", n.Line, n.Value)
		}
		return nil

	case yaml.MappingNode:
		var m struct {
			Value any    `yaml:"value"`
			Field string `yaml:"field"`
		}
		if err := n.Decode(&m); err != nil {
			return err
		}
		switch {
		case m.Field != "" && m.Value != nil:
			return fmt.Errorf("line %d: accessor has both field and value", n.Line)
		case m.Field != "":
			s.acc = accessor.Field(m.Field)
		case m.Value != nil:
			s.acc = accessor.Const(normalize(m.Value))
		default:
			s.acc = accessor.None()
		}
		return nil

	default:
		return fmt.Errorf("line %d: accessor must be a scalar or a mapping", n.Line)
	}
}

// MarshalYAML implements yaml.Marshaler
func (s AccessorSpec) MarshalYAML() (any, error) {
	if name, ok := s.acc.Field(); ok {
		return name, nil
	}
	if v, ok := s.acc.Const(); ok {
		switch v.(type) {
		case float64, bool:
			return v, nil
		}
		return map[string]any{"value": v}, nil
	}
	return nil, nil
}

// normalize turns YAML integers into floats so constants compare the same
// however they were written
func normalize(v any) any {
	if i, ok := v.(int); ok {
		return float64(i)
	}
	return v
}
