// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package module

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// FieldType is the declared type of an argument spec field.
type FieldType string

// Supported field types.
const (
	TypeStr  FieldType = "str"
	TypeBool FieldType = "bool"
	TypeInt  FieldType = "int"
)

// Field describes one parameter of a module.
type Field struct {
	Type     FieldType
	Required bool
	Default  any
	Choices  []string
	Aliases  []string
	// Env is consulted when the parameter is absent from the input document.
	Env string
}

// Spec is a module argument spec: typed fields plus cross-field constraints.
type Spec struct {
	Fields            map[string]Field
	RequiredOneOf     [][]string
	MutuallyExclusive [][]string
	RequiredTogether  [][]string
}

// Params holds resolved module parameters. Absent keys read as zero values.
type Params map[string]any

// String returns the string value of key, or "" when unset.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns the bool value of key, or false when unset.
func (p Params) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Int returns the int value of key, or 0 when unset.
func (p Params) Int(key string) int {
	i, _ := p[key].(int)
	return i
}

// Has reports whether key carries a value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// WithConnection returns a copy of the spec extended with the shared vCenter
// connection fields.
func (s Spec) WithConnection() Spec {
	out := Spec{
		Fields:            make(map[string]Field, len(s.Fields)+5),
		RequiredOneOf:     s.RequiredOneOf,
		MutuallyExclusive: s.MutuallyExclusive,
		RequiredTogether:  s.RequiredTogether,
	}
	for name, f := range s.Fields {
		out.Fields[name] = f
	}
	for name, f := range ConnectionFields() {
		out.Fields[name] = f
	}
	return out
}

// ConnectionFields is the shared argument spec fragment for reaching vCenter.
func ConnectionFields() map[string]Field {
	return map[string]Field{
		"hostname":       {Type: TypeStr, Required: true, Env: "VMWARE_HOST"},
		"username":       {Type: TypeStr, Required: true, Env: "VMWARE_USER", Aliases: []string{"user", "admin"}},
		"password":       {Type: TypeStr, Required: true, Env: "VMWARE_PASSWORD", Aliases: []string{"pass", "pwd"}},
		"port":           {Type: TypeInt, Default: 443, Env: "VMWARE_PORT"},
		"validate_certs": {Type: TypeBool, Default: true, Env: "VMWARE_VALIDATE_CERTS"},
	}
}

// Resolve validates raw input against the spec and produces typed parameters:
// aliases are folded to canonical names, env fallbacks and defaults applied,
// values coerced to the field type, choices and constraints enforced.
func (s Spec) Resolve(raw map[string]any) (Params, error) {
	canonical := make(map[string]string, len(s.Fields))
	for name, f := range s.Fields {
		canonical[name] = name
		for _, a := range f.Aliases {
			canonical[a] = name
		}
	}

	p := Params{}
	for key, val := range raw {
		name, ok := canonical[key]
		if !ok {
			return nil, fmt.Errorf("unsupported parameter %s", key)
		}
		if prev, dup := p[name]; dup && !reflect.DeepEqual(prev, val) {
			return nil, fmt.Errorf("parameter %s given twice via aliases with conflicting values", name)
		}
		p[name] = val
	}

	for name, f := range s.Fields {
		if !p.Has(name) && f.Env != "" {
			if v, ok := os.LookupEnv(f.Env); ok {
				p[name] = v
			}
		}
		if !p.Has(name) && f.Default != nil {
			p[name] = f.Default
		}
		if !p.Has(name) {
			if f.Required {
				return nil, fmt.Errorf("missing required parameter %s", name)
			}
			continue
		}

		v, err := coerce(f.Type, p[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		p[name] = v

		if len(f.Choices) > 0 {
			if sv, ok := v.(string); ok && !slices.Contains(f.Choices, sv) {
				return nil, fmt.Errorf("value of %s must be one of: %s, got: %s",
					name, strings.Join(f.Choices, ", "), sv)
			}
		}
	}

	if err := s.checkConstraints(p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s Spec) checkConstraints(p Params) error {
	for _, group := range s.MutuallyExclusive {
		if len(present(p, group)) > 1 {
			return fmt.Errorf("parameters are mutually exclusive: %s", strings.Join(group, "|"))
		}
	}
	for _, group := range s.RequiredOneOf {
		if len(present(p, group)) == 0 {
			return fmt.Errorf("one of the following is required: %s", strings.Join(group, ", "))
		}
	}
	for _, group := range s.RequiredTogether {
		if n := len(present(p, group)); n > 0 && n != len(group) {
			return fmt.Errorf("parameters are required together: %s", strings.Join(group, ", "))
		}
	}
	return nil
}

func present(p Params, names []string) []string {
	var out []string
	for _, n := range names {
		if v, ok := p[n]; ok && v != "" {
			out = append(out, n)
		}
	}
	return out
}

func coerce(t FieldType, v any) (any, error) {
	switch t {
	case TypeStr:
		switch x := v.(type) {
		case string:
			return x, nil
		default:
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			switch strings.ToLower(x) {
			case "true", "yes", "on", "1":
				return true, nil
			case "false", "no", "off", "0":
				return false, nil
			}
			return nil, fmt.Errorf("expected a boolean, got %q", x)
		default:
			return nil, fmt.Errorf("expected a boolean, got %T", v)
		}
	case TypeInt:
		switch x := v.(type) {
		case int:
			return x, nil
		case int64:
			return int(x), nil
		case float64:
			if x != float64(int(x)) {
				return nil, fmt.Errorf("expected an integer, got %v", x)
			}
			return int(x), nil
		case string:
			i, err := strconv.Atoi(x)
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %q", x)
			}
			return i, nil
		default:
			return nil, fmt.Errorf("expected an integer, got %T", v)
		}
	}
	return nil, fmt.Errorf("unknown field type %q", t)
}
