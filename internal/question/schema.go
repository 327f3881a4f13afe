package question

import (
	"errors"
	"fmt"
	"math"
)

// FieldType tags the expected shape of one answer field.
type FieldType string

const (
	FieldString     FieldType = "string"
	FieldInteger    FieldType = "integer"
	FieldNumber     FieldType = "number"
	FieldBoolean    FieldType = "boolean"
	FieldStringList FieldType = "string_list"
)

// Field describes one named field the model must produce: a type tag
// plus the semantic description used to steer the model.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`
	Required    bool      `json:"required" yaml:"required"`
}

// Schema is an ordered, tagged description of the structured answer
// expected from the model. It drives both prompt augmentation and
// response validation; there is no reflection involved.
type Schema struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Empty reports whether the schema declares no fields.
func (s Schema) Empty() bool { return len(s.Fields) == 0 }

// Validate checks field names, uniqueness, and type tags.
func (s Schema) Validate() error {
	if s.Empty() {
		return nil
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New("schema field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case FieldString, FieldInteger, FieldNumber, FieldBoolean, FieldStringList:
		default:
			return fmt.Errorf("schema field %q: unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

// JSONSchema renders the schema as a JSON Schema object suitable for
// embedding in a prompt or passing as a structured-output constraint.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := map[string]any{"description": f.Description}
		switch f.Type {
		case FieldStringList:
			prop["type"] = "array"
			prop["items"] = map[string]any{"type": "string"}
		case FieldInteger:
			prop["type"] = "integer"
		case FieldNumber:
			prop["type"] = "number"
		case FieldBoolean:
			prop["type"] = "boolean"
		default:
			prop["type"] = "string"
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ValidateMap checks a decoded JSON object against the schema and
// returns a copy with every declared field coerced to its tagged Go
// type (int64, float64, bool, string, []string). Missing required
// fields and type mismatches are errors; undeclared keys pass through
// untouched.
func (s Schema) ValidateMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, f := range s.Fields {
		raw, ok := m[f.Name]
		if !ok || raw == nil {
			if f.Required {
				return nil, fmt.Errorf("field %q: required but missing", f.Name)
			}
			continue
		}
		coerced, err := coerceField(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = coerced
	}
	return out, nil
}

func coerceField(t FieldType, raw any) (any, error) {
	switch t {
	case FieldString:
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return v, nil
	case FieldBoolean:
		v, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}
		return v, nil
	case FieldNumber:
		v, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", raw)
		}
		return v, nil
	case FieldInteger:
		v, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case FieldStringList:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array of strings, got %T", raw)
		}
		list := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, item)
			}
			list = append(list, s)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}
