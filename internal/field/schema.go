package field

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// valueSchema pairs a compiled JSON Schema with the message reported when a
// value does not match it.
type valueSchema struct {
	schema  *jsonschema.Schema
	message string
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func mustSchema(name, message string, schema map[string]any) valueSchema {
	s, err := compileSchema(name, schema)
	if err != nil {
		panic(fmt.Sprintf("compiling %s: %v", name, err))
	}
	return valueSchema{schema: s, message: message}
}

// decode unmarshals raw and validates it. The decoded value is returned so
// handlers do not parse twice.
func (vs valueSchema) decode(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s", vs.message)
	}
	if err := vs.schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%s", vs.message)
	}
	return v, nil
}

var (
	refProperties = map[string]any{
		"id":   map[string]any{"type": "string"},
		"name": map[string]any{"type": "string"},
	}

	textSchema = mustSchema("text.json", "Operation value must be a string", map[string]any{
		"type": []any{"string", "null"},
	})

	refSchema = mustSchema("ref.json", "Operation value must be an object with an 'id' or a 'name'", map[string]any{
		"type":       []any{"object", "null"},
		"properties": refProperties,
		"anyOf": []any{
			map[string]any{"type": "null"},
			map[string]any{"required": []any{"id"}},
			map[string]any{"required": []any{"name"}},
		},
	})

	refListSchema = mustSchema("ref-list.json", "Operation value must be an array of objects with an 'id' or a 'name'", map[string]any{
		"type": []any{"array", "null"},
		"items": map[string]any{
			"type":       "object",
			"properties": refProperties,
			"anyOf": []any{
				map[string]any{"required": []any{"id"}},
				map[string]any{"required": []any{"name"}},
			},
		},
	})

	userSchema = mustSchema("user.json", "Operation value must be an object with a 'name'", map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"name": map[string]any{"type": []any{"string", "null"}},
		},
	})

	labelSchema = mustSchema("label.json", "Operation value must be a string", map[string]any{
		"type": "string",
	})

	labelListSchema = mustSchema("label-list.json", "Operation value must be an array of strings", map[string]any{
		"type":  []any{"array", "null"},
		"items": map[string]any{"type": "string"},
	})

	dateSchema = mustSchema("date.json", "Operation value must be a date in the form yyyy-MM-dd", map[string]any{
		"type":    []any{"string", "null"},
		"pattern": `^(\d{4}-\d{2}-\d{2})?$`,
	})

	commentSchema = mustSchema("comment.json", "Operation value must be an object with a 'body'", map[string]any{
		"type":     "object",
		"required": []any{"body"},
		"properties": map[string]any{
			"body": map[string]any{"type": "string"},
		},
	})

	numberSchema = mustSchema("number.json", "Operation value must be a number", map[string]any{
		"type": []any{"number", "null"},
	})

	optionSchema = mustSchema("option.json", "Operation value must be an object with an 'id' or a 'value'", map[string]any{
		"type": []any{"object", "null"},
		"properties": map[string]any{
			"id":    map[string]any{"type": "string"},
			"value": map[string]any{"type": "string"},
		},
		"anyOf": []any{
			map[string]any{"type": "null"},
			map[string]any{"required": []any{"id"}},
			map[string]any{"required": []any{"value"}},
		},
	})
)

// property returns a string property of a decoded object.
func property(v any, key string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
