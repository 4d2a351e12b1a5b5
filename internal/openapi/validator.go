// Package openapi loads the embedded API description and validates request
// bodies against it.
package openapi

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed openapi.yaml
var document []byte

// Document returns the embedded API description.
func Document() []byte {
	return document
}

// Validator holds a compiled body schema per operation id.
type Validator struct {
	doc    *openapi3.T
	bodies map[string]*jsonschema.Schema
}

// Load parses and validates the embedded description and compiles the
// request body schemas.
func Load(ctx context.Context) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("loading api description: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("validating api description: %w", err)
	}

	v := &Validator{doc: doc, bodies: make(map[string]*jsonschema.Schema)}
	for path, item := range doc.Paths {
		for method, op := range item.Operations() {
			if op.OperationID == "" {
				return nil, fmt.Errorf("%s %s has no operationId", method, path)
			}
			if op.RequestBody == nil || op.RequestBody.Value == nil {
				continue
			}
			media := op.RequestBody.Value.Content.Get("application/json")
			if media == nil || media.Schema == nil {
				continue
			}
			schema, err := compileSchema(op.OperationID, media.Schema)
			if err != nil {
				return nil, fmt.Errorf("compiling body schema of %s: %w", op.OperationID, err)
			}
			v.bodies[op.OperationID] = schema
		}
	}
	return v, nil
}

// Operations lists the operation ids of the description, sorted.
func (v *Validator) Operations() []string {
	var out []string
	for _, item := range v.doc.Paths {
		for _, op := range item.Operations() {
			out = append(out, op.OperationID)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateBody checks body against the request schema of operationID.
// Operations without a body schema accept anything.
func (v *Validator) ValidateBody(operationID string, body []byte) error {
	schema, ok := v.bodies[operationID]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("request body does not match %s: %w", operationID, err)
	}
	return nil
}

func compileSchema(name string, ref *openapi3.SchemaRef) (*jsonschema.Schema, error) {
	data, err := json.Marshal(ref.Value)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(name + ".json")
}
