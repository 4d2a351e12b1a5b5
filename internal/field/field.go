// Package field holds the field registry and the per-field REST operation
// handlers that turn raw JSON operations into issue parameter values.
package field

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
)

// Operation names understood by REST-aware fields.
const (
	OpSet    = "set"
	OpAdd    = "add"
	OpRemove = "remove"
)

// Operation is one named action on a field value. On the wire it is a
// single-key object such as {"add": "triage"}.
type Operation struct {
	Name  string
	Value json.RawMessage
}

// Set returns a set operation carrying value.
func Set(value json.RawMessage) Operation {
	return Operation{Name: OpSet, Value: value}
}

// MarshalJSON encodes the operation as {"<name>": <value>}.
func (o Operation) MarshalJSON() ([]byte, error) {
	value := o.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return json.Marshal(map[string]json.RawMessage{o.Name: value})
}

// UnmarshalJSON decodes a single-key operation object.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("operation must be an object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("operation must have exactly one name, got %d", len(m))
	}
	for name, value := range m {
		o.Name = name
		o.Value = value
	}
	return nil
}

// IsNull reports whether the operation value is absent or JSON null.
func (o Operation) IsNull() bool {
	v := bytes.TrimSpace(o.Value)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// IssueContext is the project and issue type an operation applies to, plus
// the current issue when editing or transitioning.
type IssueContext struct {
	ProjectID   int64
	IssueTypeID string
	Issue       *model.Issue
}

// Params is the parameter bag populated by field handlers and consumed by
// the issue service.
type Params struct {
	// Values maps field ids to canonical values: string for text, reference
	// and user fields, []string for labels, []int64 for components and
	// versions, *time.Time for dates, float64 for number custom fields.
	Values map[string]any

	// Comments are bodies added through the comment field.
	Comments []string

	HistoryMetadata json.RawMessage

	// ApplyDefaults fills defaults for fields not provided (create).
	ApplyDefaults bool

	// RetainExisting keeps current values of fields not provided (edit).
	RetainExisting bool
}

// NewParams returns an empty bag.
func NewParams() *Params {
	return &Params{Values: make(map[string]any)}
}

// Provided reports whether a value was set for the field.
func (p *Params) Provided(id string) bool {
	_, ok := p.Values[id]
	return ok
}

// current returns the value a handler builds on: an earlier operation of the
// same request wins over the issue's stored value.
func (p *Params) current(ic IssueContext, id string) (any, bool) {
	if v, ok := p.Values[id]; ok {
		return v, true
	}
	return ic.Issue.FieldValue(id)
}

// Schema describes the value shape of a field in metadata responses.
type Schema struct {
	Type     string `json:"type"`
	Items    string `json:"items,omitempty"`
	System   string `json:"system,omitempty"`
	Custom   string `json:"custom,omitempty"`
	CustomID int64  `json:"customId,omitempty"`
}

// Field is anything addressable by a field id.
type Field interface {
	ID() string
	Name() string
	Schema() Schema
}

// RestOperations is implemented by fields that accept REST operations.
type RestOperations interface {
	Field

	// SupportedOperations lists the operation names in a stable order.
	SupportedOperations() []string

	// Apply applies one supported operation to params. Problems are returned
	// as a collection, never as a panic.
	Apply(ctx context.Context, ic IssueContext, params *Params, op Operation) *errcol.Collection
}

// AllowedValuesProvider is implemented by fields whose values come from a
// finite set.
type AllowedValuesProvider interface {
	AllowedValues(ctx context.Context, ic IssueContext) ([]any, error)
}

// Lookup resolves the references field handlers accept.
type Lookup interface {
	GetPriority(ctx context.Context, id string) (*model.Priority, error)
	GetPriorityByName(ctx context.Context, name string) (*model.Priority, error)
	GetPriorities(ctx context.Context) ([]model.Priority, error)

	GetResolution(ctx context.Context, id string) (*model.Resolution, error)
	GetResolutionByName(ctx context.Context, name string) (*model.Resolution, error)
	GetResolutions(ctx context.Context) ([]model.Resolution, error)

	GetUser(ctx context.Context, name string) (*model.User, error)

	GetComponent(ctx context.Context, id int64) (*model.Component, error)
	GetComponentByName(ctx context.Context, projectID int64, name string) (*model.Component, error)
	GetComponents(ctx context.Context, projectID int64) ([]model.Component, error)

	GetVersion(ctx context.Context, id int64) (*model.Version, error)
	GetVersionByName(ctx context.Context, projectID int64, name string) (*model.Version, error)
	GetVersions(ctx context.Context, projectID int64) ([]model.Version, error)

	GetFieldOption(ctx context.Context, fieldID, optionID string) (*model.FieldOption, error)
	GetFieldOptionByValue(ctx context.Context, fieldID, value string) (*model.FieldOption, error)
}

// base carries the identity shared by every field implementation.
type base struct {
	id     string
	name   string
	schema Schema
}

func (b base) ID() string     { return b.id }
func (b base) Name() string   { return b.name }
func (b base) Schema() Schema { return b.schema }

// Supports reports whether f accepts the named operation.
func Supports(f RestOperations, op string) bool {
	for _, s := range f.SupportedOperations() {
		if s == op {
			return true
		}
	}
	return false
}

func fieldError(id, msg string) *errcol.Collection {
	c := errcol.New()
	c.AddError(id, msg, errcol.ValidationFailed)
	return c
}

func lookupError(id string, err error) *errcol.Collection {
	c := errcol.New()
	c.AddErrorMessage(fmt.Sprintf("Could not resolve value of field '%s': %v", id, err), errcol.ServerError)
	return c
}
