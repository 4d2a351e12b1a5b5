package field

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// newCustomField builds the handler matching a custom field's kind.
func newCustomField(lookup Lookup, cf model.CustomField) (RestOperations, error) {
	schema := Schema{Custom: "issue-rest:" + cf.Kind}
	if n, err := strconv.ParseInt(strings.TrimPrefix(cf.ID, model.CustomFieldPrefix), 10, 64); err == nil {
		schema.CustomID = n
	}

	switch cf.Kind {
	case model.CustomFieldText:
		schema.Type = "string"
		return &customTextField{base: base{id: cf.ID, name: cf.Name, schema: schema}}, nil
	case model.CustomFieldNumber:
		schema.Type = "number"
		return &customNumberField{base: base{id: cf.ID, name: cf.Name, schema: schema}}, nil
	case model.CustomFieldSelect:
		schema.Type = "option"
		return &customSelectField{base: base{id: cf.ID, name: cf.Name, schema: schema}, lookup: lookup, options: cf.Options}, nil
	case model.CustomFieldLabels:
		schema.Type = "array"
		schema.Items = "string"
		return newLabelsField(cf.ID, cf.Name, schema), nil
	}
	return nil, fmt.Errorf("custom field %s has unknown kind %q", cf.ID, cf.Kind)
}

type customTextField struct {
	base
}

func (f *customTextField) SupportedOperations() []string { return []string{OpSet} }

func (f *customTextField) Apply(_ context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := textSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	if v == nil {
		params.Values[f.id] = nil
		return nil
	}
	params.Values[f.id] = v.(string)
	return nil
}

type customNumberField struct {
	base
}

func (f *customNumberField) SupportedOperations() []string { return []string{OpSet} }

func (f *customNumberField) Apply(_ context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := numberSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	if v == nil {
		params.Values[f.id] = nil
		return nil
	}
	params.Values[f.id] = v.(float64)
	return nil
}

// customSelectField stores the id of one of its options.
type customSelectField struct {
	base
	lookup  Lookup
	options []model.FieldOption
}

func (f *customSelectField) SupportedOperations() []string { return []string{OpSet} }

func (f *customSelectField) Apply(ctx context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := optionSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	if v == nil {
		params.Values[f.id] = nil
		return nil
	}

	var opt *model.FieldOption
	if id, ok := property(v, "id"); ok {
		opt, err = f.lookup.GetFieldOption(ctx, f.id, id)
		if store.IsNotFound(err) {
			return fieldError(f.id, fmt.Sprintf("Option id '%s' is not valid", id))
		}
	} else {
		value, _ := property(v, "value")
		opt, err = f.lookup.GetFieldOptionByValue(ctx, f.id, value)
		if store.IsNotFound(err) {
			return fieldError(f.id, fmt.Sprintf("Option value '%s' is not valid", value))
		}
	}
	if err != nil {
		return lookupError(f.id, err)
	}
	params.Values[f.id] = opt.ID
	return nil
}

func (f *customSelectField) AllowedValues(context.Context, IssueContext) ([]any, error) {
	out := make([]any, 0, len(f.options))
	for _, o := range f.options {
		out = append(out, o)
	}
	return out, nil
}
