package field

import (
	"context"
	"fmt"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// constantField references a global constant (priority, resolution) by id
// or name.
type constantField struct {
	base
	kind   string
	byID   func(ctx context.Context, id string) (string, error)
	byName func(ctx context.Context, name string) (string, error)
	all    func(ctx context.Context) ([]any, error)
}

func newPriorityField(lookup Lookup) *constantField {
	return &constantField{
		base: base{id: model.FieldPriority, name: "Priority", schema: Schema{Type: "priority", System: model.FieldPriority}},
		kind: "Priority",
		byID: func(ctx context.Context, id string) (string, error) {
			p, err := lookup.GetPriority(ctx, id)
			if err != nil {
				return "", err
			}
			return p.ID, nil
		},
		byName: func(ctx context.Context, name string) (string, error) {
			p, err := lookup.GetPriorityByName(ctx, name)
			if err != nil {
				return "", err
			}
			return p.ID, nil
		},
		all: func(ctx context.Context) ([]any, error) {
			ps, err := lookup.GetPriorities(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(ps))
			for _, p := range ps {
				out = append(out, p)
			}
			return out, nil
		},
	}
}

func newResolutionField(lookup Lookup) *constantField {
	return &constantField{
		base: base{id: model.FieldResolution, name: "Resolution", schema: Schema{Type: "resolution", System: model.FieldResolution}},
		kind: "Resolution",
		byID: func(ctx context.Context, id string) (string, error) {
			r, err := lookup.GetResolution(ctx, id)
			if err != nil {
				return "", err
			}
			return r.ID, nil
		},
		byName: func(ctx context.Context, name string) (string, error) {
			r, err := lookup.GetResolutionByName(ctx, name)
			if err != nil {
				return "", err
			}
			return r.ID, nil
		},
		all: func(ctx context.Context) ([]any, error) {
			rs, err := lookup.GetResolutions(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(rs))
			for _, r := range rs {
				out = append(out, r)
			}
			return out, nil
		},
	}
}

func (f *constantField) SupportedOperations() []string { return []string{OpSet} }

func (f *constantField) Apply(ctx context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := refSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	if v == nil {
		params.Values[f.id] = ""
		return nil
	}

	if id, ok := property(v, "id"); ok {
		resolved, err := f.byID(ctx, id)
		if store.IsNotFound(err) {
			return fieldError(f.id, fmt.Sprintf("%s with id '%s' does not exist", f.kind, id))
		}
		if err != nil {
			return lookupError(f.id, err)
		}
		params.Values[f.id] = resolved
		return nil
	}

	name, _ := property(v, "name")
	resolved, err := f.byName(ctx, name)
	if store.IsNotFound(err) {
		return fieldError(f.id, fmt.Sprintf("%s name '%s' is not valid", f.kind, name))
	}
	if err != nil {
		return lookupError(f.id, err)
	}
	params.Values[f.id] = resolved
	return nil
}

func (f *constantField) AllowedValues(ctx context.Context, _ IssueContext) ([]any, error) {
	return f.all(ctx)
}
