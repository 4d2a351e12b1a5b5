package field

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// projectRefField holds project-scoped references (components, versions)
// given by id or name.
type projectRefField struct {
	base
	kind   string
	byID   func(ctx context.Context, id int64) (projectID int64, err error)
	byName func(ctx context.Context, projectID int64, name string) (int64, error)
	all    func(ctx context.Context, projectID int64) ([]any, error)
}

func newComponentsField(lookup Lookup) *projectRefField {
	return &projectRefField{
		base: base{id: model.FieldComponents, name: "Component/s", schema: Schema{Type: "array", Items: "component", System: model.FieldComponents}},
		kind: "Component",
		byID: func(ctx context.Context, id int64) (int64, error) {
			c, err := lookup.GetComponent(ctx, id)
			if err != nil {
				return 0, err
			}
			return c.ProjectID, nil
		},
		byName: func(ctx context.Context, projectID int64, name string) (int64, error) {
			c, err := lookup.GetComponentByName(ctx, projectID, name)
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		},
		all: func(ctx context.Context, projectID int64) ([]any, error) {
			cs, err := lookup.GetComponents(ctx, projectID)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(cs))
			for _, c := range cs {
				out = append(out, c)
			}
			return out, nil
		},
	}
}

func newVersionsField(lookup Lookup, id, name string) *projectRefField {
	return &projectRefField{
		base: base{id: id, name: name, schema: Schema{Type: "array", Items: "version", System: id}},
		kind: "Version",
		byID: func(ctx context.Context, id int64) (int64, error) {
			v, err := lookup.GetVersion(ctx, id)
			if err != nil {
				return 0, err
			}
			return v.ProjectID, nil
		},
		byName: func(ctx context.Context, projectID int64, name string) (int64, error) {
			v, err := lookup.GetVersionByName(ctx, projectID, name)
			if err != nil {
				return 0, err
			}
			return v.ID, nil
		},
		all: func(ctx context.Context, projectID int64) ([]any, error) {
			vs, err := lookup.GetVersions(ctx, projectID)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(vs))
			for _, v := range vs {
				if !v.Archived {
					out = append(out, v)
				}
			}
			return out, nil
		},
	}
}

func (f *projectRefField) SupportedOperations() []string {
	return []string{OpAdd, OpSet, OpRemove}
}

func (f *projectRefField) Apply(ctx context.Context, ic IssueContext, params *Params, op Operation) *errcol.Collection {
	var ids []int64
	if cur, ok := params.current(ic, f.id); ok {
		if c, ok := cur.([]int64); ok {
			ids = append(ids, c...)
		}
	}

	switch op.Name {
	case OpSet:
		v, err := refListSchema.decode(op.Value)
		if err != nil {
			return fieldError(f.id, err.Error())
		}
		items, _ := v.([]any)
		ids = []int64{}
		for _, item := range items {
			id, errs := f.resolve(ctx, ic, item)
			if errs != nil {
				return errs
			}
			ids = appendUniqueID(ids, id)
		}
	case OpAdd, OpRemove:
		v, err := refSchema.decode(op.Value)
		if err != nil || v == nil {
			return fieldError(f.id, refSchema.message)
		}
		id, errs := f.resolve(ctx, ic, v)
		if errs != nil {
			return errs
		}
		if op.Name == OpAdd {
			ids = appendUniqueID(ids, id)
		} else {
			ids = removeID(ids, id)
		}
	}

	if ids == nil {
		ids = []int64{}
	}
	params.Values[f.id] = ids
	return nil
}

func (f *projectRefField) resolve(ctx context.Context, ic IssueContext, ref any) (int64, *errcol.Collection) {
	if raw, ok := property(ref, "id"); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fieldError(f.id, fmt.Sprintf("%s id '%s' is not a number", f.kind, raw))
		}
		projectID, err := f.byID(ctx, id)
		if store.IsNotFound(err) || (err == nil && projectID != ic.ProjectID) {
			return 0, fieldError(f.id, fmt.Sprintf("%s with id '%s' does not exist.", f.kind, raw))
		}
		if err != nil {
			return 0, lookupError(f.id, err)
		}
		return id, nil
	}

	name, _ := property(ref, "name")
	id, err := f.byName(ctx, ic.ProjectID, name)
	if store.IsNotFound(err) {
		return 0, fieldError(f.id, fmt.Sprintf("%s name '%s' is not valid", f.kind, name))
	}
	if err != nil {
		return 0, lookupError(f.id, err)
	}
	return id, nil
}

func (f *projectRefField) AllowedValues(ctx context.Context, ic IssueContext) ([]any, error) {
	return f.all(ctx, ic.ProjectID)
}

func appendUniqueID(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
