package field

import (
	"context"
	"fmt"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/store"
)

// userField references a user by login name. A null value or a null name
// clears the field.
type userField struct {
	base
	lookup Lookup
}

func newUserField(lookup Lookup, id, name string) *userField {
	return &userField{
		base:   base{id: id, name: name, schema: Schema{Type: "user", System: id}},
		lookup: lookup,
	}
}

func (f *userField) SupportedOperations() []string { return []string{OpSet} }

func (f *userField) Apply(ctx context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := userSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	name, _ := property(v, "name")
	if name == "" {
		params.Values[f.id] = ""
		return nil
	}

	u, err := f.lookup.GetUser(ctx, name)
	if store.IsNotFound(err) {
		return fieldError(f.id, fmt.Sprintf("User '%s' does not exist.", name))
	}
	if err != nil {
		return lookupError(f.id, err)
	}
	if !u.Active {
		return fieldError(f.id, fmt.Sprintf("User '%s' is not active.", name))
	}
	params.Values[f.id] = u.Name
	return nil
}
