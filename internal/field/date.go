package field

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
)

// dateField is a date-only value in yyyy-MM-dd form. An empty or null value
// clears it.
type dateField struct {
	base
}

func newDateField(id, name string) *dateField {
	return &dateField{base: base{id: id, name: name, schema: Schema{Type: "date", System: id}}}
}

func (f *dateField) SupportedOperations() []string { return []string{OpSet} }

func (f *dateField) Apply(_ context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := dateSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	s, _ := v.(string)
	if s == "" {
		params.Values[f.id] = (*time.Time)(nil)
		return nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return fieldError(f.id, fmt.Sprintf("Error parsing date string: %s", s))
	}
	params.Values[f.id] = &t
	return nil
}
