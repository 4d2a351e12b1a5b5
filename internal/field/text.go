package field

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nhle/issue-rest/internal/errcol"
)

const maxSummaryLength = 255

// textField is a free text system field supporting set.
type textField struct {
	base
	required bool
}

func newTextField(id, name string) *textField {
	return &textField{base: base{id: id, name: name, schema: Schema{Type: "string", System: id}}}
}

func (f *textField) SupportedOperations() []string { return []string{OpSet} }

func (f *textField) Apply(_ context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := textSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	s, _ := v.(string)

	if f.required {
		s = strings.TrimSpace(s)
		if s == "" {
			return fieldError(f.id, "You must specify a summary of the issue.")
		}
		if utf8.RuneCountInString(s) > maxSummaryLength {
			return fieldError(f.id, fmt.Sprintf("Summary must be less than %d characters.", maxSummaryLength))
		}
	}

	params.Values[f.id] = s
	return nil
}
