package field

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nhle/issue-rest/internal/errcol"
)

const maxLabelLength = 255

// labelsField holds a set of free-form words. Used by the labels system
// field and by labels custom fields.
type labelsField struct {
	base
}

func newLabelsField(id, name string, schema Schema) *labelsField {
	return &labelsField{base: base{id: id, name: name, schema: schema}}
}

func (f *labelsField) SupportedOperations() []string {
	return []string{OpAdd, OpSet, OpRemove}
}

func (f *labelsField) Apply(_ context.Context, ic IssueContext, params *Params, op Operation) *errcol.Collection {
	var labels []string
	if cur, ok := params.current(ic, f.id); ok {
		labels = toStrings(cur)
	}

	switch op.Name {
	case OpSet:
		v, err := labelListSchema.decode(op.Value)
		if err != nil {
			return fieldError(f.id, err.Error())
		}
		labels = labels[:0:0]
		for _, item := range toStrings(v) {
			if msg := checkLabel(item); msg != "" {
				return fieldError(f.id, msg)
			}
			labels = appendUnique(labels, item)
		}
	case OpAdd:
		v, err := labelSchema.decode(op.Value)
		if err != nil {
			return fieldError(f.id, err.Error())
		}
		label := v.(string)
		if msg := checkLabel(label); msg != "" {
			return fieldError(f.id, msg)
		}
		labels = appendUnique(labels, label)
	case OpRemove:
		v, err := labelSchema.decode(op.Value)
		if err != nil {
			return fieldError(f.id, err.Error())
		}
		labels = removeString(labels, v.(string))
	}

	if labels == nil {
		labels = []string{}
	}
	params.Values[f.id] = labels
	return nil
}

func checkLabel(label string) string {
	switch {
	case strings.TrimSpace(label) == "":
		return "Labels cannot be empty."
	case strings.ContainsAny(label, " \t\n"):
		return fmt.Sprintf("The label '%s' contains spaces which is invalid.", label)
	case utf8.RuneCountInString(label) > maxLabelLength:
		return fmt.Sprintf("The label '%s' exceeds the maximum length of %d characters.", label, maxLabelLength)
	}
	return ""
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, existing := range list {
		if existing != s {
			out = append(out, existing)
		}
	}
	return out
}
