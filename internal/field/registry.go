package field

import (
	"github.com/nhle/issue-rest/internal/model"
)

// Registry resolves field ids to fields. A registry is read-only once built
// and safe for concurrent use.
type Registry struct {
	fields map[string]Field
	order  []string
}

// NewRegistry returns a registry with the system fields and the given
// custom fields. Custom fields of unknown kind are reported as an error.
func NewRegistry(lookup Lookup, custom []model.CustomField) (*Registry, error) {
	r := &Registry{fields: make(map[string]Field)}

	summary := newTextField(model.FieldSummary, "Summary")
	summary.required = true

	for _, f := range []Field{
		summary,
		newTextField(model.FieldDescription, "Description"),
		newTextField(model.FieldEnvironment, "Environment"),
		newPriorityField(lookup),
		newResolutionField(lookup),
		newUserField(lookup, model.FieldAssignee, "Assignee"),
		newUserField(lookup, model.FieldReporter, "Reporter"),
		newLabelsField(model.FieldLabels, "Labels", Schema{Type: "array", Items: "string", System: model.FieldLabels}),
		newComponentsField(lookup),
		newVersionsField(lookup, model.FieldFixVersions, "Fix Version/s"),
		newVersionsField(lookup, model.FieldVersions, "Affects Version/s"),
		newDateField(model.FieldDueDate, "Due Date"),
		newCommentField(),
		newPlainField(model.FieldProject, "Project", "project"),
		newPlainField(model.FieldIssueType, "Issue Type", "issuetype"),
		newPlainField(model.FieldParent, "Parent", "issuelink"),
		newPlainField(model.FieldIssueKey, "Key", "string"),
		newPlainField(model.FieldStatus, "Status", "status"),
		newPlainField(model.FieldCreated, "Created", "datetime"),
		newPlainField(model.FieldUpdated, "Updated", "datetime"),
	} {
		r.add(f)
	}

	for _, cf := range custom {
		f, err := newCustomField(lookup, cf)
		if err != nil {
			return nil, err
		}
		r.add(f)
	}
	return r, nil
}

func (r *Registry) add(f Field) {
	if _, ok := r.fields[f.ID()]; !ok {
		r.order = append(r.order, f.ID())
	}
	r.fields[f.ID()] = f
}

// Field returns the field with the given id.
func (r *Registry) Field(id string) (Field, bool) {
	f, ok := r.fields[id]
	return f, ok
}

// Fields returns every registered field in registration order.
func (r *Registry) Fields() []Field {
	out := make([]Field, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.fields[id])
	}
	return out
}
