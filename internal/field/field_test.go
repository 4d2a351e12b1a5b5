package field_test

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
	"github.com/nhle/issue-rest/tests/testutil"
)

const projectID = 10000

func newRegistry(t *testing.T) (*field.Registry, *store.SQLiteStore) {
	t.Helper()
	st := testutil.NewSeededStore(t)
	custom, err := st.GetCustomFields(context.Background())
	if err != nil {
		t.Fatalf("GetCustomFields: %v", err)
	}
	reg, err := field.NewRegistry(st, custom)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, st
}

func restField(t *testing.T, reg *field.Registry, id string) field.RestOperations {
	t.Helper()
	f, ok := reg.Field(id)
	if !ok {
		t.Fatalf("field %s not registered", id)
	}
	rf, ok := f.(field.RestOperations)
	if !ok {
		t.Fatalf("field %s has no REST operations", id)
	}
	return rf
}

func op(name, value string) field.Operation {
	return field.Operation{Name: name, Value: json.RawMessage(value)}
}

func apply(t *testing.T, rf field.RestOperations, ic field.IssueContext, params *field.Params, ops ...field.Operation) *errcol.Collection {
	t.Helper()
	errs := errcol.New()
	for _, o := range ops {
		errs.AddAll(rf.Apply(context.Background(), ic, params, o))
	}
	return errs
}

func createContext() field.IssueContext {
	return field.IssueContext{ProjectID: projectID, IssueTypeID: "1"}
}

func TestRegistryOrder(t *testing.T) {
	reg, _ := newRegistry(t)

	fields := reg.Fields()
	if fields[0].ID() != model.FieldSummary {
		t.Errorf("first field = %s", fields[0].ID())
	}
	last := fields[len(fields)-1].ID()
	if !model.IsCustomField(last) {
		t.Errorf("custom fields should be registered last, got %s", last)
	}
	if _, ok := reg.Field("customfield_10002"); !ok {
		t.Error("select custom field not registered")
	}
	for _, id := range []string{model.FieldProject, model.FieldIssueType, model.FieldStatus} {
		f, _ := reg.Field(id)
		if _, ok := f.(field.RestOperations); ok {
			t.Errorf("%s should not accept REST operations", id)
		}
	}
}

func TestRegistryRejectsUnknownCustomKind(t *testing.T) {
	_, err := field.NewRegistry(nil, []model.CustomField{{ID: "customfield_1", Name: "X", Kind: "cascading"}})
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestSummary(t *testing.T) {
	reg, _ := newRegistry(t)
	summary := restField(t, reg, model.FieldSummary)

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr string
	}{
		{"trimmed", `"  Fix bug  "`, "Fix bug", ""},
		{"empty", `""`, "", "You must specify a summary of the issue."},
		{"null", `null`, "", "You must specify a summary of the issue."},
		{"too long", strconv.Quote(strings.Repeat("x", 256)), "", "Summary must be less than 255 characters."},
		{"wrong type", `42`, "", "Operation value must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := field.NewParams()
			errs := apply(t, summary, createContext(), params, op(field.OpSet, tt.value))
			got, _ := errs.FieldError(model.FieldSummary)
			if got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
			if tt.wantErr == "" && params.Values[model.FieldSummary] != tt.want {
				t.Errorf("value = %v, want %q", params.Values[model.FieldSummary], tt.want)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	reg, _ := newRegistry(t)
	priority := restField(t, reg, model.FieldPriority)

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr string
	}{
		{"by id", `{"id": "2"}`, "2", ""},
		{"by name", `{"name": "Minor"}`, "4", ""},
		{"id wins", `{"id": "1", "name": "Minor"}`, "1", ""},
		{"clear", `null`, "", ""},
		{"unknown id", `{"id": "42"}`, "", "Priority with id '42' does not exist"},
		{"unknown name", `{"name": "Urgent"}`, "", "Priority name 'Urgent' is not valid"},
		{"no reference", `{}`, "", "Operation value must be an object with an 'id' or a 'name'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := field.NewParams()
			errs := apply(t, priority, createContext(), params, op(field.OpSet, tt.value))
			got, _ := errs.FieldError(model.FieldPriority)
			if got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
			if tt.wantErr == "" && params.Values[model.FieldPriority] != tt.want {
				t.Errorf("value = %v, want %q", params.Values[model.FieldPriority], tt.want)
			}
		})
	}

	allowed, err := priority.(field.AllowedValuesProvider).AllowedValues(context.Background(), createContext())
	if err != nil || len(allowed) != 5 {
		t.Errorf("allowed values = %d, %v", len(allowed), err)
	}
}

func TestAssignee(t *testing.T) {
	reg, _ := newRegistry(t)
	assignee := restField(t, reg, model.FieldAssignee)

	tests := []struct {
		value   string
		want    string
		wantErr string
	}{
		{`{"name": "alice"}`, "alice", ""},
		{`{"name": null}`, "", ""},
		{`null`, "", ""},
		{`{"name": "zed"}`, "", "User 'zed' does not exist."},
		{`{"name": "carol"}`, "", "User 'carol' is not active."},
		{`"alice"`, "", "Operation value must be an object with a 'name'"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			params := field.NewParams()
			errs := apply(t, assignee, createContext(), params, op(field.OpSet, tt.value))
			got, _ := errs.FieldError(model.FieldAssignee)
			if got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
			if tt.wantErr == "" && params.Values[model.FieldAssignee] != tt.want {
				t.Errorf("value = %v, want %q", params.Values[model.FieldAssignee], tt.want)
			}
		})
	}
}

func TestLabelsOperationsBuildOnIssue(t *testing.T) {
	reg, _ := newRegistry(t)
	labels := restField(t, reg, model.FieldLabels)
	ic := createContext()
	ic.Issue = &model.Issue{Labels: []string{"old", "keep"}}

	params := field.NewParams()
	errs := apply(t, labels, ic, params,
		op(field.OpAdd, `"new"`),
		op(field.OpRemove, `"old"`),
		op(field.OpAdd, `"keep"`),
	)
	if errs.HasAnyErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got, want := params.Values[model.FieldLabels], []string{"keep", "new"}; !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(ic.Issue.Labels, []string{"old", "keep"}) {
		t.Errorf("issue labels modified: %v", ic.Issue.Labels)
	}

	params = field.NewParams()
	apply(t, labels, ic, params, op(field.OpSet, `["a", "b", "a"]`))
	if got, want := params.Values[model.FieldLabels], []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("set labels = %v, want %v", got, want)
	}

	errs = apply(t, labels, ic, field.NewParams(), op(field.OpAdd, `"two words"`))
	if msg, _ := errs.FieldError(model.FieldLabels); !strings.Contains(msg, "contains spaces") {
		t.Errorf("error = %q", msg)
	}
}

func TestComponents(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	components := restField(t, reg, model.FieldComponents)

	backend, err := st.GetComponentByName(ctx, projectID, "Backend")
	if err != nil {
		t.Fatal(err)
	}
	frontend, err := st.GetComponentByName(ctx, projectID, "Frontend")
	if err != nil {
		t.Fatal(err)
	}

	params := field.NewParams()
	errs := apply(t, components, createContext(), params,
		op(field.OpSet, `[{"name": "Backend"}]`),
		op(field.OpAdd, `{"id": "`+strconv.FormatInt(frontend.ID, 10)+`"}`),
		op(field.OpRemove, `{"name": "Backend"}`),
	)
	if errs.HasAnyErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got, want := params.Values[model.FieldComponents], []int64{frontend.ID}; !reflect.DeepEqual(got, want) {
		t.Errorf("components = %v, want %v", got, want)
	}

	// A component of another project is not visible.
	other := createContext()
	other.ProjectID = 1
	errs = apply(t, components, other, field.NewParams(), op(field.OpAdd, `{"id": "`+strconv.FormatInt(backend.ID, 10)+`"}`))
	if _, ok := errs.FieldError(model.FieldComponents); !ok {
		t.Error("expected error for component outside the project")
	}

	errs = apply(t, components, createContext(), field.NewParams(), op(field.OpAdd, `{"name": "Docs"}`))
	if msg, _ := errs.FieldError(model.FieldComponents); msg != "Component name 'Docs' is not valid" {
		t.Errorf("error = %q", msg)
	}
}

func TestDueDate(t *testing.T) {
	reg, _ := newRegistry(t)
	due := restField(t, reg, model.FieldDueDate)

	params := field.NewParams()
	if errs := apply(t, due, createContext(), params, op(field.OpSet, `"2024-03-01"`)); errs.HasAnyErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got, ok := params.Values[model.FieldDueDate].(*time.Time)
	if !ok || got.Format(model.DateLayout) != "2024-03-01" {
		t.Errorf("due date = %v", params.Values[model.FieldDueDate])
	}

	params = field.NewParams()
	apply(t, due, createContext(), params, op(field.OpSet, `null`))
	if v := params.Values[model.FieldDueDate].(*time.Time); v != nil {
		t.Errorf("cleared due date = %v", v)
	}

	for _, bad := range []string{`"01/03/2024"`, `"2024-13-45"`} {
		errs := apply(t, due, createContext(), field.NewParams(), op(field.OpSet, bad))
		if !errs.HasAnyErrors() {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestComment(t *testing.T) {
	reg, _ := newRegistry(t)
	comment := restField(t, reg, model.FieldComment)

	if !reflect.DeepEqual(comment.SupportedOperations(), []string{field.OpAdd}) {
		t.Errorf("operations = %v", comment.SupportedOperations())
	}

	params := field.NewParams()
	apply(t, comment, createContext(), params,
		op(field.OpAdd, `{"body": "first"}`),
		op(field.OpAdd, `{"body": "second"}`),
	)
	if !reflect.DeepEqual(params.Comments, []string{"first", "second"}) {
		t.Errorf("comments = %v", params.Comments)
	}

	errs := apply(t, comment, createContext(), field.NewParams(), op(field.OpAdd, `{"body": "  "}`))
	if msg, _ := errs.FieldError(model.FieldComment); msg != "Comment body can not be empty!" {
		t.Errorf("error = %q", msg)
	}
}

func TestCustomFields(t *testing.T) {
	reg, _ := newRegistry(t)
	points := restField(t, reg, "customfield_10001")
	severity := restField(t, reg, "customfield_10002")

	if s := points.Schema(); s.Type != "number" || s.CustomID != 10001 {
		t.Errorf("points schema = %+v", s)
	}

	params := field.NewParams()
	errs := apply(t, points, createContext(), params, op(field.OpSet, `3.5`))
	errs.AddAll(apply(t, severity, createContext(), params, op(field.OpSet, `{"value": "S2"}`)))
	if errs.HasAnyErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if params.Values["customfield_10001"] != 3.5 {
		t.Errorf("points = %v", params.Values["customfield_10001"])
	}
	if params.Values["customfield_10002"] != "10101" {
		t.Errorf("severity = %v", params.Values["customfield_10002"])
	}

	errs = apply(t, severity, createContext(), field.NewParams(), op(field.OpSet, `{"id": "1"}`))
	if msg, _ := errs.FieldError("customfield_10002"); msg != "Option id '1' is not valid" {
		t.Errorf("error = %q", msg)
	}
	errs = apply(t, points, createContext(), field.NewParams(), op(field.OpSet, `"three"`))
	if msg, _ := errs.FieldError("customfield_10001"); msg != "Operation value must be a number" {
		t.Errorf("error = %q", msg)
	}
}

func TestOperationJSON(t *testing.T) {
	var ops []field.Operation
	if err := json.Unmarshal([]byte(`[{"add": "a"}, {"set": null}]`), &ops); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ops[0].Name != "add" || ops[0].IsNull() || !ops[1].IsNull() {
		t.Errorf("ops = %+v", ops)
	}
	data, err := json.Marshal(field.Operation{Name: "remove"})
	if err != nil || string(data) != `{"remove":null}` {
		t.Errorf("Marshal = %s, %v", data, err)
	}
}
