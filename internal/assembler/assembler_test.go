package assembler_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/nhle/issue-rest/internal/assembler"
	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
)

func decode(t *testing.T, body string) assembler.Request {
	t.Helper()
	var req assembler.Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	return req
}

// opMap flattens a result's operations to "field -> [name=value ...]".
func opMap(r *assembler.Result) map[string][]string {
	out := make(map[string][]string)
	for _, fo := range r.Operations {
		for _, op := range fo.Operations {
			out[fo.FieldID] = append(out[fo.FieldID], op.Name+"="+string(op.Value))
		}
	}
	return out
}

func fieldOrder(r *assembler.Result) []string {
	var ids []string
	for _, fo := range r.Operations {
		ids = append(ids, fo.FieldID)
	}
	return ids
}

func editContext() assembler.Context {
	return assembler.Context{
		Kind:           assembler.Edit,
		MustHaveFields: true,
		Issue: field.IssueContext{
			ProjectID:   10000,
			IssueTypeID: "1",
			Issue:       &model.Issue{ID: 1, Key: "TST-1", ProjectID: 10000, IssueTypeID: "1"},
		},
	}
}

func TestAssembleSetFromFields(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)
	req := decode(t, `{"fields": {"summary": "Fix bug"}}`)

	r := a.Assemble(context.Background(), req, assembler.NewFieldSet("summary", "comment"), editContext())

	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	want := map[string][]string{"summary": {`set="Fix bug"`}}
	if got := opMap(r); !reflect.DeepEqual(got, want) {
		t.Errorf("operations = %v, want %v", got, want)
	}
	if got := r.Params.Values["summary"]; got != `"Fix bug"` {
		t.Errorf("params summary = %v", got)
	}
}

func TestAssembleUnionInFirstSeenOrder(t *testing.T) {
	var applied []string
	a := assembler.New(newRegistry(&applied), newResolver(), nil)
	req := decode(t, `{
		"fields": {"priority": {"id": "2"}, "summary": "S"},
		"update": {"labels": [{"add": "a"}, {"remove": "b"}], "comment": [{"add": {"body": "hi"}}]}
	}`)
	valid := assembler.NewFieldSet("summary", "priority", "labels", "comment")

	r := a.Assemble(context.Background(), req, valid, editContext())

	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if got, want := fieldOrder(r), []string{"priority", "summary", "labels", "comment"}; !reflect.DeepEqual(got, want) {
		t.Errorf("field order = %v, want %v", got, want)
	}
	wantApplied := []string{"priority:set", "summary:set", "labels:add", "labels:remove", "comment:add"}
	if !reflect.DeepEqual(applied, wantApplied) {
		t.Errorf("applied = %v, want %v", applied, wantApplied)
	}
	ops, ok := r.OperationsFor("labels")
	if !ok || len(ops) != 2 {
		t.Errorf("labels operations = %v", ops)
	}
}

func TestAssembleDuplicateField(t *testing.T) {
	var applied []string
	a := assembler.New(newRegistry(&applied), newResolver(), nil)
	req := decode(t, `{"fields": {"summary": "A"}, "update": {"summary": [{"set": "B"}]}}`)

	r := a.Assemble(context.Background(), req, assembler.NewFieldSet("summary", "comment"), editContext())

	msgs := r.Errors.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "'summary'") {
		t.Fatalf("messages = %v, want one duplicate error", msgs)
	}
	if _, ok := r.OperationsFor("summary"); ok {
		t.Error("duplicated field should not be in the operation map")
	}
	if len(applied) != 0 {
		t.Errorf("handler invoked for duplicated field: %v", applied)
	}
}

func TestAssembleMustHaveFields(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)

	for name, body := range map[string]string{
		"absent":     `{}`,
		"empty":      `{"fields": {}, "update": {}}`,
		"null":       `{"fields": null}`,
		"transition": `{"transition": {"id": "5"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			r := a.Assemble(context.Background(), decode(t, body), assembler.NewFieldSet("summary"), editContext())

			msgs := r.Errors.Messages()
			if len(msgs) != 1 || msgs[0] != "one of 'fields' or 'update' required" {
				t.Errorf("messages = %v", msgs)
			}
			if len(r.Errors.Errors()) != 0 {
				t.Errorf("field errors = %v", r.Errors.Errors())
			}
			if len(r.Operations) != 0 {
				t.Errorf("operations = %v", r.Operations)
			}
		})
	}
}

func TestAssembleNoFieldsAllowedWithoutMustHave(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)
	actx := editContext()
	actx.Kind = assembler.Transition
	actx.MustHaveFields = false

	r := a.Assemble(context.Background(), decode(t, `{}`), assembler.NewFieldSet("summary"), actx)
	if r.HasErrors() {
		t.Errorf("unexpected errors: %v", r.Errors)
	}
}

func TestAssembleFieldNotValid(t *testing.T) {
	var applied []string
	a := assembler.New(newRegistry(&applied), newResolver(), nil)
	req := decode(t, `{"fields": {"priority": {"id": "1"}}, "update": {"labels": [{"add": "x"}]}, "unused": 1}`)

	r := a.Assemble(context.Background(), req, assembler.NewFieldSet("summary", "comment"), editContext())

	errs := r.Errors.Errors()
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want two", errs)
	}
	want := "Field 'priority' cannot be set. It is not on the appropriate screen, or unknown."
	if errs["priority"] != want {
		t.Errorf("priority error = %q", errs["priority"])
	}
	if _, ok := errs["labels"]; !ok {
		t.Error("missing labels error")
	}
	if len(r.Operations) != 0 || len(applied) != 0 {
		t.Errorf("operations = %v, applied = %v", r.Operations, applied)
	}
}

func TestAssembleUnsupportedOperation(t *testing.T) {
	var applied []string
	a := assembler.New(newRegistry(&applied), newResolver(), nil)
	req := decode(t, `{"update": {"summary": [{"add": "x"}, {"set": "y"}]}}`)

	r := a.Assemble(context.Background(), req, assembler.NewFieldSet("summary"), editContext())

	msg, ok := r.Errors.FieldError("summary")
	if !ok {
		t.Fatalf("missing summary error: %v", r.Errors)
	}
	for _, part := range []string{"'summary'", "'add'", "Supported operation(s) are: 'set'"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error %q does not contain %s", msg, part)
		}
	}
	if !reflect.DeepEqual(applied, []string{"summary:set"}) {
		t.Errorf("applied = %v, want only the supported set", applied)
	}
}

func TestAssembleFieldWithoutRestSupport(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)

	r := a.Assemble(context.Background(), decode(t, `{"fields": {"created": "2024-01-01"}}`),
		assembler.NewFieldSet("created"), editContext())

	if msg, _ := r.Errors.FieldError("created"); msg != "Field does not support update 'created'" {
		t.Errorf("created error = %q", msg)
	}
	if len(r.Operations) != 0 {
		t.Errorf("operations = %v", r.Operations)
	}
}

func TestAssembleUnknownFieldInValidSet(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)

	r := a.Assemble(context.Background(), decode(t, `{"update": {"customfield_1": [{"set": "x"}]}}`),
		assembler.NewFieldSet("customfield_1"), editContext())

	msgs := r.Errors.Messages()
	if len(msgs) != 1 || msgs[0] != "Field with id 'customfield_1' does not exist for issue 'TST-1'" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestAssembleCollectsEveryError(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)
	req := decode(t, `{"fields": {"summary": "bad", "priority": "bad", "nope": 1}}`)

	r := a.Assemble(context.Background(), req, assembler.NewFieldSet("summary", "priority"), editContext())

	errs := r.Errors.Errors()
	for _, id := range []string{"summary", "priority", "nope"} {
		if _, ok := errs[id]; !ok {
			t.Errorf("missing error for %s in %v", id, errs)
		}
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)
	req := decode(t, `{"fields": {"summary": "S", "x": 1}, "update": {"labels": [{"add": "a"}, {"bogus": 1}]}}`)
	valid := assembler.NewFieldSet("summary", "labels")

	first := a.Assemble(context.Background(), req, valid, editContext())
	second := a.Assemble(context.Background(), req, valid, editContext())

	if !reflect.DeepEqual(opMap(first), opMap(second)) {
		t.Errorf("operations differ: %v vs %v", opMap(first), opMap(second))
	}
	if !reflect.DeepEqual(first.Errors.Body(), second.Errors.Body()) {
		t.Errorf("errors differ: %v vs %v", first.Errors, second.Errors)
	}
	if !reflect.DeepEqual(first.Params.Values, second.Params.Values) {
		t.Errorf("params differ: %v vs %v", first.Params.Values, second.Params.Values)
	}
}

func TestAssembleParent(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"id wins over key", `{"fields": {"parent": {"id": "10", "key": "TST-9"}}}`, "10", false},
		{"numeric id", `{"fields": {"parent": {"id": 12}}}`, "12", false},
		{"key", `{"fields": {"parent": {"key": "TST-9"}}}`, "TST-9", false},
		{"empty", `{"fields": {"parent": {}}}`, "", true},
		{"not an object", `{"fields": {"parent": "TST-9"}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.Assemble(context.Background(), decode(t, tt.body), assembler.NewFieldSet(), editContext())
			if r.ParentIDOrKey != tt.want {
				t.Errorf("parent = %q, want %q", r.ParentIDOrKey, tt.want)
			}
			if _, got := r.Errors.FieldError("parent"); got != tt.wantErr {
				t.Errorf("parent error = %v, want %v", got, tt.wantErr)
			}
			if len(r.Operations) != 0 {
				t.Errorf("parent must not become an operation: %v", r.Operations)
			}
		})
	}
}

func TestAssembleProjectOutsideCreate(t *testing.T) {
	a := assembler.New(newRegistry(nil), newResolver(), nil)

	r := a.Assemble(context.Background(), decode(t, `{"fields": {"project": {"key": "TST"}}}`),
		assembler.NewFieldSet("summary"), editContext())

	if _, ok := r.Errors.FieldError("project"); !ok {
		t.Errorf("project should not be settable on edit: %v", r.Errors)
	}
	if r.ProjectID != 10000 {
		t.Errorf("project id = %d, want the issue's project", r.ProjectID)
	}
}

func TestForCreateStructuralFields(t *testing.T) {
	screens := &fakeScreens{create: []string{"summary", "labels"}}
	a := assembler.New(newRegistry(nil), newResolver(), screens)
	req := decode(t, `{"fields": {"project": {"key": "TST"}, "issuetype": {"id": "10000"}, "priority": {"id": "1"}}}`)

	r := a.ForCreate(context.Background(), req)

	errs := r.Errors.Errors()
	if len(errs) != 1 || len(r.Errors.Messages()) != 0 {
		t.Fatalf("errors = %v, want exactly one", r.Errors.Body())
	}
	if _, ok := errs["priority"]; !ok {
		t.Errorf("error not keyed by priority: %v", errs)
	}
	if r.ProjectID != 10000 || r.IssueTypeID != "10000" {
		t.Errorf("side channel = (%d, %q)", r.ProjectID, r.IssueTypeID)
	}
	for _, id := range []string{"project", "issuetype"} {
		if _, ok := r.OperationsFor(id); ok {
			t.Errorf("%s must not be in the operation map", id)
		}
	}
}

func TestForCreateResolution(t *testing.T) {
	screens := &fakeScreens{create: []string{"summary"}}
	a := assembler.New(newRegistry(nil), newResolver(), screens)

	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
	}{
		{"missing fields", `{}`, "", "one of 'fields' or 'update' required"},
		{"no project", `{"fields": {"issuetype": {"id": "1"}, "summary": "S"}}`, "project", "project is required"},
		{"no issue type", `{"fields": {"project": {"id": "10000"}, "summary": "S"}}`, "issuetype", "issue type is required"},
		{"bad project id", `{"fields": {"project": {"id": "abc"}, "issuetype": {"id": "1"}}}`, "project", "invalid id: abc"},
		{"unknown project", `{"fields": {"project": {"key": "NOPE"}, "issuetype": {"id": "1"}}}`, "project", "Could not find project by id or key."},
		{"unknown issue type name", `{"fields": {"project": {"key": "TST"}, "issuetype": {"name": "Epic"}}}`, "issuetype", "Could not find issuetype by id or name."},
		{"issue type outside scheme", `{"fields": {"project": {"key": "TST"}, "issuetype": {"id": "3"}}}`, "issuetype", "valid issue type is required"},
		{"unknown issue type id", `{"fields": {"project": {"key": "TST"}, "issuetype": {"id": "99"}}}`, "issuetype", "valid issue type is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.ForCreate(context.Background(), decode(t, tt.body))
			if tt.wantField == "" {
				msgs := r.Errors.Messages()
				if len(msgs) != 1 || msgs[0] != tt.wantMsg {
					t.Errorf("messages = %v, want %q", msgs, tt.wantMsg)
				}
				return
			}
			if got, _ := r.Errors.FieldError(tt.wantField); got != tt.wantMsg {
				t.Errorf("%s error = %q, want %q", tt.wantField, got, tt.wantMsg)
			}
		})
	}
}

func TestForCreateByNames(t *testing.T) {
	screens := &fakeScreens{create: []string{"summary"}}
	a := assembler.New(newRegistry(nil), newResolver(), screens)
	req := decode(t, `{"fields": {"project": {"id": 10000}, "issuetype": {"name": "Bug"}, "summary": "S"}, "update": {"comment": [{"add": {"body": "c"}}]}}`)

	r := a.ForCreate(context.Background(), req)

	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if r.IssueTypeID != "1" {
		t.Errorf("issue type = %q, want 1", r.IssueTypeID)
	}
	if got, want := fieldOrder(r), []string{"summary", "comment"}; !reflect.DeepEqual(got, want) {
		t.Errorf("fields = %v, want %v", got, want)
	}
	if !r.Params.ApplyDefaults || r.Params.RetainExisting {
		t.Error("create must apply defaults and not retain values")
	}
}

func TestForCreateResolvesReferencesOnce(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]int
	}{
		{
			"by id",
			`{"fields": {"project": {"id": "10000"}, "issuetype": {"id": "1"}, "summary": "S"}}`,
			map[string]int{"GetProject": 1, "GetIssueType": 1},
		},
		{
			"by key and name",
			`{"fields": {"project": {"key": "TST"}, "issuetype": {"name": "Bug"}, "summary": "S"}}`,
			map[string]int{"GetProjectByKey": 1, "GetIssueTypeByName": 1, "GetIssueType": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := newResolver()
			a := assembler.New(newRegistry(nil), resolver, &fakeScreens{create: []string{"summary"}})

			r := a.ForCreate(context.Background(), decode(t, tt.body))

			if r.HasErrors() {
				t.Fatalf("unexpected errors: %v", r.Errors.Body())
			}
			if r.ProjectID != 10000 || r.IssueTypeID != "1" {
				t.Errorf("side channel = (%d, %q)", r.ProjectID, r.IssueTypeID)
			}
			if !reflect.DeepEqual(resolver.calls, tt.want) {
				t.Errorf("lookups = %v, want %v", resolver.calls, tt.want)
			}
		})
	}
}

func TestForCreateScreenFailure(t *testing.T) {
	screens := &fakeScreens{err: errors.New("db down")}
	a := assembler.New(newRegistry(nil), newResolver(), screens)

	r := a.ForCreate(context.Background(), decode(t, `{"fields": {"project": {"key": "TST"}, "issuetype": {"id": "1"}}}`))

	if r.Errors.WorstReason() != errcol.ServerError {
		t.Errorf("reason = %v, want server error", r.Errors.WorstReason())
	}
}

func TestForBulkCreateIsolatesRequests(t *testing.T) {
	screens := &fakeScreens{create: []string{"summary"}}
	a := assembler.New(newRegistry(nil), newResolver(), screens)
	reqs := []assembler.Request{
		decode(t, `{"fields": {"project": {"key": "TST"}, "issuetype": {"id": "1"}, "summary": "ok"}}`),
		decode(t, `{"fields": {"project": {"key": "TST"}, "issuetype": {"id": "1"}, "summary": "bad"}}`),
	}

	results := a.ForBulkCreate(context.Background(), reqs)

	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].HasErrors() {
		t.Errorf("first: %v", results[0].Errors)
	}
	if !results[1].HasErrors() {
		t.Error("second should fail")
	}
}

func TestForEdit(t *testing.T) {
	screens := &fakeScreens{edit: []string{"summary", "labels"}}
	a := assembler.New(newRegistry(nil), newResolver(), screens)
	issue := &model.Issue{ID: 1, Key: "TST-1", ProjectID: 10000, IssueTypeID: "1"}

	r := a.ForEdit(context.Background(), decode(t, `{"update": {"comment": [{"add": {"body": "x"}}], "labels": [{"add": "l"}]}}`), issue)
	if r.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if r.ProjectID != 10000 || r.IssueTypeID != "1" {
		t.Errorf("side channel = (%d, %q)", r.ProjectID, r.IssueTypeID)
	}
	if !r.Params.RetainExisting {
		t.Error("edit must retain existing values")
	}

	r = a.ForEdit(context.Background(), decode(t, `{}`), issue)
	if msgs := r.Errors.Messages(); len(msgs) != 1 {
		t.Errorf("messages = %v", msgs)
	}
}

func TestForTransition(t *testing.T) {
	screens := &fakeScreens{transitions: map[int][]string{5: {"summary"}, 4: nil}}
	a := assembler.New(newRegistry(nil), newResolver(), screens)
	issue := &model.Issue{ID: 1, Key: "TST-1", ProjectID: 10000, IssueTypeID: "1"}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"no fields", `{"transition": {"id": "4"}}`, 0, ""},
		{"numeric id with fields", `{"transition": {"id": 5}, "fields": {"summary": "S"}}`, 0, ""},
		{"field not on screen", `{"transition": {"id": "4"}, "fields": {"summary": "S"}}`, 400, ""},
		{"missing transition", `{"fields": {"summary": "S"}}`, 400, "Missing 'transition' identifier"},
		{"unknown action", `{"transition": {"id": "99"}}`, 404, "Transition id '99' is not valid for this issue."},
		{"non numeric action", `{"transition": {"id": "x"}}`, 404, "Transition id 'x' is not valid for this issue."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.ForTransition(context.Background(), decode(t, tt.body), issue)
			if tt.wantStatus == 0 {
				if r.HasErrors() {
					t.Errorf("unexpected errors: %v", r.Errors)
				}
				return
			}
			if got := r.Errors.Status(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if tt.wantMsg != "" {
				msgs := r.Errors.Messages()
				if len(msgs) != 1 || msgs[0] != tt.wantMsg {
					t.Errorf("messages = %v, want %q", msgs, tt.wantMsg)
				}
			}
		})
	}
}

func TestFieldSet(t *testing.T) {
	s := assembler.NewFieldSet("a", "b", "a")
	w := s.With("c", "b")

	if got := s.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("IDs = %v", got)
	}
	if got := w.IDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("With IDs = %v", got)
	}
	if s.Contains("c") {
		t.Error("With must not modify the receiver")
	}
}
