package assembler_test

import (
	"context"
	"fmt"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// recordingField accepts the configured operations and logs every Apply.
type recordingField struct {
	id      string
	ops     []string
	applied *[]string
}

func (f recordingField) ID() string           { return f.id }
func (f recordingField) Name() string         { return "Field " + f.id }
func (f recordingField) Schema() field.Schema { return field.Schema{Type: "string"} }

func (f recordingField) SupportedOperations() []string { return f.ops }

func (f recordingField) Apply(_ context.Context, _ field.IssueContext, params *field.Params, op field.Operation) *errcol.Collection {
	if f.applied != nil {
		*f.applied = append(*f.applied, f.id+":"+op.Name)
	}
	if string(op.Value) == `"bad"` {
		c := errcol.New()
		c.AddError(f.id, "bad value", errcol.ValidationFailed)
		return c
	}
	params.Values[f.id] = string(op.Value)
	return nil
}

// readOnlyField has no REST operations.
type readOnlyField struct{ id string }

func (f readOnlyField) ID() string           { return f.id }
func (f readOnlyField) Name() string         { return f.id }
func (f readOnlyField) Schema() field.Schema { return field.Schema{Type: "string"} }

type fakeRegistry map[string]field.Field

func (r fakeRegistry) Field(id string) (field.Field, bool) {
	f, ok := r[id]
	return f, ok
}

func newRegistry(applied *[]string) fakeRegistry {
	return fakeRegistry{
		"summary":  recordingField{id: "summary", ops: []string{field.OpSet}, applied: applied},
		"priority": recordingField{id: "priority", ops: []string{field.OpSet}, applied: applied},
		"labels":   recordingField{id: "labels", ops: []string{field.OpAdd, field.OpSet, field.OpRemove}, applied: applied},
		"comment":  recordingField{id: "comment", ops: []string{field.OpAdd}, applied: applied},
		"created":  readOnlyField{id: "created"},
	}
}

type fakeResolver struct {
	projects   map[int64]*model.Project
	issueTypes map[string]*model.IssueType

	// calls counts lookups per method name.
	calls map[string]int
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		projects: map[int64]*model.Project{
			10000: {ID: 10000, Key: "TST", Name: "Test", IssueTypeIDs: []string{"1", "10000"}},
		},
		issueTypes: map[string]*model.IssueType{
			"1":     {ID: "1", Name: "Bug"},
			"3":     {ID: "3", Name: "Task"},
			"10000": {ID: "10000", Name: "Story"},
		},
		calls: make(map[string]int),
	}
}

func (r *fakeResolver) GetProject(_ context.Context, id int64) (*model.Project, error) {
	r.calls["GetProject"]++
	if p, ok := r.projects[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %d: %w", id, store.ErrNotFound)
}

func (r *fakeResolver) GetProjectByKey(_ context.Context, key string) (*model.Project, error) {
	r.calls["GetProjectByKey"]++
	for _, p := range r.projects {
		if p.Key == key {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", key, store.ErrNotFound)
}

func (r *fakeResolver) GetIssueType(_ context.Context, id string) (*model.IssueType, error) {
	r.calls["GetIssueType"]++
	if it, ok := r.issueTypes[id]; ok {
		return it, nil
	}
	return nil, fmt.Errorf("issue type %s: %w", id, store.ErrNotFound)
}

func (r *fakeResolver) GetIssueTypeByName(_ context.Context, name string) (*model.IssueType, error) {
	r.calls["GetIssueTypeByName"]++
	for _, it := range r.issueTypes {
		if it.Name == name {
			return it, nil
		}
	}
	return nil, fmt.Errorf("issue type %s: %w", name, store.ErrNotFound)
}

type fakeScreens struct {
	create      []string
	edit        []string
	transitions map[int][]string
	err         error
}

func (s *fakeScreens) CreateFields(context.Context, int64, string) ([]string, error) {
	return s.create, s.err
}

func (s *fakeScreens) EditFields(context.Context, *model.Issue) ([]string, error) {
	return s.edit, s.err
}

func (s *fakeScreens) TransitionFields(_ context.Context, _ *model.Issue, actionID int) ([]string, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	ids, ok := s.transitions[actionID]
	return ids, ok, nil
}
