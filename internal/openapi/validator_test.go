package openapi

import (
	"context"
	"reflect"
	"testing"
)

func TestLoad(t *testing.T) {
	v, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{
		"createIssue", "createIssues", "deleteIssue", "doTransition", "editIssue",
		"getAllProjects", "getCreateIssueMeta", "getEditIssueMeta", "getIssue",
		"getProject", "getTransitions",
	}
	if got := v.Operations(); !reflect.DeepEqual(got, want) {
		t.Errorf("operations = %v\nwant %v", got, want)
	}
}

func TestValidateBody(t *testing.T) {
	v, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name    string
		op      string
		body    string
		wantErr bool
	}{
		{"create", "createIssue", `{"fields": {"summary": "x"}}`, false},
		{"create with update", "createIssue", `{"update": {"labels": [{"add": "a"}]}}`, false},
		{"operation with two names", "createIssue", `{"update": {"labels": [{"add": "a", "set": ["b"]}]}}`, true},
		{"update not a list", "editIssue", `{"update": {"labels": {"add": "a"}}}`, true},
		{"fields not an object", "editIssue", `{"fields": []}`, true},
		{"not json", "createIssue", `{`, true},
		{"bulk without issueUpdates", "createIssues", `{}`, true},
		{"transition", "doTransition", `{"transition": {"id": "5"}}`, false},
		{"transition without id", "doTransition", `{"transition": {}}`, true},
		{"no body schema", "getIssue", `anything`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateBody(tt.op, []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBody() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
