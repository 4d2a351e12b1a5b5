package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/logging"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/tests/testutil"
)

const createMetaJSON = `{
  "projects": [{
    "id": "10100", "key": "OPS", "name": "Operations",
    "issuetypes": [{
      "id": "3", "name": "Task", "subtask": false,
      "fields": {
        "summary": {"name": "Summary", "required": true, "schema": {"type": "string", "system": "summary"}},
        "project": {"name": "Project", "required": true, "schema": {"type": "project", "system": "project"}},
        "issuetype": {"name": "Issue Type", "required": true, "schema": {"type": "issuetype", "system": "issuetype"}},
        "customfield_10050": {
          "name": "Impact", "required": false,
          "schema": {"type": "option", "custom": "com.atlassian.jira.plugin.system.customfieldtypes:select", "customId": 10050},
          "allowedValues": [{"id": "20001", "value": "High"}, {"id": "20002", "value": "Low"}]
        }
      }
    }]
  }]
}`

const prioritiesJSON = `[{"id": "1", "name": "Highest"}, {"id": "2", "name": "Medium"}, {"id": "3", "name": "Lowest"}]`

func newRemote(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer pat" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rest/api/2/priority":
			w.Write([]byte(prioritiesJSON))
		case "/rest/api/2/issue/createmeta":
			if r.URL.Query().Get("projectKeys") != "OPS" {
				t.Errorf("projectKeys = %q", r.URL.Query().Get("projectKeys"))
			}
			w.Write([]byte(createMetaJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errorMessages": ["no such resource"], "errors": {}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	srv := newRemote(t)
	st := testutil.NewSeededStore(t)

	im := NewImporter(NewClient(srv.URL+"/", "pat"), st, []string{"OPS"}, 1, logging.Discard())
	sum, err := im.Import(ctx)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	want := Summary{Projects: 1, IssueTypes: 1, CustomFields: 1, Priorities: 3}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	p, err := st.GetProjectByKey(ctx, "OPS")
	if err != nil {
		t.Fatalf("GetProjectByKey: %v", err)
	}
	if p.ID != 10100 || p.WorkflowID != 1 || !reflect.DeepEqual(p.IssueTypeIDs, []string{"3"}) {
		t.Errorf("project = %+v", p)
	}

	sc, err := st.ScreenFor(ctx, 10100, "3", model.ScreenOperationCreate)
	if err != nil {
		t.Fatalf("ScreenFor: %v", err)
	}
	if want := []string{"summary", "issuetype", "customfield_10050"}; !reflect.DeepEqual(sc.FieldIDs, want) {
		t.Errorf("screen fields = %v, want %v", sc.FieldIDs, want)
	}

	layout, err := st.GetFieldLayout(ctx, 10100)
	if err != nil {
		t.Fatal(err)
	}
	if !layout["summary"].Required || layout["customfield_10050"].Required {
		t.Errorf("layout = %+v", layout)
	}

	cf, err := st.GetCustomField(ctx, "customfield_10050")
	if err != nil {
		t.Fatal(err)
	}
	if cf.Kind != model.CustomFieldSelect || len(cf.Options) != 2 {
		t.Errorf("custom field = %+v", cf)
	}

	prio, err := st.GetPriority(ctx, "3")
	if err != nil || prio.Name != "Lowest" || prio.Sequence != 3 {
		t.Errorf("priority 3 = %+v, %v", prio, err)
	}

	// A second run updates in place.
	if _, err := im.Import(ctx); err != nil {
		t.Fatalf("second Import: %v", err)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	srv := newRemote(t)

	_, err := NewClient(srv.URL, "wrong").Priorities(ctx)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad token: err = %v", err)
	}

	err = NewClient(srv.URL, "pat").get(ctx, "/rest/api/2/missing", nil)
	var coll *errcol.Collection
	if !errors.As(err, &coll) || coll.Status() != http.StatusNotFound {
		t.Fatalf("missing resource: err = %v", err)
	}
	if got := coll.Messages(); len(got) != 1 || got[0] != "no such resource" {
		t.Errorf("messages = %v", got)
	}
}

func TestClientRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(prioritiesJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "pat")
	var waits []time.Duration
	c.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	ps, err := c.Priorities(context.Background())
	if err != nil {
		t.Fatalf("Priorities: %v", err)
	}
	if len(ps) != 3 || calls != 3 {
		t.Errorf("priorities = %d after %d calls", len(ps), calls)
	}
	if want := []time.Duration{7 * time.Second, 7 * time.Second}; !reflect.DeepEqual(waits, want) {
		t.Errorf("waits = %v, want %v", waits, want)
	}
}

func TestCustomKind(t *testing.T) {
	tests := []struct {
		schema FieldSchema
		want   string
	}{
		{FieldSchema{Type: "number", Custom: "com.atlassian.jira.plugin.system.customfieldtypes:float"}, model.CustomFieldNumber},
		{FieldSchema{Type: "option", Custom: "issue-rest:select"}, model.CustomFieldSelect},
		{FieldSchema{Type: "array", Items: "string", Custom: "vendor:tags"}, model.CustomFieldLabels},
		{FieldSchema{Type: "string", Custom: "com.atlassian.jira.plugin.system.customfieldtypes:textarea"}, model.CustomFieldText},
		{FieldSchema{Type: "datetime", Custom: "vendor:datetime"}, model.CustomFieldText},
	}
	for _, tt := range tests {
		if got := customKind(tt.schema); got != tt.want {
			t.Errorf("customKind(%+v) = %q, want %q", tt.schema, got, tt.want)
		}
	}
}
