package assembler_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nhle/issue-rest/internal/assembler"
)

func TestRequestKeepsDocumentOrder(t *testing.T) {
	req := decode(t, `{
		"fields": {"zeta": 1, "alpha": "a", "mid": null},
		"update": {"labels": [{"add": "x"}, {"remove": "y"}], "comment": [{"add": {"body": "b"}}]},
		"transition": {"id": 31},
		"historyMetadata": {"type": "import"}
	}`)

	var ids []string
	for _, f := range req.Fields {
		ids = append(ids, f.ID)
	}
	if want := []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("fields order = %v, want %v", ids, want)
	}
	if len(req.Update) != 2 || req.Update[0].ID != "labels" || len(req.Update[0].Operations) != 2 {
		t.Errorf("update = %+v", req.Update)
	}
	if req.Update[0].Operations[1].Name != "remove" {
		t.Errorf("second labels op = %q", req.Update[0].Operations[1].Name)
	}
	if req.Transition == nil || req.Transition.ID != "31" {
		t.Errorf("transition = %+v", req.Transition)
	}
	if string(req.HistoryMetadata) != `{"type": "import"}` {
		t.Errorf("history metadata = %s", req.HistoryMetadata)
	}
}

func TestRequestRejectsMalformedOperations(t *testing.T) {
	for name, body := range map[string]string{
		"two names":       `{"update": {"labels": [{"add": "x", "remove": "y"}]}}`,
		"not a list":      `{"update": {"labels": {"add": "x"}}}`,
		"fields as array": `{"fields": ["summary"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			var req assembler.Request
			if err := json.Unmarshal([]byte(body), &req); err == nil {
				t.Errorf("expected error, got %+v", req)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	var req assembler.Request
	if err := req.SetField("summary", "S"); err != nil {
		t.Fatal(err)
	}
	if err := req.SetField("description", "D"); err != nil {
		t.Fatal(err)
	}
	if err := req.SetField("summary", "S2"); err != nil {
		t.Fatal(err)
	}
	if err := req.AddOperation("labels", "add", "a"); err != nil {
		t.Fatal(err)
	}
	if err := req.AddOperation("labels", "remove", "b"); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"fields":{"summary":"S2","description":"D"},"update":{"labels":[{"add":"a"},{"remove":"b"}]}}`
	if string(data) != want {
		t.Errorf("encoded = %s\nwant %s", data, want)
	}

	var back assembler.Request
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw, ok := back.Field("summary"); !ok || string(raw) != `"S2"` {
		t.Errorf("summary = %s", raw)
	}
}
