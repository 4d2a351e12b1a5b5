package errcol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWorstReasonDecidesStatus(t *testing.T) {
	tests := []struct {
		name    string
		reasons []Reason
		want    int
	}{
		{"none", nil, http.StatusBadRequest},
		{"validation", []Reason{ValidationFailed}, http.StatusBadRequest},
		{"not found wins", []Reason{ValidationFailed, NotFound}, http.StatusNotFound},
		{"forbidden wins", []Reason{NotFound, Forbidden}, http.StatusForbidden},
		{"server error wins", []Reason{Forbidden, ServerError, Conflict}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.AddErrorMessage("problem", tt.reasons...)
			if got := c.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddAll(t *testing.T) {
	a := New()
	a.AddError("summary", "first", ValidationFailed)
	b := New()
	b.AddError("summary", "second")
	b.AddErrorMessage("general", NotFound)

	a.AddAll(b)
	a.AddAll(nil)

	if msg, _ := a.FieldError("summary"); msg != "second" {
		t.Errorf("summary = %q, want the later error", msg)
	}
	if len(a.Messages()) != 1 || a.WorstReason() != NotFound {
		t.Errorf("merged = %v, %v", a.Messages(), a.Reasons())
	}
}

func TestBodyJSON(t *testing.T) {
	data, err := json.Marshal(New())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"errorMessages":[],"errors":{}}` {
		t.Errorf("empty body = %s", data)
	}

	c := New()
	c.AddError("priority", "bad")
	c.AddErrorMessage("oops")
	var b Body
	if err := json.Unmarshal(mustJSON(t, c), &b); err != nil {
		t.Fatal(err)
	}
	back := FromBody(b, Conflict)
	if back.Status() != http.StatusConflict || back.Error() != "oops; priority: bad" {
		t.Errorf("round trip = %q (%d)", back.Error(), back.Status())
	}
}

func TestCollectionAsError(t *testing.T) {
	var err error = fmt.Errorf("creating: %w", Of("Issue Does Not Exist", NotFound))

	var c *Collection
	if !errors.As(err, &c) || c.Status() != http.StatusNotFound {
		t.Errorf("errors.As failed for %v", err)
	}
	var nilColl *Collection
	if nilColl.HasAnyErrors() || nilColl.Messages() != nil {
		t.Error("nil collection should be empty")
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
