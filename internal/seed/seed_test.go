package seed_test

import (
	"context"
	"testing"

	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/seed"
	"github.com/nhle/issue-rest/tests/testutil"
)

func TestParse(t *testing.T) {
	f, err := seed.Parse([]byte(`
priorities:
  - {id: "1", name: High}
projects:
  - id: 7
    key: ABC
    name: Alpha
    issue_types: ["1"]
    screens:
      - {create: 2}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Priorities) != 1 || f.Priorities[0].Name != "High" {
		t.Errorf("priorities = %+v", f.Priorities)
	}
	if len(f.Projects) != 1 || f.Projects[0].Screens[0].Create != 2 {
		t.Errorf("projects = %+v", f.Projects)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := seed.Parse([]byte("projects: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestApplyDefault(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSeededStore(t)

	p, err := st.GetProjectByKey(ctx, "TST")
	if err != nil {
		t.Fatalf("GetProjectByKey: %v", err)
	}
	if !p.HasIssueType("1") || p.HasIssueType("2") {
		t.Errorf("issue types = %v", p.IssueTypeIDs)
	}

	prios, err := st.GetPriorities(ctx)
	if err != nil {
		t.Fatalf("GetPriorities: %v", err)
	}
	if len(prios) != 5 || prios[0].Name != "Blocker" {
		t.Errorf("priorities = %+v", prios)
	}

	sc, err := st.ScreenFor(ctx, p.ID, "1", model.ScreenOperationCreate)
	if err != nil {
		t.Fatalf("ScreenFor bug: %v", err)
	}
	if sc.ID != 3 {
		t.Errorf("bug create screen = %d, want 3", sc.ID)
	}
	sc, err = st.ScreenFor(ctx, p.ID, "3", model.ScreenOperationCreate)
	if err != nil {
		t.Fatalf("ScreenFor task: %v", err)
	}
	if sc.ID != 1 {
		t.Errorf("task create screen = %d, want 1", sc.ID)
	}

	layout, err := st.GetFieldLayout(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetFieldLayout: %v", err)
	}
	if !layout[model.FieldReporter].Required {
		t.Error("reporter should be required")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSeededStore(t)

	f, err := seed.Default()
	if err != nil {
		t.Fatal(err)
	}
	if err := seed.Apply(ctx, st, f); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	comps, err := st.GetComponents(ctx, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if len(comps) != 2 {
		t.Errorf("components = %d, want 2", len(comps))
	}
	versions, err := st.GetVersions(ctx, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Errorf("versions = %d, want 2", len(versions))
	}
}
