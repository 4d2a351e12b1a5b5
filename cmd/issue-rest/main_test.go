package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nhle/issue-rest/internal/logging"
	"github.com/nhle/issue-rest/tests/testutil"
)

func TestBootstrapAppliesBuiltInSeedOnce(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)

	if err := bootstrap(ctx, st, "", logging.Discard()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	p, err := st.GetProjectByKey(ctx, "TST")
	if err != nil {
		t.Fatalf("built-in project missing: %v", err)
	}

	// A second start leaves existing data alone.
	if err := bootstrap(ctx, st, "", logging.Discard()); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	again, err := st.GetProjectByKey(ctx, "TST")
	if err != nil || again.ID != p.ID {
		t.Errorf("project after second bootstrap = %+v, %v", again, err)
	}
}

func TestBootstrapSeedFile(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	data := []byte(`users:
  - {name: ops, display_name: Ops}
statuses:
  - {id: "1", name: Open, category: new}
issue_types:
  - {id: "3", name: Task}
workflows:
  - {id: 7, name: Simple, initial_status: "1"}
projects:
  - {id: 20000, key: OPS, name: Operations, lead: ops, workflow: 7, issue_types: ["3"]}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := bootstrap(ctx, st, path, logging.Discard()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := st.GetProjectByKey(ctx, "OPS"); err != nil {
		t.Errorf("seeded project missing: %v", err)
	}
	if _, err := st.GetProjectByKey(ctx, "TST"); err == nil {
		t.Error("built-in seed applied alongside a seed file")
	}
}

func TestValidSecret(t *testing.T) {
	if got, err := validSecret("s3cret\r\n"); err != nil || got != "s3cret" {
		t.Errorf("validSecret = %q, %v", got, err)
	}
	if _, err := validSecret("\n"); err == nil {
		t.Error("empty secret accepted")
	}
}
