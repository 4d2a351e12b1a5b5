package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/seed"
	"github.com/nhle/issue-rest/internal/store"
	"github.com/nhle/issue-rest/tests/testutil"
)

func TestFileStoreConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSeededFileStore(t)

	const n = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		keys = make(map[string]bool)
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			is := newIssue(fmt.Sprintf("issue %d", i))
			err := st.CreateIssue(ctx, is, []model.Comment{{Author: "admin", Body: "filed"}}, nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			keys[is.Key] = true
		}(i)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("%d of %d creates failed, first: %v", len(errs), n, errs[0])
	}
	if len(keys) != n {
		t.Errorf("got %d distinct keys, want %d", len(keys), n)
	}
	for i := 1; i <= n; i++ {
		if !keys[fmt.Sprintf("TST-%d", i)] {
			t.Errorf("key TST-%d not allocated", i)
		}
	}
}

func TestFileStoreEnforcesForeignKeys(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSeededFileStore(t)

	// Spread the inserts over several pooled connections.
	var wg sync.WaitGroup
	failures := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			is := newIssue("unknown type")
			is.IssueTypeID = "999"
			failures <- st.CreateIssue(ctx, is, nil, nil)
		}()
	}
	wg.Wait()
	close(failures)

	for err := range failures {
		if err == nil {
			t.Error("CreateIssue with unknown issue type succeeded")
		}
	}
}

func TestFileStoreDeletesSubtasksAcrossConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "issues.db")

	writer, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	f, err := seed.Default()
	if err != nil {
		t.Fatal(err)
	}
	if err := seed.Apply(ctx, writer, f); err != nil {
		t.Fatal(err)
	}

	parent := newIssue("parent")
	if err := writer.CreateIssue(ctx, parent, nil, nil); err != nil {
		t.Fatal(err)
	}
	child := newIssue("child")
	child.IssueTypeID = "5"
	child.ParentID = &parent.ID
	comments := []model.Comment{{Author: "admin", Body: "on the child"}}
	if err := writer.CreateIssue(ctx, child, comments, nil); err != nil {
		t.Fatal(err)
	}

	// A second store on the same file deletes while the first stays open.
	other, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()

	if err := other.DeleteIssue(ctx, parent.ID); err != nil {
		t.Fatalf("DeleteIssue: %v", err)
	}

	if _, err := writer.GetIssue(ctx, child.ID); !store.IsNotFound(err) {
		t.Errorf("subtask still present: %v", err)
	}
	subs, err := writer.GetSubtasks(ctx, parent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Errorf("subtasks = %+v, want none", subs)
	}
	cs, err := writer.GetComments(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Errorf("comments of deleted subtask = %+v", cs)
	}
}
