package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/issue-rest/internal/model"
)

// UpsertWorkflow inserts or replaces a workflow together with its actions.
func (s *SQLiteStore) UpsertWorkflow(ctx context.Context, wf model.Workflow) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflows (id, name, initial_status) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				initial_status = excluded.initial_status`,
			wf.ID, wf.Name, wf.InitialStatus,
		)
		if err != nil {
			return fmt.Errorf("upserting workflow %s: %w", wf.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM workflow_actions WHERE workflow_id = ?", wf.ID); err != nil {
			return fmt.Errorf("clearing actions of workflow %d: %w", wf.ID, err)
		}
		for _, a := range wf.Actions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_actions (workflow_id, id, name, to_status, screen_id)
				VALUES (?, ?, ?, ?, ?)`,
				wf.ID, a.ID, a.Name, a.ToStatus, a.ScreenID,
			); err != nil {
				return fmt.Errorf("adding action %d to workflow %d: %w", a.ID, wf.ID, err)
			}
			for _, from := range a.FromStatuses {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO workflow_action_sources (workflow_id, action_id, status_id)
					VALUES (?, ?, ?)`,
					wf.ID, a.ID, from,
				); err != nil {
					return fmt.Errorf("adding source %s to action %d: %w", from, a.ID, err)
				}
			}
		}
		return nil
	})
}

// GetWorkflow retrieves a workflow with its actions ordered by id.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id int64) (*model.Workflow, error) {
	var wf model.Workflow
	err := s.db.GetContext(ctx, &wf,
		"SELECT id, name, initial_status FROM workflows WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("workflow %d", id))
	}

	err = s.db.SelectContext(ctx, &wf.Actions, `
		SELECT workflow_id, id, name, to_status, screen_id FROM workflow_actions
		WHERE workflow_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying actions of workflow %d: %w", id, err)
	}

	var sources []struct {
		ActionID int    `db:"action_id"`
		StatusID string `db:"status_id"`
	}
	err = s.db.SelectContext(ctx, &sources, `
		SELECT action_id, status_id FROM workflow_action_sources
		WHERE workflow_id = ? ORDER BY action_id, status_id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying action sources of workflow %d: %w", id, err)
	}
	for _, src := range sources {
		if a := wf.Action(src.ActionID); a != nil {
			a.FromStatuses = append(a.FromStatuses, src.StatusID)
		}
	}
	return &wf, nil
}
