package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/issue-rest/internal/model"
)

const issueColumns = `id, issue_key, project_id, issue_type_id, parent_id, status_id,
	summary, description, environment, priority_id, resolution_id, assignee, reporter,
	due_date, labels, components, fix_versions, versions, custom_fields, created_at, updated_at`

// issueRow carries the JSON encoded multi-value columns next to the scalar
// ones.
type issueRow struct {
	model.Issue
	LabelsJSON       string `db:"labels"`
	ComponentsJSON   string `db:"components"`
	FixVersionsJSON  string `db:"fix_versions"`
	VersionsJSON     string `db:"versions"`
	CustomFieldsJSON string `db:"custom_fields"`
}

func (r *issueRow) decode() (*model.Issue, error) {
	is := r.Issue
	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"labels", r.LabelsJSON, &is.Labels},
		{"components", r.ComponentsJSON, &is.ComponentIDs},
		{"fix_versions", r.FixVersionsJSON, &is.FixVersionIDs},
		{"versions", r.VersionsJSON, &is.AffectsVersionIDs},
		{"custom_fields", r.CustomFieldsJSON, &is.CustomFields},
	} {
		if col.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("decoding %s of issue %s: %w", col.name, r.Key, err)
		}
	}
	return &is, nil
}

func encodeIssue(is *model.Issue) (issueRow, error) {
	row := issueRow{Issue: *is}
	var err error
	if row.LabelsJSON, err = marshalJSON(is.Labels, "[]"); err != nil {
		return row, fmt.Errorf("encoding labels: %w", err)
	}
	if row.ComponentsJSON, err = marshalJSON(is.ComponentIDs, "[]"); err != nil {
		return row, fmt.Errorf("encoding components: %w", err)
	}
	if row.FixVersionsJSON, err = marshalJSON(is.FixVersionIDs, "[]"); err != nil {
		return row, fmt.Errorf("encoding fix versions: %w", err)
	}
	if row.VersionsJSON, err = marshalJSON(is.AffectsVersionIDs, "[]"); err != nil {
		return row, fmt.Errorf("encoding versions: %w", err)
	}
	if row.CustomFieldsJSON, err = marshalJSON(is.CustomFields, "{}"); err != nil {
		return row, fmt.Errorf("encoding custom fields: %w", err)
	}
	return row, nil
}

// CreateIssue allocates the next key of the issue's project, inserts the
// issue and records its initial comments and history in one transaction.
// On success issue.ID and issue.Key are set.
func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *model.Issue, comments []model.Comment, history *model.ChangeGroup) error {
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = issue.CreatedAt

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var p struct {
			Key     string `db:"project_key"`
			Counter int64  `db:"counter"`
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE projects SET counter = counter + 1 WHERE id = ?", issue.ProjectID); err != nil {
			return fmt.Errorf("allocating issue number: %w", err)
		}
		if err := tx.GetContext(ctx, &p,
			"SELECT project_key, counter FROM projects WHERE id = ?", issue.ProjectID); err != nil {
			return notFound(err, fmt.Sprintf("project %d", issue.ProjectID))
		}
		issue.Key = fmt.Sprintf("%s-%d", p.Key, p.Counter)

		row, err := encodeIssue(issue)
		if err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO issues (issue_key, project_id, issue_type_id, parent_id, status_id,
				summary, description, environment, priority_id, resolution_id, assignee, reporter,
				due_date, labels, components, fix_versions, versions, custom_fields, created_at, updated_at)
			VALUES (:issue_key, :project_id, :issue_type_id, :parent_id, :status_id,
				:summary, :description, :environment, :priority_id, :resolution_id, :assignee, :reporter,
				:due_date, :labels, :components, :fix_versions, :versions, :custom_fields, :created_at, :updated_at)`,
			row,
		)
		if err != nil {
			return fmt.Errorf("creating issue %s: %w", issue.Key, err)
		}
		if issue.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading issue id: %w", err)
		}
		return addActivity(ctx, tx, issue.ID, comments, history)
	})
}

// UpdateIssue writes every column of an existing issue and records the
// comments and history of the change.
func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *model.Issue, comments []model.Comment, history *model.ChangeGroup) error {
	issue.UpdatedAt = time.Now().UTC()
	row, err := encodeIssue(issue)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE issues SET
				issue_type_id = :issue_type_id,
				parent_id = :parent_id,
				status_id = :status_id,
				summary = :summary,
				description = :description,
				environment = :environment,
				priority_id = :priority_id,
				resolution_id = :resolution_id,
				assignee = :assignee,
				reporter = :reporter,
				due_date = :due_date,
				labels = :labels,
				components = :components,
				fix_versions = :fix_versions,
				versions = :versions,
				custom_fields = :custom_fields,
				updated_at = :updated_at
			WHERE id = :id`,
			row,
		)
		if err != nil {
			return fmt.Errorf("updating issue %s: %w", issue.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("issue %s: %w", issue.Key, ErrNotFound)
		}
		return addActivity(ctx, tx, issue.ID, comments, history)
	})
}

func addActivity(ctx context.Context, tx *sqlx.Tx, issueID int64, comments []model.Comment, history *model.ChangeGroup) error {
	now := time.Now().UTC()
	for i := range comments {
		c := &comments[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.IssueID = issueID
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO comments (id, issue_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)",
			c.ID, issueID, c.Author, c.Body, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("adding comment: %w", err)
		}
	}

	if history == nil || len(history.Items) == 0 {
		return nil
	}
	if history.ID == "" {
		history.ID = uuid.New().String()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = now
	}
	history.IssueID = issueID
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO change_groups (id, issue_id, author, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		history.ID, issueID, history.Author, history.Metadata, history.CreatedAt,
	); err != nil {
		return fmt.Errorf("adding change group: %w", err)
	}
	for i, item := range history.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO change_items (group_id, position, field, from_value, to_value)
			VALUES (?, ?, ?, ?, ?)`,
			history.ID, i, item.Field, item.From, item.To,
		); err != nil {
			return fmt.Errorf("adding change item %s: %w", item.Field, err)
		}
	}
	return nil
}

// GetIssue retrieves an issue by numeric id.
func (s *SQLiteStore) GetIssue(ctx context.Context, id int64) (*model.Issue, error) {
	var row issueRow
	err := s.db.GetContext(ctx, &row, "SELECT "+issueColumns+" FROM issues WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("issue %d", id))
	}
	return row.decode()
}

// GetIssueByKey retrieves an issue by key. The lookup is case-insensitive.
func (s *SQLiteStore) GetIssueByKey(ctx context.Context, key string) (*model.Issue, error) {
	var row issueRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+issueColumns+" FROM issues WHERE upper(issue_key) = upper(?)", key)
	if err != nil {
		return nil, notFound(err, "issue "+key)
	}
	return row.decode()
}

// GetSubtasks lists the direct children of an issue.
func (s *SQLiteStore) GetSubtasks(ctx context.Context, parentID int64) ([]model.Issue, error) {
	var rows []issueRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+issueColumns+" FROM issues WHERE parent_id = ? ORDER BY id", parentID)
	if err != nil {
		return nil, fmt.Errorf("querying subtasks of %d: %w", parentID, err)
	}
	out := make([]model.Issue, 0, len(rows))
	for i := range rows {
		is, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		out = append(out, *is)
	}
	return out, nil
}

// DeleteIssue removes an issue. Subtasks, comments and history go with it.
func (s *SQLiteStore) DeleteIssue(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE parent_id = ?", id); err != nil {
			return fmt.Errorf("deleting subtasks of issue %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting issue %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("issue %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// GetComments lists the comments of an issue, oldest first.
func (s *SQLiteStore) GetComments(ctx context.Context, issueID int64) ([]model.Comment, error) {
	var out []model.Comment
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, issue_id, author, body, created_at FROM comments
		WHERE issue_id = ? ORDER BY created_at, rowid`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	return out, nil
}

// GetHistory lists the change groups of an issue, oldest first.
func (s *SQLiteStore) GetHistory(ctx context.Context, issueID int64) ([]model.ChangeGroup, error) {
	var groups []model.ChangeGroup
	err := s.db.SelectContext(ctx, &groups, `
		SELECT id, issue_id, author, metadata, created_at FROM change_groups
		WHERE issue_id = ? ORDER BY created_at, rowid`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	for i := range groups {
		err := s.db.SelectContext(ctx, &groups[i].Items, `
			SELECT group_id, field, from_value, to_value FROM change_items
			WHERE group_id = ? ORDER BY position`, groups[i].ID)
		if err != nil {
			return nil, fmt.Errorf("querying change items: %w", err)
		}
	}
	return groups, nil
}
