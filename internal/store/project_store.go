package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/issue-rest/internal/model"
)

const projectColumns = "id, project_key, name, description, lead, workflow_id, counter, created_at"

// UpsertProject inserts a project or updates its descriptive columns. The
// issue key counter of an existing project is left untouched.
func (s *SQLiteStore) UpsertProject(ctx context.Context, p model.Project) error {
	if strings.TrimSpace(p.Key) == "" {
		return fmt.Errorf("project key must not be empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, project_key, name, description, lead, workflow_id, counter, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(id) DO UPDATE SET
				project_key = excluded.project_key,
				name = excluded.name,
				description = excluded.description,
				lead = excluded.lead,
				workflow_id = excluded.workflow_id`,
			p.ID, p.Key, p.Name, p.Description, p.Lead, p.WorkflowID, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting project %s: %w", p.Key, err)
		}
		if p.IssueTypeIDs != nil {
			return setProjectIssueTypes(ctx, tx, p.ID, p.IssueTypeIDs)
		}
		return nil
	})
}

// SetProjectIssueTypes replaces the project's issue type scheme.
func (s *SQLiteStore) SetProjectIssueTypes(ctx context.Context, projectID int64, issueTypeIDs []string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return setProjectIssueTypes(ctx, tx, projectID, issueTypeIDs)
	})
}

func setProjectIssueTypes(ctx context.Context, tx *sqlx.Tx, projectID int64, issueTypeIDs []string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM project_issue_types WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clearing issue types of project %d: %w", projectID, err)
	}
	for i, id := range issueTypeIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_issue_types (project_id, issue_type_id, position) VALUES (?, ?, ?)",
			projectID, id, i,
		); err != nil {
			return fmt.Errorf("adding issue type %s to project %d: %w", id, projectID, err)
		}
	}
	return nil
}

// GetProject retrieves a project by numeric id.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("project %d", id))
	}
	if err := s.loadIssueTypeIDs(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProjectByKey retrieves a project by key. The lookup is case-insensitive.
func (s *SQLiteStore) GetProjectByKey(ctx context.Context, key string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p,
		"SELECT "+projectColumns+" FROM projects WHERE upper(project_key) = upper(?)", key)
	if err != nil {
		return nil, notFound(err, "project "+key)
	}
	if err := s.loadIssueTypeIDs(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProjects lists all projects ordered by key.
func (s *SQLiteStore) GetProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := s.db.SelectContext(ctx, &projects,
		"SELECT "+projectColumns+" FROM projects ORDER BY project_key")
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	for i := range projects {
		if err := s.loadIssueTypeIDs(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *SQLiteStore) loadIssueTypeIDs(ctx context.Context, p *model.Project) error {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT issue_type_id FROM project_issue_types WHERE project_id = ? ORDER BY position", p.ID)
	if err != nil {
		return fmt.Errorf("querying issue types of project %s: %w", p.Key, err)
	}
	p.IssueTypeIDs = ids
	return nil
}

// CreateComponent inserts a component and returns it with its id assigned.
func (s *SQLiteStore) CreateComponent(ctx context.Context, c model.Component) (*model.Component, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("component name must not be empty")
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO components (project_id, name, description) VALUES (?, ?, ?)",
		c.ProjectID, c.Name, c.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("creating component %s: %w", c.Name, err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading component id: %w", err)
	}
	return &c, nil
}

// GetComponent retrieves a component by id.
func (s *SQLiteStore) GetComponent(ctx context.Context, id int64) (*model.Component, error) {
	var c model.Component
	err := s.db.GetContext(ctx, &c,
		"SELECT id, project_id, name, description FROM components WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("component %d", id))
	}
	return &c, nil
}

// GetComponentByName retrieves a component of a project by name.
func (s *SQLiteStore) GetComponentByName(ctx context.Context, projectID int64, name string) (*model.Component, error) {
	var c model.Component
	err := s.db.GetContext(ctx, &c, `
		SELECT id, project_id, name, description FROM components
		WHERE project_id = ? AND name = ?`, projectID, name)
	if err != nil {
		return nil, notFound(err, "component "+name)
	}
	return &c, nil
}

// GetComponents lists the components of a project.
func (s *SQLiteStore) GetComponents(ctx context.Context, projectID int64) ([]model.Component, error) {
	var out []model.Component
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, project_id, name, description FROM components
		WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying components: %w", err)
	}
	return out, nil
}

// CreateVersion inserts a version and returns it with its id assigned.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v model.Version) (*model.Version, error) {
	if strings.TrimSpace(v.Name) == "" {
		return nil, fmt.Errorf("version name must not be empty")
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO versions (project_id, name, released, archived) VALUES (?, ?, ?, ?)",
		v.ProjectID, v.Name, boolToInt(v.Released), boolToInt(v.Archived),
	)
	if err != nil {
		return nil, fmt.Errorf("creating version %s: %w", v.Name, err)
	}
	v.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading version id: %w", err)
	}
	return &v, nil
}

// GetVersion retrieves a version by id.
func (s *SQLiteStore) GetVersion(ctx context.Context, id int64) (*model.Version, error) {
	var v model.Version
	err := s.db.GetContext(ctx, &v,
		"SELECT id, project_id, name, released, archived FROM versions WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("version %d", id))
	}
	return &v, nil
}

// GetVersionByName retrieves a version of a project by name.
func (s *SQLiteStore) GetVersionByName(ctx context.Context, projectID int64, name string) (*model.Version, error) {
	var v model.Version
	err := s.db.GetContext(ctx, &v, `
		SELECT id, project_id, name, released, archived FROM versions
		WHERE project_id = ? AND name = ?`, projectID, name)
	if err != nil {
		return nil, notFound(err, "version "+name)
	}
	return &v, nil
}

// GetVersions lists the versions of a project.
func (s *SQLiteStore) GetVersions(ctx context.Context, projectID int64) ([]model.Version, error) {
	var out []model.Version
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, project_id, name, released, archived FROM versions
		WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	return out, nil
}
