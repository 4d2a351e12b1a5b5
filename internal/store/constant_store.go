package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/issue-rest/internal/model"
)

// UpsertUser inserts or replaces a user.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u model.User) error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("user name must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, display_name, email, active) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			active = excluded.active`,
		u.Name, u.DisplayName, u.Email, boolToInt(u.Active),
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.Name, err)
	}
	return nil
}

// GetUser retrieves a user by login name.
func (s *SQLiteStore) GetUser(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		"SELECT name, display_name, email, active FROM users WHERE name = ?", name)
	if err != nil {
		return nil, notFound(err, "user "+name)
	}
	return &u, nil
}

// GetUserByEmail retrieves the first active user with the address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `
		SELECT name, display_name, email, active FROM users
		WHERE lower(email) = lower(?) AND active = 1
		ORDER BY name LIMIT 1`, email)
	if err != nil {
		return nil, notFound(err, "user with email "+email)
	}
	return &u, nil
}

// UpsertPriority inserts or replaces a priority.
func (s *SQLiteStore) UpsertPriority(ctx context.Context, p model.Priority) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO priorities (id, name, sequence) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, sequence = excluded.sequence`,
		p.ID, p.Name, p.Sequence,
	)
	if err != nil {
		return fmt.Errorf("upserting priority %s: %w", p.ID, err)
	}
	return nil
}

// GetPriority retrieves a priority by id.
func (s *SQLiteStore) GetPriority(ctx context.Context, id string) (*model.Priority, error) {
	var p model.Priority
	err := s.db.GetContext(ctx, &p,
		"SELECT id, name, sequence FROM priorities WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "priority "+id)
	}
	return &p, nil
}

// GetPriorityByName retrieves a priority by its display name.
func (s *SQLiteStore) GetPriorityByName(ctx context.Context, name string) (*model.Priority, error) {
	var p model.Priority
	err := s.db.GetContext(ctx, &p,
		"SELECT id, name, sequence FROM priorities WHERE name = ?", name)
	if err != nil {
		return nil, notFound(err, "priority "+name)
	}
	return &p, nil
}

// GetPriorities lists priorities from most to least urgent.
func (s *SQLiteStore) GetPriorities(ctx context.Context) ([]model.Priority, error) {
	var out []model.Priority
	err := s.db.SelectContext(ctx, &out,
		"SELECT id, name, sequence FROM priorities ORDER BY sequence, id")
	if err != nil {
		return nil, fmt.Errorf("querying priorities: %w", err)
	}
	return out, nil
}

// UpsertResolution inserts or replaces a resolution.
func (s *SQLiteStore) UpsertResolution(ctx context.Context, r model.Resolution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		r.ID, r.Name,
	)
	if err != nil {
		return fmt.Errorf("upserting resolution %s: %w", r.ID, err)
	}
	return nil
}

// GetResolution retrieves a resolution by id.
func (s *SQLiteStore) GetResolution(ctx context.Context, id string) (*model.Resolution, error) {
	var r model.Resolution
	err := s.db.GetContext(ctx, &r, "SELECT id, name FROM resolutions WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "resolution "+id)
	}
	return &r, nil
}

// GetResolutionByName retrieves a resolution by its display name.
func (s *SQLiteStore) GetResolutionByName(ctx context.Context, name string) (*model.Resolution, error) {
	var r model.Resolution
	err := s.db.GetContext(ctx, &r, "SELECT id, name FROM resolutions WHERE name = ?", name)
	if err != nil {
		return nil, notFound(err, "resolution "+name)
	}
	return &r, nil
}

// GetResolutions lists all resolutions.
func (s *SQLiteStore) GetResolutions(ctx context.Context) ([]model.Resolution, error) {
	var out []model.Resolution
	if err := s.db.SelectContext(ctx, &out, "SELECT id, name FROM resolutions ORDER BY id"); err != nil {
		return nil, fmt.Errorf("querying resolutions: %w", err)
	}
	return out, nil
}

// UpsertStatus inserts or replaces a workflow status.
func (s *SQLiteStore) UpsertStatus(ctx context.Context, st model.Status) error {
	if st.Category == "" {
		st.Category = model.CategoryNew
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statuses (id, name, category) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category`,
		st.ID, st.Name, st.Category,
	)
	if err != nil {
		return fmt.Errorf("upserting status %s: %w", st.ID, err)
	}
	return nil
}

// GetStatus retrieves a status by id.
func (s *SQLiteStore) GetStatus(ctx context.Context, id string) (*model.Status, error) {
	var st model.Status
	err := s.db.GetContext(ctx, &st, "SELECT id, name, category FROM statuses WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "status "+id)
	}
	return &st, nil
}

// UpsertIssueType inserts or replaces an issue type.
func (s *SQLiteStore) UpsertIssueType(ctx context.Context, it model.IssueType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_types (id, name, description, subtask) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			subtask = excluded.subtask`,
		it.ID, it.Name, it.Description, boolToInt(it.Subtask),
	)
	if err != nil {
		return fmt.Errorf("upserting issue type %s: %w", it.ID, err)
	}
	return nil
}

// GetIssueType retrieves an issue type by id.
func (s *SQLiteStore) GetIssueType(ctx context.Context, id string) (*model.IssueType, error) {
	var it model.IssueType
	err := s.db.GetContext(ctx, &it,
		"SELECT id, name, description, subtask FROM issue_types WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "issue type "+id)
	}
	return &it, nil
}

// GetIssueTypeByName retrieves an issue type by its display name.
func (s *SQLiteStore) GetIssueTypeByName(ctx context.Context, name string) (*model.IssueType, error) {
	var it model.IssueType
	err := s.db.GetContext(ctx, &it,
		"SELECT id, name, description, subtask FROM issue_types WHERE name = ?", name)
	if err != nil {
		return nil, notFound(err, "issue type "+name)
	}
	return &it, nil
}

// GetIssueTypes lists all issue types.
func (s *SQLiteStore) GetIssueTypes(ctx context.Context) ([]model.IssueType, error) {
	var out []model.IssueType
	err := s.db.SelectContext(ctx, &out,
		"SELECT id, name, description, subtask FROM issue_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying issue types: %w", err)
	}
	return out, nil
}
