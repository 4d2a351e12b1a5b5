package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/issue-rest/internal/model"
)

// UpsertScreen inserts or renames a screen and replaces its field list.
func (s *SQLiteStore) UpsertScreen(ctx context.Context, sc model.Screen) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO screens (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			sc.ID, sc.Name,
		)
		if err != nil {
			return fmt.Errorf("upserting screen %s: %w", sc.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM screen_fields WHERE screen_id = ?", sc.ID); err != nil {
			return fmt.Errorf("clearing fields of screen %d: %w", sc.ID, err)
		}
		for i, fieldID := range sc.FieldIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO screen_fields (screen_id, field_id, position) VALUES (?, ?, ?)",
				sc.ID, fieldID, i,
			); err != nil {
				return fmt.Errorf("adding field %s to screen %d: %w", fieldID, sc.ID, err)
			}
		}
		return nil
	})
}

// GetScreen retrieves a screen and its ordered field ids.
func (s *SQLiteStore) GetScreen(ctx context.Context, id int64) (*model.Screen, error) {
	var sc model.Screen
	if err := s.db.GetContext(ctx, &sc, "SELECT id, name FROM screens WHERE id = ?", id); err != nil {
		return nil, notFound(err, fmt.Sprintf("screen %d", id))
	}
	err := s.db.SelectContext(ctx, &sc.FieldIDs,
		"SELECT field_id FROM screen_fields WHERE screen_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("querying fields of screen %d: %w", id, err)
	}
	return &sc, nil
}

// AssignScreen binds a screen to a project operation, optionally narrowed
// to one issue type.
func (s *SQLiteStore) AssignScreen(ctx context.Context, a model.ScreenAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO screen_assignments (project_id, issue_type_id, operation, screen_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, issue_type_id, operation) DO UPDATE SET screen_id = excluded.screen_id`,
		a.ProjectID, a.IssueTypeID, a.Operation, a.ScreenID,
	)
	if err != nil {
		return fmt.Errorf("assigning screen %d: %w", a.ScreenID, err)
	}
	return nil
}

// ScreenFor returns the screen shown for an operation on issues of the given
// project and issue type. An issue-type specific assignment wins over the
// project default.
func (s *SQLiteStore) ScreenFor(ctx context.Context, projectID int64, issueTypeID, operation string) (*model.Screen, error) {
	var screenID int64
	err := s.db.GetContext(ctx, &screenID, `
		SELECT screen_id FROM screen_assignments
		WHERE project_id = ? AND operation = ? AND issue_type_id IN (?, '')
		ORDER BY issue_type_id = '' LIMIT 1`,
		projectID, operation, issueTypeID,
	)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("%s screen of project %d", operation, projectID))
	}
	return s.GetScreen(ctx, screenID)
}

// SetFieldLayoutItem stores the hidden and required flags of a field.
func (s *SQLiteStore) SetFieldLayoutItem(ctx context.Context, item model.FieldLayoutItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO field_layout (project_id, field_id, hidden, required) VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, field_id) DO UPDATE SET
			hidden = excluded.hidden,
			required = excluded.required`,
		item.ProjectID, item.FieldID, boolToInt(item.Hidden), boolToInt(item.Required),
	)
	if err != nil {
		return fmt.Errorf("setting layout of field %s: %w", item.FieldID, err)
	}
	return nil
}

// GetFieldLayout returns the layout items of a project keyed by field id.
// Fields without an entry are visible and optional.
func (s *SQLiteStore) GetFieldLayout(ctx context.Context, projectID int64) (map[string]model.FieldLayoutItem, error) {
	var items []model.FieldLayoutItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT project_id, field_id, hidden, required FROM field_layout
		WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying field layout of project %d: %w", projectID, err)
	}
	out := make(map[string]model.FieldLayoutItem, len(items))
	for _, it := range items {
		out[it.FieldID] = it
	}
	return out, nil
}

// UpsertCustomField inserts or replaces a custom field and its options.
func (s *SQLiteStore) UpsertCustomField(ctx context.Context, cf model.CustomField) error {
	if !model.IsCustomField(cf.ID) {
		return fmt.Errorf("custom field id %q must start with %s", cf.ID, model.CustomFieldPrefix)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO custom_fields (id, name, kind, description) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				kind = excluded.kind,
				description = excluded.description`,
			cf.ID, cf.Name, cf.Kind, cf.Description,
		)
		if err != nil {
			return fmt.Errorf("upserting custom field %s: %w", cf.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM custom_field_options WHERE field_id = ?", cf.ID); err != nil {
			return fmt.Errorf("clearing options of %s: %w", cf.ID, err)
		}
		for _, opt := range cf.Options {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO custom_field_options (id, field_id, value) VALUES (?, ?, ?)",
				opt.ID, cf.ID, opt.Value,
			); err != nil {
				return fmt.Errorf("adding option %s to %s: %w", opt.Value, cf.ID, err)
			}
		}
		return nil
	})
}

// GetCustomField retrieves a custom field with its options.
func (s *SQLiteStore) GetCustomField(ctx context.Context, id string) (*model.CustomField, error) {
	var cf model.CustomField
	err := s.db.GetContext(ctx, &cf,
		"SELECT id, name, kind, description FROM custom_fields WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "custom field "+id)
	}
	if err := s.loadOptions(ctx, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// GetCustomFields lists every custom field with its options.
func (s *SQLiteStore) GetCustomFields(ctx context.Context) ([]model.CustomField, error) {
	var fields []model.CustomField
	err := s.db.SelectContext(ctx, &fields,
		"SELECT id, name, kind, description FROM custom_fields ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying custom fields: %w", err)
	}
	for i := range fields {
		if err := s.loadOptions(ctx, &fields[i]); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func (s *SQLiteStore) loadOptions(ctx context.Context, cf *model.CustomField) error {
	var opts []model.FieldOption
	err := s.db.SelectContext(ctx, &opts,
		"SELECT id, field_id, value FROM custom_field_options WHERE field_id = ? ORDER BY id", cf.ID)
	if err != nil {
		return fmt.Errorf("querying options of %s: %w", cf.ID, err)
	}
	cf.Options = opts
	return nil
}

// GetFieldOption retrieves an option of a select field by option id.
func (s *SQLiteStore) GetFieldOption(ctx context.Context, fieldID, optionID string) (*model.FieldOption, error) {
	var opt model.FieldOption
	err := s.db.GetContext(ctx, &opt,
		"SELECT id, field_id, value FROM custom_field_options WHERE field_id = ? AND id = ?",
		fieldID, optionID)
	if err != nil {
		return nil, notFound(err, "option "+optionID)
	}
	return &opt, nil
}

// GetFieldOptionByValue retrieves an option of a select field by value.
func (s *SQLiteStore) GetFieldOptionByValue(ctx context.Context, fieldID, value string) (*model.FieldOption, error) {
	var opt model.FieldOption
	err := s.db.GetContext(ctx, &opt,
		"SELECT id, field_id, value FROM custom_field_options WHERE field_id = ? AND value = ?",
		fieldID, value)
	if err != nil {
		return nil, notFound(err, "option "+value)
	}
	return &opt, nil
}
