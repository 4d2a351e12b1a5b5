package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	active       INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1))
);

CREATE TABLE IF NOT EXISTS priorities (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	sequence INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS resolutions (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS statuses (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT 'new' CHECK(category IN ('new', 'indeterminate', 'done'))
);

CREATE TABLE IF NOT EXISTS issue_types (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	subtask     INTEGER NOT NULL DEFAULT 0 CHECK(subtask IN (0, 1))
);

CREATE TABLE IF NOT EXISTS screens (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS screen_fields (
	screen_id INTEGER NOT NULL REFERENCES screens(id) ON DELETE CASCADE,
	field_id  TEXT NOT NULL,
	position  INTEGER NOT NULL,
	PRIMARY KEY (screen_id, field_id)
);

CREATE TABLE IF NOT EXISTS workflows (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	initial_status TEXT NOT NULL REFERENCES statuses(id)
);

CREATE TABLE IF NOT EXISTS workflow_actions (
	workflow_id INTEGER NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	id          INTEGER NOT NULL,
	name        TEXT NOT NULL,
	to_status   TEXT NOT NULL REFERENCES statuses(id),
	screen_id   INTEGER REFERENCES screens(id) ON DELETE SET NULL,
	PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS workflow_action_sources (
	workflow_id INTEGER NOT NULL,
	action_id   INTEGER NOT NULL,
	status_id   TEXT NOT NULL REFERENCES statuses(id),
	PRIMARY KEY (workflow_id, action_id, status_id),
	FOREIGN KEY (workflow_id, action_id)
		REFERENCES workflow_actions(workflow_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS projects (
	id          INTEGER PRIMARY KEY,
	project_key TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	lead        TEXT NOT NULL DEFAULT '',
	workflow_id INTEGER NOT NULL REFERENCES workflows(id),
	counter     INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS project_issue_types (
	project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	issue_type_id TEXT NOT NULL REFERENCES issue_types(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	PRIMARY KEY (project_id, issue_type_id)
);

CREATE TABLE IF NOT EXISTS components (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	UNIQUE(project_id, name)
);

CREATE TABLE IF NOT EXISTS versions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	released   INTEGER NOT NULL DEFAULT 0 CHECK(released IN (0, 1)),
	archived   INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1)),
	UNIQUE(project_id, name)
);

CREATE TABLE IF NOT EXISTS screen_assignments (
	project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	issue_type_id TEXT NOT NULL DEFAULT '',
	operation     TEXT NOT NULL CHECK(operation IN ('create', 'edit', 'view')),
	screen_id     INTEGER NOT NULL REFERENCES screens(id) ON DELETE CASCADE,
	PRIMARY KEY (project_id, issue_type_id, operation)
);

CREATE TABLE IF NOT EXISTS field_layout (
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	field_id   TEXT NOT NULL,
	hidden     INTEGER NOT NULL DEFAULT 0 CHECK(hidden IN (0, 1)),
	required   INTEGER NOT NULL DEFAULT 0 CHECK(required IN (0, 1)),
	PRIMARY KEY (project_id, field_id)
);

CREATE TABLE IF NOT EXISTS custom_fields (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK(kind IN ('text', 'number', 'select', 'labels')),
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS custom_field_options (
	id       TEXT PRIMARY KEY,
	field_id TEXT NOT NULL REFERENCES custom_fields(id) ON DELETE CASCADE,
	value    TEXT NOT NULL,
	UNIQUE(field_id, value)
);

CREATE TABLE IF NOT EXISTS issues (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_key     TEXT NOT NULL UNIQUE,
	project_id    INTEGER NOT NULL REFERENCES projects(id),
	issue_type_id TEXT NOT NULL REFERENCES issue_types(id),
	parent_id     INTEGER REFERENCES issues(id) ON DELETE CASCADE,
	status_id     TEXT NOT NULL REFERENCES statuses(id),
	summary       TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	environment   TEXT NOT NULL DEFAULT '',
	priority_id   TEXT NOT NULL DEFAULT '',
	resolution_id TEXT NOT NULL DEFAULT '',
	assignee      TEXT NOT NULL DEFAULT '',
	reporter      TEXT NOT NULL DEFAULT '',
	due_date      DATETIME,
	labels        TEXT NOT NULL DEFAULT '[]',
	components    TEXT NOT NULL DEFAULT '[]',
	fix_versions  TEXT NOT NULL DEFAULT '[]',
	versions      TEXT NOT NULL DEFAULT '[]',
	custom_fields TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	issue_id   INTEGER NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author     TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS change_groups (
	id         TEXT PRIMARY KEY,
	issue_id   INTEGER NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author     TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS change_items (
	group_id   TEXT NOT NULL REFERENCES change_groups(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	field      TEXT NOT NULL,
	from_value TEXT NOT NULL DEFAULT '',
	to_value   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (group_id, position)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_issues_project_id ON issues(project_id);
CREATE INDEX IF NOT EXISTS idx_issues_parent_id ON issues(parent_id);
CREATE INDEX IF NOT EXISTS idx_issues_status_id ON issues(status_id);
CREATE INDEX IF NOT EXISTS idx_comments_issue_id ON comments(issue_id);
CREATE INDEX IF NOT EXISTS idx_change_groups_issue_id ON change_groups(issue_id);
CREATE INDEX IF NOT EXISTS idx_screen_fields_position ON screen_fields(screen_id, position);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
