package model

// Screen operations a screen can be assigned to.
const (
	ScreenOperationCreate = "create"
	ScreenOperationEdit   = "edit"
	ScreenOperationView   = "view"
)

// Screen is an ordered list of fields shown for an operation.
type Screen struct {
	ID       int64    `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	FieldIDs []string `json:"fields" db:"-"`
}

// ScreenAssignment maps a project, optionally narrowed to one issue type,
// and an operation to a screen. An empty IssueTypeID is the project default.
type ScreenAssignment struct {
	ProjectID   int64  `json:"projectId" db:"project_id"`
	IssueTypeID string `json:"issueTypeId" db:"issue_type_id"`
	Operation   string `json:"operation" db:"operation"`
	ScreenID    int64  `json:"screenId" db:"screen_id"`
}

// FieldLayoutItem carries per-project field configuration.
type FieldLayoutItem struct {
	ProjectID int64  `json:"projectId" db:"project_id"`
	FieldID   string `json:"fieldId" db:"field_id"`
	Hidden    bool   `json:"hidden" db:"hidden"`
	Required  bool   `json:"required" db:"required"`
}

// Custom field kinds.
const (
	CustomFieldText   = "text"
	CustomFieldNumber = "number"
	CustomFieldSelect = "select"
	CustomFieldLabels = "labels"
)

// CustomField is an administrator-defined field with id customfield_<n>.
type CustomField struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Kind        string `json:"kind" db:"kind"`
	Description string `json:"description" db:"description"`

	// Options holds the allowed values of select fields.
	Options []FieldOption `json:"options,omitempty" db:"-"`
}

// FieldOption is one allowed value of a select custom field.
type FieldOption struct {
	ID      string `json:"id" db:"id"`
	FieldID string `json:"-" db:"field_id"`
	Value   string `json:"value" db:"value"`
}
