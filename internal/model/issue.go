package model

import (
	"strings"
	"time"
)

// System field ids.
const (
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldEnvironment = "environment"
	FieldPriority    = "priority"
	FieldResolution  = "resolution"
	FieldAssignee    = "assignee"
	FieldReporter    = "reporter"
	FieldLabels      = "labels"
	FieldComponents  = "components"
	FieldFixVersions = "fixVersions"
	FieldVersions    = "versions"
	FieldDueDate     = "duedate"
	FieldComment     = "comment"
	FieldProject     = "project"
	FieldIssueType   = "issuetype"
	FieldParent      = "parent"
	FieldIssueKey    = "issuekey"
	FieldStatus      = "status"
	FieldCreated     = "created"
	FieldUpdated     = "updated"
)

// CustomFieldPrefix starts the id of every custom field.
const CustomFieldPrefix = "customfield_"

// IsCustomField reports whether id names a custom field.
func IsCustomField(id string) bool {
	return strings.HasPrefix(id, CustomFieldPrefix)
}

// DateLayout is the wire and storage format of date-only fields.
const DateLayout = "2006-01-02"

// Issue is a persisted work item.
type Issue struct {
	ID           int64      `json:"id" db:"id"`
	Key          string     `json:"key" db:"issue_key"`
	ProjectID    int64      `json:"projectId" db:"project_id"`
	IssueTypeID  string     `json:"issueTypeId" db:"issue_type_id"`
	ParentID     *int64     `json:"parentId,omitempty" db:"parent_id"`
	StatusID     string     `json:"statusId" db:"status_id"`
	Summary      string     `json:"summary" db:"summary"`
	Description  string     `json:"description" db:"description"`
	Environment  string     `json:"environment" db:"environment"`
	PriorityID   string     `json:"priorityId" db:"priority_id"`
	ResolutionID string     `json:"resolutionId" db:"resolution_id"`
	Assignee     string     `json:"assignee" db:"assignee"`
	Reporter     string     `json:"reporter" db:"reporter"`
	DueDate      *time.Time `json:"duedate,omitempty" db:"due_date"`
	CreatedAt    time.Time  `json:"created" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated" db:"updated_at"`

	Labels            []string       `json:"labels" db:"-"`
	ComponentIDs      []int64        `json:"componentIds" db:"-"`
	FixVersionIDs     []int64        `json:"fixVersionIds" db:"-"`
	AffectsVersionIDs []int64        `json:"versionIds" db:"-"`
	CustomFields      map[string]any `json:"customFields,omitempty" db:"-"`
}

// FieldValue returns the canonical value the issue holds for a field, in
// the same shape field handlers write into parameters.
func (i *Issue) FieldValue(id string) (any, bool) {
	if i == nil {
		return nil, false
	}
	switch id {
	case FieldSummary:
		return i.Summary, true
	case FieldDescription:
		return i.Description, true
	case FieldEnvironment:
		return i.Environment, true
	case FieldPriority:
		return i.PriorityID, true
	case FieldResolution:
		return i.ResolutionID, true
	case FieldAssignee:
		return i.Assignee, true
	case FieldReporter:
		return i.Reporter, true
	case FieldLabels:
		return append([]string(nil), i.Labels...), true
	case FieldComponents:
		return append([]int64(nil), i.ComponentIDs...), true
	case FieldFixVersions:
		return append([]int64(nil), i.FixVersionIDs...), true
	case FieldVersions:
		return append([]int64(nil), i.AffectsVersionIDs...), true
	case FieldDueDate:
		return i.DueDate, true
	}
	if IsCustomField(id) {
		v, ok := i.CustomFields[id]
		return v, ok
	}
	return nil, false
}

// Comment is a remark attached to an issue.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	IssueID   int64     `json:"-" db:"issue_id"`
	Author    string    `json:"author" db:"author"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created" db:"created_at"`
}

// ChangeGroup is one history entry of an issue: the items changed by a
// single create, edit or transition.
type ChangeGroup struct {
	ID        string       `json:"id" db:"id"`
	IssueID   int64        `json:"-" db:"issue_id"`
	Author    string       `json:"author" db:"author"`
	Metadata  string       `json:"historyMetadata,omitempty" db:"metadata"`
	CreatedAt time.Time    `json:"created" db:"created_at"`
	Items     []ChangeItem `json:"items" db:"-"`
}

// ChangeItem is one field change of a ChangeGroup.
type ChangeItem struct {
	GroupID string `json:"-" db:"group_id"`
	Field   string `json:"field" db:"field"`
	From    string `json:"fromString" db:"from_value"`
	To      string `json:"toString" db:"to_value"`
}
