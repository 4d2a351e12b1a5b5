package store

import (
	"context"

	"github.com/nhle/issue-rest/internal/model"
)

// Store defines the persistence interface for issues and the configuration
// that decides which fields can be set on them.
type Store interface {
	// === Users and global constants ===

	UpsertUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, name string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	UpsertPriority(ctx context.Context, p model.Priority) error
	GetPriority(ctx context.Context, id string) (*model.Priority, error)
	GetPriorityByName(ctx context.Context, name string) (*model.Priority, error)
	GetPriorities(ctx context.Context) ([]model.Priority, error)

	UpsertResolution(ctx context.Context, r model.Resolution) error
	GetResolution(ctx context.Context, id string) (*model.Resolution, error)
	GetResolutionByName(ctx context.Context, name string) (*model.Resolution, error)
	GetResolutions(ctx context.Context) ([]model.Resolution, error)

	UpsertStatus(ctx context.Context, st model.Status) error
	GetStatus(ctx context.Context, id string) (*model.Status, error)

	UpsertIssueType(ctx context.Context, it model.IssueType) error
	GetIssueType(ctx context.Context, id string) (*model.IssueType, error)
	GetIssueTypeByName(ctx context.Context, name string) (*model.IssueType, error)
	GetIssueTypes(ctx context.Context) ([]model.IssueType, error)

	// === Projects ===

	UpsertProject(ctx context.Context, p model.Project) error
	SetProjectIssueTypes(ctx context.Context, projectID int64, issueTypeIDs []string) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*model.Project, error)
	GetProjects(ctx context.Context) ([]model.Project, error)

	CreateComponent(ctx context.Context, c model.Component) (*model.Component, error)
	GetComponent(ctx context.Context, id int64) (*model.Component, error)
	GetComponentByName(ctx context.Context, projectID int64, name string) (*model.Component, error)
	GetComponents(ctx context.Context, projectID int64) ([]model.Component, error)

	CreateVersion(ctx context.Context, v model.Version) (*model.Version, error)
	GetVersion(ctx context.Context, id int64) (*model.Version, error)
	GetVersionByName(ctx context.Context, projectID int64, name string) (*model.Version, error)
	GetVersions(ctx context.Context, projectID int64) ([]model.Version, error)

	// === Screens, layouts and custom fields ===

	UpsertScreen(ctx context.Context, sc model.Screen) error
	GetScreen(ctx context.Context, id int64) (*model.Screen, error)
	AssignScreen(ctx context.Context, a model.ScreenAssignment) error
	ScreenFor(ctx context.Context, projectID int64, issueTypeID, operation string) (*model.Screen, error)

	SetFieldLayoutItem(ctx context.Context, item model.FieldLayoutItem) error
	GetFieldLayout(ctx context.Context, projectID int64) (map[string]model.FieldLayoutItem, error)

	UpsertCustomField(ctx context.Context, cf model.CustomField) error
	GetCustomField(ctx context.Context, id string) (*model.CustomField, error)
	GetCustomFields(ctx context.Context) ([]model.CustomField, error)
	GetFieldOption(ctx context.Context, fieldID, optionID string) (*model.FieldOption, error)
	GetFieldOptionByValue(ctx context.Context, fieldID, value string) (*model.FieldOption, error)

	// === Workflows ===

	UpsertWorkflow(ctx context.Context, wf model.Workflow) error
	GetWorkflow(ctx context.Context, id int64) (*model.Workflow, error)

	// === Issues ===

	CreateIssue(ctx context.Context, issue *model.Issue, comments []model.Comment, history *model.ChangeGroup) error
	UpdateIssue(ctx context.Context, issue *model.Issue, comments []model.Comment, history *model.ChangeGroup) error
	GetIssue(ctx context.Context, id int64) (*model.Issue, error)
	GetIssueByKey(ctx context.Context, key string) (*model.Issue, error)
	GetSubtasks(ctx context.Context, parentID int64) ([]model.Issue, error)
	DeleteIssue(ctx context.Context, id int64) error
	GetComments(ctx context.Context, issueID int64) ([]model.Comment, error)
	GetHistory(ctx context.Context, issueID int64) ([]model.ChangeGroup, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
