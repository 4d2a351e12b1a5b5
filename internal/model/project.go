package model

import "time"

// Project is a container of issues with its own key sequence, components
// and versions.
type Project struct {
	ID          int64     `json:"id" db:"id"`
	Key         string    `json:"key" db:"project_key"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Lead        string    `json:"lead" db:"lead"`
	WorkflowID  int64     `json:"workflowId" db:"workflow_id"`
	Counter     int64     `json:"-" db:"counter"`
	CreatedAt   time.Time `json:"created" db:"created_at"`

	// IssueTypeIDs lists the issue types of the project's scheme in display
	// order. Populated by queries that join project_issue_types.
	IssueTypeIDs []string `json:"issueTypeIds,omitempty" db:"-"`
}

// HasIssueType reports whether the issue type belongs to the project's scheme.
func (p Project) HasIssueType(id string) bool {
	for _, it := range p.IssueTypeIDs {
		if it == id {
			return true
		}
	}
	return false
}

// Component is a project-scoped grouping of issues.
type Component struct {
	ID          int64  `json:"id" db:"id"`
	ProjectID   int64  `json:"projectId" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// Version is a project-scoped release used by fixVersions and versions.
type Version struct {
	ID        int64  `json:"id" db:"id"`
	ProjectID int64  `json:"projectId" db:"project_id"`
	Name      string `json:"name" db:"name"`
	Released  bool   `json:"released" db:"released"`
	Archived  bool   `json:"archived" db:"archived"`
}
