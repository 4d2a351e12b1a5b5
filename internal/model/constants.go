package model

// IssueType classifies issues (Bug, Task, Sub-task...).
type IssueType struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Subtask     bool   `json:"subtask" db:"subtask"`
}

// Priority is a global issue priority. Lower sequence means more urgent.
type Priority struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Sequence int    `json:"-" db:"sequence"`
}

// Resolution records how an issue was closed.
type Resolution struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Status category keys.
const (
	CategoryNew           = "new"
	CategoryIndeterminate = "indeterminate"
	CategoryDone          = "done"
)

// Status is a workflow step an issue can be in.
type Status struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Category string `json:"statusCategory" db:"category"`
}

// User is an account that can report, be assigned or comment.
type User struct {
	Name        string `json:"name" db:"name"`
	DisplayName string `json:"displayName" db:"display_name"`
	Email       string `json:"emailAddress" db:"email"`
	Active      bool   `json:"active" db:"active"`
}
