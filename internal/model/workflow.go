package model

// Workflow is the set of actions moving issues between statuses.
type Workflow struct {
	ID            int64    `json:"id" db:"id"`
	Name          string   `json:"name" db:"name"`
	InitialStatus string   `json:"initialStatus" db:"initial_status"`
	Actions       []Action `json:"actions" db:"-"`
}

// Action is a transition of a workflow. An action without FromStatuses is
// global and available from every status.
type Action struct {
	ID           int      `json:"id" db:"id"`
	WorkflowID   int64    `json:"-" db:"workflow_id"`
	Name         string   `json:"name" db:"name"`
	ToStatus     string   `json:"to" db:"to_status"`
	ScreenID     *int64   `json:"screenId,omitempty" db:"screen_id"`
	FromStatuses []string `json:"from,omitempty" db:"-"`
}

// AvailableFrom reports whether the action can fire from the status.
func (a Action) AvailableFrom(statusID string) bool {
	if len(a.FromStatuses) == 0 {
		return true
	}
	for _, s := range a.FromStatuses {
		if s == statusID {
			return true
		}
	}
	return false
}

// Action returns the action with the given id, or nil.
func (w *Workflow) Action(id int) *Action {
	if w == nil {
		return nil
	}
	for i := range w.Actions {
		if w.Actions[i].ID == id {
			return &w.Actions[i]
		}
	}
	return nil
}
