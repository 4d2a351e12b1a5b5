// Package meta resolves which fields are visible for create, edit and
// transition, and renders the createmeta, editmeta and transitions beans.
package meta

import (
	"context"
	"fmt"

	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// Provider reads screen, layout and workflow configuration from the store.
type Provider struct {
	store   store.Store
	baseURL string
}

// NewProvider returns a provider building self links under baseURL.
func NewProvider(st store.Store, baseURL string) *Provider {
	return &Provider{store: st, baseURL: baseURL}
}

// Registry returns the system fields plus the custom fields currently
// defined.
func (p *Provider) Registry(ctx context.Context) (*field.Registry, error) {
	custom, err := p.store.GetCustomFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading custom fields: %w", err)
	}
	return field.NewRegistry(p.store, custom)
}

// CreateFields returns project, issuetype and the visible fields of the
// create screen of the project and issue type.
func (p *Provider) CreateFields(ctx context.Context, projectID int64, issueTypeID string) ([]string, error) {
	ids, err := p.screenFields(ctx, projectID, issueTypeID, model.ScreenOperationCreate)
	if err != nil {
		return nil, err
	}
	return append([]string{model.FieldProject, model.FieldIssueType}, ids...), nil
}

// EditFields returns the visible fields of the issue's edit screen.
func (p *Provider) EditFields(ctx context.Context, issue *model.Issue) ([]string, error) {
	return p.screenFields(ctx, issue.ProjectID, issue.IssueTypeID, model.ScreenOperationEdit)
}

// TransitionFields returns the visible fields of a workflow action's screen.
// ok is false when the issue's workflow has no such action.
func (p *Provider) TransitionFields(ctx context.Context, issue *model.Issue, actionID int) ([]string, bool, error) {
	action, err := p.Action(ctx, issue, actionID)
	if err != nil || action == nil {
		return nil, false, err
	}
	if action.ScreenID == nil {
		return []string{}, true, nil
	}
	sc, err := p.store.GetScreen(ctx, *action.ScreenID)
	if err != nil {
		return nil, false, err
	}
	ids, err := p.visible(ctx, issue.ProjectID, sc.FieldIDs)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// Workflow returns the workflow of the issue's project.
func (p *Provider) Workflow(ctx context.Context, projectID int64) (*model.Workflow, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.store.GetWorkflow(ctx, project.WorkflowID)
}

// Action resolves an action id on the issue's workflow, or nil.
func (p *Provider) Action(ctx context.Context, issue *model.Issue, actionID int) (*model.Action, error) {
	wf, err := p.Workflow(ctx, issue.ProjectID)
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wf.Action(actionID), nil
}

func (p *Provider) screenFields(ctx context.Context, projectID int64, issueTypeID, operation string) ([]string, error) {
	sc, err := p.store.ScreenFor(ctx, projectID, issueTypeID, operation)
	if store.IsNotFound(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return p.visible(ctx, projectID, sc.FieldIDs)
}

// visible drops fields hidden in the project's layout and ids no field is
// registered for.
func (p *Provider) visible(ctx context.Context, projectID int64, ids []string) ([]string, error) {
	layout, err := p.store.GetFieldLayout(ctx, projectID)
	if err != nil {
		return nil, err
	}
	reg, err := p.Registry(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if layout[id].Hidden {
			continue
		}
		if _, ok := reg.Field(id); !ok {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
