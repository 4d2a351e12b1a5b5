package meta

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// FieldMeta describes one field of a screen.
type FieldMeta struct {
	Required      bool         `json:"required"`
	Schema        field.Schema `json:"schema"`
	Name          string       `json:"name"`
	Operations    []string     `json:"operations"`
	AllowedValues []any        `json:"allowedValues,omitempty"`
}

// IssueTypeMeta is an issue type of a createmeta project.
type IssueTypeMeta struct {
	Self        string               `json:"self"`
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Subtask     bool                 `json:"subtask"`
	Fields      map[string]FieldMeta `json:"fields,omitempty"`
}

// ProjectMeta is a project of createmeta.
type ProjectMeta struct {
	Self       string          `json:"self"`
	ID         string          `json:"id"`
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	IssueTypes []IssueTypeMeta `json:"issuetypes"`
}

// CreateMeta is the body of GET /issue/createmeta.
type CreateMeta struct {
	Projects []ProjectMeta `json:"projects"`
}

// EditMeta is the body of GET /issue/{idOrKey}/editmeta.
type EditMeta struct {
	Fields map[string]FieldMeta `json:"fields"`
}

// TransitionMeta is one action available from an issue's status.
type TransitionMeta struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	To     *model.Status        `json:"to,omitempty"`
	Fields map[string]FieldMeta `json:"fields,omitempty"`
}

// Transitions is the body of GET /issue/{idOrKey}/transitions.
type Transitions struct {
	Transitions []TransitionMeta `json:"transitions"`
}

// CreateMetaFilter narrows createmeta. Empty lists match everything.
type CreateMetaFilter struct {
	ProjectKeys    []string
	ProjectIDs     []string
	IssueTypeIDs   []string
	IssueTypeNames []string
	ExpandFields   bool
}

func (f CreateMetaFilter) matchProject(p model.Project) bool {
	if len(f.ProjectKeys) == 0 && len(f.ProjectIDs) == 0 {
		return true
	}
	return contains(f.ProjectKeys, p.Key) || contains(f.ProjectIDs, strconv.FormatInt(p.ID, 10))
}

func (f CreateMetaFilter) matchIssueType(it model.IssueType) bool {
	if len(f.IssueTypeIDs) == 0 && len(f.IssueTypeNames) == 0 {
		return true
	}
	return contains(f.IssueTypeIDs, it.ID) || contains(f.IssueTypeNames, it.Name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CreateMeta lists the projects and issue types a client can create issues
// in, optionally with the fields of each create screen.
func (p *Provider) CreateMeta(ctx context.Context, filter CreateMetaFilter) (*CreateMeta, error) {
	projects, err := p.store.GetProjects(ctx)
	if err != nil {
		return nil, err
	}

	out := &CreateMeta{Projects: []ProjectMeta{}}
	for _, project := range projects {
		if !filter.matchProject(project) {
			continue
		}
		pm := ProjectMeta{
			Self:       fmt.Sprintf("%s/rest/api/2/project/%d", p.baseURL, project.ID),
			ID:         strconv.FormatInt(project.ID, 10),
			Key:        project.Key,
			Name:       project.Name,
			IssueTypes: []IssueTypeMeta{},
		}
		for _, itID := range project.IssueTypeIDs {
			it, err := p.store.GetIssueType(ctx, itID)
			if store.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !filter.matchIssueType(*it) {
				continue
			}
			itm := IssueTypeMeta{
				Self:        fmt.Sprintf("%s/rest/api/2/issuetype/%s", p.baseURL, it.ID),
				ID:          it.ID,
				Name:        it.Name,
				Description: it.Description,
				Subtask:     it.Subtask,
			}
			if filter.ExpandFields {
				if itm.Fields, err = p.CreateFieldMeta(ctx, project.ID, it.ID); err != nil {
					return nil, err
				}
			}
			pm.IssueTypes = append(pm.IssueTypes, itm)
		}
		out.Projects = append(out.Projects, pm)
	}
	return out, nil
}

// CreateFieldMeta describes the create screen of a project and issue type.
func (p *Provider) CreateFieldMeta(ctx context.Context, projectID int64, issueTypeID string) (map[string]FieldMeta, error) {
	ids, err := p.CreateFields(ctx, projectID, issueTypeID)
	if err != nil {
		return nil, err
	}
	ic := field.IssueContext{ProjectID: projectID, IssueTypeID: issueTypeID}
	return p.describe(ctx, ic, ids)
}

// EditMeta describes the fields of the issue's edit screen.
func (p *Provider) EditMeta(ctx context.Context, issue *model.Issue) (*EditMeta, error) {
	ids, err := p.EditFields(ctx, issue)
	if err != nil {
		return nil, err
	}
	ic := field.IssueContext{ProjectID: issue.ProjectID, IssueTypeID: issue.IssueTypeID, Issue: issue}
	fields, err := p.describe(ctx, ic, append(ids, model.FieldComment))
	if err != nil {
		return nil, err
	}
	return &EditMeta{Fields: fields}, nil
}

// Transitions lists the actions available from the issue's status. A
// non-nil only narrows the list to that action.
func (p *Provider) Transitions(ctx context.Context, issue *model.Issue, only *int, expandFields bool) (*Transitions, error) {
	wf, err := p.Workflow(ctx, issue.ProjectID)
	if err != nil {
		return nil, err
	}

	out := &Transitions{Transitions: []TransitionMeta{}}
	for _, a := range wf.Actions {
		if only != nil && a.ID != *only {
			continue
		}
		if !a.AvailableFrom(issue.StatusID) {
			continue
		}
		tm := TransitionMeta{ID: strconv.Itoa(a.ID), Name: a.Name}
		if st, err := p.store.GetStatus(ctx, a.ToStatus); err == nil {
			tm.To = st
		} else if !store.IsNotFound(err) {
			return nil, err
		}
		if expandFields {
			ids, _, err := p.TransitionFields(ctx, issue, a.ID)
			if err != nil {
				return nil, err
			}
			ic := field.IssueContext{ProjectID: issue.ProjectID, IssueTypeID: issue.IssueTypeID, Issue: issue}
			if tm.Fields, err = p.describe(ctx, ic, ids); err != nil {
				return nil, err
			}
		}
		out.Transitions = append(out.Transitions, tm)
	}
	return out, nil
}

func (p *Provider) describe(ctx context.Context, ic field.IssueContext, ids []string) (map[string]FieldMeta, error) {
	reg, err := p.Registry(ctx)
	if err != nil {
		return nil, err
	}
	layout, err := p.store.GetFieldLayout(ctx, ic.ProjectID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]FieldMeta, len(ids))
	for _, id := range ids {
		f, ok := reg.Field(id)
		if !ok {
			continue
		}
		fm := FieldMeta{
			Required:   layout[id].Required || alwaysRequired(id),
			Schema:     f.Schema(),
			Name:       f.Name(),
			Operations: []string{},
		}
		if rf, ok := f.(field.RestOperations); ok {
			fm.Operations = rf.SupportedOperations()
		}
		if av, ok := f.(field.AllowedValuesProvider); ok {
			if fm.AllowedValues, err = av.AllowedValues(ctx, ic); err != nil {
				return nil, fmt.Errorf("allowed values of %s: %w", id, err)
			}
		}
		out[id] = fm
	}
	return out, nil
}

func alwaysRequired(id string) bool {
	switch id {
	case model.FieldProject, model.FieldIssueType, model.FieldSummary:
		return true
	}
	return false
}
