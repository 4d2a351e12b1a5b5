package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

const timeLayout = "2006-01-02T15:04:05.000-0700"

// IssueBean is the body of GET /issue/{idOrKey}.
type IssueBean struct {
	ID     string         `json:"id"`
	Self   string         `json:"self"`
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

type namedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Self string `json:"self,omitempty"`
}

type issueLink struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type userBean struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Active      bool   `json:"active"`
}

type commentBean struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Body    string `json:"body"`
	Created string `json:"created"`
}

// ProjectBean is the body of the project resources.
type ProjectBean struct {
	Self        string            `json:"self"`
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Lead        string            `json:"lead,omitempty"`
	IssueTypes  []model.IssueType `json:"issueTypes"`
	Components  []model.Component `json:"components"`
	Versions    []model.Version   `json:"versions"`
}

func (s *Server) self(format string, args ...any) string {
	return s.baseURL + BasePath + fmt.Sprintf(format, args...)
}

func (s *Server) link(is *model.Issue) issueLink {
	id := strconv.FormatInt(is.ID, 10)
	return issueLink{ID: id, Key: is.Key, Self: s.self("/issue/%s", id)}
}

func (s *Server) issueBean(ctx context.Context, is *model.Issue) (*IssueBean, error) {
	f := map[string]any{
		model.FieldSummary:     is.Summary,
		model.FieldDescription: is.Description,
		model.FieldEnvironment: is.Environment,
		model.FieldLabels:      nonNil(is.Labels),
		model.FieldCreated:     is.CreatedAt.Format(timeLayout),
		model.FieldUpdated:     is.UpdatedAt.Format(timeLayout),
		model.FieldDueDate:     nil,
	}
	if is.DueDate != nil {
		f[model.FieldDueDate] = is.DueDate.Format(model.DateLayout)
	}

	project, err := s.store.GetProject(ctx, is.ProjectID)
	if err != nil {
		return nil, err
	}
	f[model.FieldProject] = map[string]string{
		"id":   strconv.FormatInt(project.ID, 10),
		"key":  project.Key,
		"name": project.Name,
		"self": s.self("/project/%d", project.ID),
	}

	if it, err := s.store.GetIssueType(ctx, is.IssueTypeID); err == nil {
		f[model.FieldIssueType] = it
	} else if !store.IsNotFound(err) {
		return nil, err
	}
	if st, err := s.store.GetStatus(ctx, is.StatusID); err == nil {
		f[model.FieldStatus] = st
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	f[model.FieldPriority] = nil
	if is.PriorityID != "" {
		if p, err := s.store.GetPriority(ctx, is.PriorityID); err == nil {
			f[model.FieldPriority] = namedRef{ID: p.ID, Name: p.Name, Self: s.self("/priority/%s", p.ID)}
		}
	}
	f[model.FieldResolution] = nil
	if is.ResolutionID != "" {
		if r, err := s.store.GetResolution(ctx, is.ResolutionID); err == nil {
			f[model.FieldResolution] = namedRef{ID: r.ID, Name: r.Name}
		}
	}
	f[model.FieldAssignee] = s.user(ctx, is.Assignee)
	f[model.FieldReporter] = s.user(ctx, is.Reporter)

	components := make([]namedRef, 0, len(is.ComponentIDs))
	for _, id := range is.ComponentIDs {
		if c, err := s.store.GetComponent(ctx, id); err == nil {
			components = append(components, namedRef{ID: strconv.FormatInt(c.ID, 10), Name: c.Name})
		}
	}
	f[model.FieldComponents] = components
	f[model.FieldFixVersions] = s.versions(ctx, is.FixVersionIDs)
	f[model.FieldVersions] = s.versions(ctx, is.AffectsVersionIDs)

	if is.ParentID != nil {
		if parent, err := s.store.GetIssue(ctx, *is.ParentID); err == nil {
			f[model.FieldParent] = s.link(parent)
		}
	}
	subtasks, err := s.store.GetSubtasks(ctx, is.ID)
	if err != nil {
		return nil, err
	}
	links := make([]issueLink, 0, len(subtasks))
	for i := range subtasks {
		links = append(links, s.link(&subtasks[i]))
	}
	f["subtasks"] = links

	comments, err := s.store.GetComments(ctx, is.ID)
	if err != nil {
		return nil, err
	}
	cbs := make([]commentBean, 0, len(comments))
	for _, c := range comments {
		cbs = append(cbs, commentBean{ID: c.ID, Author: c.Author, Body: c.Body, Created: c.CreatedAt.Format(timeLayout)})
	}
	f[model.FieldComment] = map[string]any{"comments": cbs, "total": len(cbs)}

	for id, v := range is.CustomFields {
		f[id] = v
	}

	link := s.link(is)
	return &IssueBean{ID: link.ID, Self: link.Self, Key: is.Key, Fields: f}, nil
}

func (s *Server) user(ctx context.Context, name string) *userBean {
	if name == "" {
		return nil
	}
	u, err := s.store.GetUser(ctx, name)
	if err != nil {
		return &userBean{Name: name, DisplayName: name}
	}
	return &userBean{Name: u.Name, DisplayName: u.DisplayName, Active: u.Active}
}

func (s *Server) versions(ctx context.Context, ids []int64) []namedRef {
	out := make([]namedRef, 0, len(ids))
	for _, id := range ids {
		if v, err := s.store.GetVersion(ctx, id); err == nil {
			out = append(out, namedRef{ID: strconv.FormatInt(v.ID, 10), Name: v.Name})
		}
	}
	return out
}

func (s *Server) projectBean(ctx context.Context, p *model.Project) (*ProjectBean, error) {
	bean := &ProjectBean{
		Self:        s.self("/project/%d", p.ID),
		ID:          strconv.FormatInt(p.ID, 10),
		Key:         p.Key,
		Name:        p.Name,
		Description: p.Description,
		Lead:        p.Lead,
		IssueTypes:  []model.IssueType{},
	}
	for _, id := range p.IssueTypeIDs {
		it, err := s.store.GetIssueType(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		bean.IssueTypes = append(bean.IssueTypes, *it)
	}
	var err error
	if bean.Components, err = s.store.GetComponents(ctx, p.ID); err != nil {
		return nil, err
	}
	if bean.Versions, err = s.store.GetVersions(ctx, p.ID); err != nil {
		return nil, err
	}
	if bean.Components == nil {
		bean.Components = []model.Component{}
	}
	if bean.Versions == nil {
		bean.Versions = []model.Version{}
	}
	return bean, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
