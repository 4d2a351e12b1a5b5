// Package seed loads YAML bootstrap files describing users, constants,
// screens, workflows and projects into the store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

//go:embed default.yaml
var defaultSeed []byte

// File is the document layout of a seed file.
type File struct {
	Users        []User        `yaml:"users"`
	Priorities   []Named       `yaml:"priorities"`
	Resolutions  []Named       `yaml:"resolutions"`
	Statuses     []Status      `yaml:"statuses"`
	IssueTypes   []IssueType   `yaml:"issue_types"`
	CustomFields []CustomField `yaml:"custom_fields"`
	Screens      []Screen      `yaml:"screens"`
	Workflows    []Workflow    `yaml:"workflows"`
	Projects     []Project     `yaml:"projects"`
}

type User struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
	Inactive    bool   `yaml:"inactive"`
}

type Named struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type Status struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type IssueType struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Subtask     bool   `yaml:"subtask"`
}

type CustomField struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Description string   `yaml:"description"`
	Options     []Option `yaml:"options"`
}

type Option struct {
	ID    string `yaml:"id"`
	Value string `yaml:"value"`
}

type Screen struct {
	ID     int64    `yaml:"id"`
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
}

type Workflow struct {
	ID            int64    `yaml:"id"`
	Name          string   `yaml:"name"`
	InitialStatus string   `yaml:"initial_status"`
	Actions       []Action `yaml:"actions"`
}

type Action struct {
	ID     int      `yaml:"id"`
	Name   string   `yaml:"name"`
	To     string   `yaml:"to"`
	From   []string `yaml:"from"`
	Screen *int64   `yaml:"screen"`
}

// ScreenScheme assigns screens per operation. IssueType narrows the entry
// to one issue type.
type ScreenScheme struct {
	IssueType string `yaml:"issue_type"`
	Create    int64  `yaml:"create"`
	Edit      int64  `yaml:"edit"`
	View      int64  `yaml:"view"`
}

type Version struct {
	Name     string `yaml:"name"`
	Released bool   `yaml:"released"`
	Archived bool   `yaml:"archived"`
}

type Project struct {
	ID             int64          `yaml:"id"`
	Key            string         `yaml:"key"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Lead           string         `yaml:"lead"`
	Workflow       int64          `yaml:"workflow"`
	IssueTypes     []string       `yaml:"issue_types"`
	Components     []string       `yaml:"components"`
	Versions       []Version      `yaml:"versions"`
	Screens        []ScreenScheme `yaml:"screens"`
	HiddenFields   []string       `yaml:"hidden_fields"`
	RequiredFields []string       `yaml:"required_fields"`
}

// Parse decodes a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return &f, nil
}

// Load reads and decodes a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in demo configuration.
func Default() (*File, error) {
	return Parse(defaultSeed)
}

// Apply writes everything in f to st. Applying the same file twice leaves
// the store unchanged.
func Apply(ctx context.Context, st store.Store, f *File) error {
	for _, u := range f.Users {
		if err := st.UpsertUser(ctx, model.User{Name: u.Name, DisplayName: u.DisplayName, Email: u.Email, Active: !u.Inactive}); err != nil {
			return err
		}
	}
	for i, p := range f.Priorities {
		if err := st.UpsertPriority(ctx, model.Priority{ID: p.ID, Name: p.Name, Sequence: i + 1}); err != nil {
			return err
		}
	}
	for _, r := range f.Resolutions {
		if err := st.UpsertResolution(ctx, model.Resolution{ID: r.ID, Name: r.Name}); err != nil {
			return err
		}
	}
	for _, s := range f.Statuses {
		if err := st.UpsertStatus(ctx, model.Status{ID: s.ID, Name: s.Name, Category: s.Category}); err != nil {
			return err
		}
	}
	for _, it := range f.IssueTypes {
		if err := st.UpsertIssueType(ctx, model.IssueType{ID: it.ID, Name: it.Name, Description: it.Description, Subtask: it.Subtask}); err != nil {
			return err
		}
	}
	for _, cf := range f.CustomFields {
		field := model.CustomField{ID: cf.ID, Name: cf.Name, Kind: cf.Kind, Description: cf.Description}
		for _, o := range cf.Options {
			field.Options = append(field.Options, model.FieldOption{ID: o.ID, FieldID: cf.ID, Value: o.Value})
		}
		if err := st.UpsertCustomField(ctx, field); err != nil {
			return err
		}
	}
	for _, s := range f.Screens {
		if err := st.UpsertScreen(ctx, model.Screen{ID: s.ID, Name: s.Name, FieldIDs: s.Fields}); err != nil {
			return err
		}
	}
	for _, w := range f.Workflows {
		wf := model.Workflow{ID: w.ID, Name: w.Name, InitialStatus: w.InitialStatus}
		for _, a := range w.Actions {
			wf.Actions = append(wf.Actions, model.Action{
				ID: a.ID, Name: a.Name, ToStatus: a.To, ScreenID: a.Screen, FromStatuses: a.From,
			})
		}
		if err := st.UpsertWorkflow(ctx, wf); err != nil {
			return err
		}
	}
	for _, p := range f.Projects {
		if err := applyProject(ctx, st, p); err != nil {
			return fmt.Errorf("project %s: %w", p.Key, err)
		}
	}
	return nil
}

func applyProject(ctx context.Context, st store.Store, p Project) error {
	issueTypes := p.IssueTypes
	if issueTypes == nil {
		issueTypes = []string{}
	}
	err := st.UpsertProject(ctx, model.Project{
		ID: p.ID, Key: p.Key, Name: p.Name, Description: p.Description,
		Lead: p.Lead, WorkflowID: p.Workflow, IssueTypeIDs: issueTypes,
	})
	if err != nil {
		return err
	}

	for _, name := range p.Components {
		_, err := st.GetComponentByName(ctx, p.ID, name)
		if store.IsNotFound(err) {
			_, err = st.CreateComponent(ctx, model.Component{ProjectID: p.ID, Name: name})
		}
		if err != nil {
			return err
		}
	}
	for _, v := range p.Versions {
		_, err := st.GetVersionByName(ctx, p.ID, v.Name)
		if store.IsNotFound(err) {
			_, err = st.CreateVersion(ctx, model.Version{ProjectID: p.ID, Name: v.Name, Released: v.Released, Archived: v.Archived})
		}
		if err != nil {
			return err
		}
	}

	for _, sc := range p.Screens {
		for op, id := range map[string]int64{
			model.ScreenOperationCreate: sc.Create,
			model.ScreenOperationEdit:   sc.Edit,
			model.ScreenOperationView:   sc.View,
		} {
			if id == 0 {
				continue
			}
			err := st.AssignScreen(ctx, model.ScreenAssignment{ProjectID: p.ID, IssueTypeID: sc.IssueType, Operation: op, ScreenID: id})
			if err != nil {
				return err
			}
		}
	}

	layout := make(map[string]model.FieldLayoutItem)
	for _, id := range p.HiddenFields {
		item := layout[id]
		item.Hidden = true
		layout[id] = item
	}
	for _, id := range p.RequiredFields {
		item := layout[id]
		item.Required = true
		layout[id] = item
	}
	for id, item := range layout {
		item.ProjectID = p.ID
		item.FieldID = id
		if err := st.SetFieldLayoutItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
