package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// Summary counts what one import wrote.
type Summary struct {
	Projects     int
	IssueTypes   int
	CustomFields int
	Priorities   int
}

// Importer copies remote create metadata into the local store: projects,
// issue types, priorities, custom fields, one create screen per project and
// issue type, and required flags.
type Importer struct {
	client      *Client
	store       store.Store
	projectKeys []string
	workflowID  int64
	logger      *slog.Logger
}

// NewImporter returns an importer limited to projectKeys (all when empty).
// New projects get workflowID; existing ones keep theirs.
func NewImporter(client *Client, st store.Store, projectKeys []string, workflowID int64, logger *slog.Logger) *Importer {
	return &Importer{
		client:      client,
		store:       st,
		projectKeys: projectKeys,
		workflowID:  workflowID,
		logger:      logger,
	}
}

// Name identifies the importer as a poller job.
func (im *Importer) Name() string { return "remote-import" }

// Run performs one import.
func (im *Importer) Run(ctx context.Context) error {
	sum, err := im.Import(ctx)
	if err != nil {
		return err
	}
	im.logger.Info("remote metadata imported",
		"projects", sum.Projects,
		"issue_types", sum.IssueTypes,
		"custom_fields", sum.CustomFields,
		"priorities", sum.Priorities,
	)
	return nil
}

// Import fetches priorities and create metadata and writes them.
func (im *Importer) Import(ctx context.Context) (Summary, error) {
	var sum Summary

	priorities, err := im.client.Priorities(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetching priorities: %w", err)
	}
	for i, p := range priorities {
		if err := im.store.UpsertPriority(ctx, model.Priority{ID: p.ID, Name: p.Name, Sequence: i + 1}); err != nil {
			return sum, err
		}
		sum.Priorities++
	}

	cm, err := im.client.CreateMeta(ctx, im.projectKeys)
	if err != nil {
		return sum, fmt.Errorf("fetching create metadata: %w", err)
	}

	seenTypes := make(map[string]bool)
	seenFields := make(map[string]bool)
	for _, p := range cm.Projects {
		id, err := strconv.ParseInt(p.ID, 10, 64)
		if err != nil {
			im.logger.Warn("skipping remote project with non-numeric id", "key", p.Key, "id", p.ID)
			continue
		}

		for _, it := range p.IssueTypes {
			if !seenTypes[it.ID] {
				seenTypes[it.ID] = true
				err := im.store.UpsertIssueType(ctx, model.IssueType{
					ID: it.ID, Name: it.Name, Description: it.Description, Subtask: it.Subtask,
				})
				if err != nil {
					return sum, err
				}
				sum.IssueTypes++
			}
			for _, f := range it.Fields {
				if !model.IsCustomField(f.ID) || seenFields[f.ID] {
					continue
				}
				seenFields[f.ID] = true
				if err := im.store.UpsertCustomField(ctx, customField(f)); err != nil {
					return sum, err
				}
				sum.CustomFields++
			}
		}

		if err := im.importProject(ctx, id, p); err != nil {
			return sum, fmt.Errorf("importing project %s: %w", p.Key, err)
		}
		sum.Projects++
	}
	return sum, nil
}

func (im *Importer) importProject(ctx context.Context, id int64, p MetaProject) error {
	project := model.Project{ID: id, Key: p.Key, Name: p.Name, WorkflowID: im.workflowID}
	existing, err := im.store.GetProject(ctx, id)
	switch {
	case err == nil:
		project.Lead = existing.Lead
		project.Description = existing.Description
		project.WorkflowID = existing.WorkflowID
	case !store.IsNotFound(err):
		return err
	}

	project.IssueTypeIDs = make([]string, 0, len(p.IssueTypes))
	for _, it := range p.IssueTypes {
		project.IssueTypeIDs = append(project.IssueTypeIDs, it.ID)
	}
	if err := im.store.UpsertProject(ctx, project); err != nil {
		return err
	}

	for _, it := range p.IssueTypes {
		screen := model.Screen{
			ID:   screenID(p.Key, it.ID),
			Name: fmt.Sprintf("%s %s create (imported)", p.Key, it.Name),
		}
		for _, f := range it.Fields {
			if f.ID == model.FieldProject {
				continue
			}
			screen.FieldIDs = append(screen.FieldIDs, f.ID)
			if f.Required {
				err := im.store.SetFieldLayoutItem(ctx, model.FieldLayoutItem{
					ProjectID: id, FieldID: f.ID, Required: true,
				})
				if err != nil {
					return err
				}
			}
		}
		if err := im.store.UpsertScreen(ctx, screen); err != nil {
			return err
		}
		err := im.store.AssignScreen(ctx, model.ScreenAssignment{
			ProjectID: id, IssueTypeID: it.ID, Operation: model.ScreenOperationCreate, ScreenID: screen.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// screenID derives a stable id for an imported screen, kept clear of the
// small ids used by seed files.
func screenID(projectKey, issueTypeID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(projectKey + "/" + issueTypeID))
	return int64(h.Sum64()>>2) | 1<<40
}

func customField(f MetaField) model.CustomField {
	cf := model.CustomField{ID: f.ID, Name: f.Name, Kind: customKind(f.Schema)}
	if cf.Kind == model.CustomFieldSelect {
		for _, v := range f.AllowedValues {
			value := v.Value
			if value == "" {
				value = v.Name
			}
			cf.Options = append(cf.Options, model.FieldOption{ID: v.ID, FieldID: f.ID, Value: value})
		}
	}
	return cf
}

// customKind maps a remote custom type key such as
// "com.atlassian.jira.plugin.system.customfieldtypes:float" to a local kind.
func customKind(s FieldSchema) string {
	typ := s.Custom
	if i := strings.LastIndexByte(typ, ':'); i >= 0 {
		typ = typ[i+1:]
	}
	switch typ {
	case "float", model.CustomFieldNumber:
		return model.CustomFieldNumber
	case "select", "radiobuttons":
		return model.CustomFieldSelect
	case model.CustomFieldLabels:
		return model.CustomFieldLabels
	case "textfield", "textarea", model.CustomFieldText:
		return model.CustomFieldText
	}
	switch {
	case s.Type == "number":
		return model.CustomFieldNumber
	case s.Type == "option":
		return model.CustomFieldSelect
	case s.Type == "array" && s.Items == "string":
		return model.CustomFieldLabels
	}
	return model.CustomFieldText
}

// decodeFields walks the members of a JSON object in document order.
func decodeFields(raw json.RawMessage, fn func(id string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil {
		return err
	} else if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields: expected an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %s: %w", id, err)
		}
		if err := fn(id, value); err != nil {
			return fmt.Errorf("field %s: %w", id, err)
		}
	}
	_, err := dec.Token()
	return err
}
