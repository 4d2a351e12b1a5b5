// Package issue persists assembled field updates: it creates, edits,
// transitions and deletes issues and keeps their change history.
package issue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/nhle/issue-rest/internal/assembler"
	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/meta"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// Service is the issue persistence collaborator behind the REST resources.
type Service struct {
	store  store.Store
	meta   *meta.Provider
	logger *slog.Logger
}

// NewService returns a service over st. provider supplies screens and the
// field registry.
func NewService(st store.Store, provider *meta.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, meta: provider, logger: logger}
}

// BulkFailure is one rejected element of a bulk create.
type BulkFailure struct {
	Index  int
	Errors *errcol.Collection
}

func (s *Service) assembler(ctx context.Context) (*assembler.Assembler, error) {
	reg, err := s.meta.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return assembler.New(reg, s.store, s.meta), nil
}

// Get returns the issue with the given numeric id or key.
func (s *Service) Get(ctx context.Context, idOrKey string) (*model.Issue, error) {
	var (
		is  *model.Issue
		err error
	)
	if id, perr := strconv.ParseInt(idOrKey, 10, 64); perr == nil {
		is, err = s.store.GetIssue(ctx, id)
	} else {
		is, err = s.store.GetIssueByKey(ctx, idOrKey)
	}
	if store.IsNotFound(err) {
		return nil, errcol.Of("Issue Does Not Exist", errcol.NotFound)
	}
	return is, err
}

// Create assembles req in the create context and stores the new issue.
// Validation problems are returned as *errcol.Collection.
func (s *Service) Create(ctx context.Context, req assembler.Request, author string) (*model.Issue, error) {
	a, err := s.assembler(ctx)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, a.ForCreate(ctx, req), author)
}

// BulkCreate creates each request independently and reports the failures
// by index.
func (s *Service) BulkCreate(ctx context.Context, reqs []assembler.Request, author string) ([]*model.Issue, []BulkFailure, error) {
	a, err := s.assembler(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		created  []*model.Issue
		failures []BulkFailure
	)
	for i, res := range a.ForBulkCreate(ctx, reqs) {
		is, err := s.create(ctx, res, author)
		var errs *errcol.Collection
		switch {
		case errors.As(err, &errs):
			failures = append(failures, BulkFailure{Index: i, Errors: errs})
		case err != nil:
			failures = append(failures, BulkFailure{Index: i, Errors: errcol.Of(err.Error(), errcol.ServerError)})
		default:
			created = append(created, is)
		}
	}
	return created, failures, nil
}

func (s *Service) create(ctx context.Context, res *assembler.Result, author string) (*model.Issue, error) {
	if res.HasErrors() {
		return nil, res.Errors
	}

	project, err := s.store.GetProject(ctx, res.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	it, err := s.store.GetIssueType(ctx, res.IssueTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading issue type: %w", err)
	}
	wf, err := s.store.GetWorkflow(ctx, project.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("loading workflow of %s: %w", project.Key, err)
	}

	is := &model.Issue{
		ProjectID:   project.ID,
		IssueTypeID: it.ID,
		StatusID:    wf.InitialStatus,
		Reporter:    author,
	}
	params := res.Params
	if err := applyValues(is, params.Values); err != nil {
		return nil, err
	}

	errs := errcol.New()
	if params.ApplyDefaults && !params.Provided(model.FieldPriority) {
		if is.PriorityID, err = s.defaultPriority(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.checkParent(ctx, is, it, project, res.ParentIDOrKey, errs); err != nil {
		return nil, err
	}
	fields, err := s.meta.CreateFieldMeta(ctx, project.ID, it.ID)
	if err != nil {
		return nil, err
	}
	checkRequired(is, fields, nil, errs)
	if errs.HasAnyErrors() {
		return nil, errs
	}

	history := &model.ChangeGroup{Author: author, Metadata: metadata(params.HistoryMetadata)}
	for _, id := range changedFields(&model.Issue{}, is, params.Values) {
		history.Items = append(history.Items, changeItem(id, &model.Issue{}, is))
	}
	if err := s.store.CreateIssue(ctx, is, comments(params.Comments, author), history); err != nil {
		return nil, fmt.Errorf("storing issue: %w", err)
	}

	s.logger.Info("issue created", "key", is.Key, "project", project.Key, "issuetype", it.Name)
	return is, nil
}

// Edit assembles req against the issue's edit screen and stores the
// changes.
func (s *Service) Edit(ctx context.Context, idOrKey string, req assembler.Request, author string) error {
	is, err := s.Get(ctx, idOrKey)
	if err != nil {
		return err
	}
	a, err := s.assembler(ctx)
	if err != nil {
		return err
	}
	res := a.ForEdit(ctx, req, is)
	if res.HasErrors() {
		return res.Errors
	}
	if res.ParentIDOrKey != "" && !s.isParent(ctx, is.ParentID, res.ParentIDOrKey) {
		return fieldErr(model.FieldParent, "The parent of an issue cannot be changed.")
	}

	fields, err := s.meta.EditMeta(ctx, is)
	if err != nil {
		return err
	}
	return s.update(ctx, is, res, author, fields.Fields, "")
}

// Transition runs the workflow action named in req and applies its screen
// fields.
func (s *Service) Transition(ctx context.Context, idOrKey string, req assembler.Request, author string) error {
	is, err := s.Get(ctx, idOrKey)
	if err != nil {
		return err
	}
	a, err := s.assembler(ctx)
	if err != nil {
		return err
	}
	res := a.ForTransition(ctx, req, is)
	if res.HasErrors() {
		return res.Errors
	}

	actionID, _ := strconv.Atoi(req.Transition.ID)
	action, err := s.meta.Action(ctx, is, actionID)
	if err != nil {
		return err
	}
	if action == nil || !action.AvailableFrom(is.StatusID) {
		name := req.Transition.ID
		if action != nil {
			name = action.Name
		}
		return errcol.Of(fmt.Sprintf(
			"It seems that you have tried to perform a workflow operation (%s) that is not valid for the current state of this issue (%s).",
			name, is.Key), errcol.ValidationFailed)
	}

	t, err := s.meta.Transitions(ctx, is, &actionID, true)
	if err != nil {
		return err
	}
	var fields map[string]meta.FieldMeta
	if len(t.Transitions) == 1 {
		fields = t.Transitions[0].Fields
	}
	return s.update(ctx, is, res, author, fields, action.ToStatus)
}

func (s *Service) update(ctx context.Context, is *model.Issue, res *assembler.Result, author string, fields map[string]meta.FieldMeta, toStatus string) error {
	before := *is
	params := res.Params
	if err := applyValues(is, params.Values); err != nil {
		return err
	}

	errs := errcol.New()
	checkRequired(is, fields, params.Values, errs)
	if errs.HasAnyErrors() {
		return errs
	}

	history := &model.ChangeGroup{Author: author, Metadata: metadata(params.HistoryMetadata)}
	for _, id := range changedFields(&before, is, params.Values) {
		history.Items = append(history.Items, changeItem(id, &before, is))
	}
	if toStatus != "" && toStatus != is.StatusID {
		history.Items = append(history.Items, model.ChangeItem{Field: model.FieldStatus, From: is.StatusID, To: toStatus})
		is.StatusID = toStatus
	}

	if err := s.store.UpdateIssue(ctx, is, comments(params.Comments, author), history); err != nil {
		return fmt.Errorf("storing issue %s: %w", is.Key, err)
	}
	s.logger.Info("issue updated", "key", is.Key, "changes", len(history.Items), "comments", len(params.Comments))
	return nil
}

// Delete removes an issue. Issues with subtasks are only removed together
// with them.
func (s *Service) Delete(ctx context.Context, idOrKey string, deleteSubtasks bool) error {
	is, err := s.Get(ctx, idOrKey)
	if err != nil {
		return err
	}
	subtasks, err := s.store.GetSubtasks(ctx, is.ID)
	if err != nil {
		return err
	}
	if len(subtasks) > 0 && !deleteSubtasks {
		return errcol.Of(fmt.Sprintf(
			"The issue '%s' has subtasks. Set 'deleteSubtasks' to true to delete them as well.", is.Key),
			errcol.ValidationFailed)
	}
	if err := s.store.DeleteIssue(ctx, is.ID); err != nil {
		return err
	}
	s.logger.Info("issue deleted", "key", is.Key, "subtasks", len(subtasks))
	return nil
}

func (s *Service) defaultPriority(ctx context.Context) (string, error) {
	ps, err := s.store.GetPriorities(ctx)
	if err != nil {
		return "", err
	}
	if len(ps) == 0 {
		return "", nil
	}
	return ps[len(ps)/2].ID, nil
}

func (s *Service) checkParent(ctx context.Context, is *model.Issue, it *model.IssueType, project *model.Project, ref string, errs *errcol.Collection) error {
	if ref == "" {
		if it.Subtask {
			errs.AddError(model.FieldParent, "Issue type is a sub-task but parent issue key or id not specified.", errcol.ValidationFailed)
		}
		return nil
	}
	if !it.Subtask {
		errs.AddError(model.FieldIssueType, "Issue type must be a sub-task type when a parent is given.", errcol.ValidationFailed)
		return nil
	}

	parent, err := s.Get(ctx, ref)
	var notFound *errcol.Collection
	if errors.As(err, &notFound) {
		errs.AddError(model.FieldParent, "Could not find issue by id or key.", errcol.ValidationFailed)
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case parent.ProjectID != project.ID:
		errs.AddError(model.FieldParent, "Parent issue must belong to the same project.", errcol.ValidationFailed)
	case parent.ParentID != nil:
		errs.AddError(model.FieldParent, "Sub-tasks cannot have sub-tasks.", errcol.ValidationFailed)
	default:
		is.ParentID = &parent.ID
	}
	return nil
}

// isParent reports whether ref names the issue with id parentID.
func (s *Service) isParent(ctx context.Context, parentID *int64, ref string) bool {
	if parentID == nil {
		return false
	}
	if strconv.FormatInt(*parentID, 10) == ref {
		return true
	}
	parent, err := s.store.GetIssue(ctx, *parentID)
	return err == nil && strings.EqualFold(parent.Key, ref)
}

// checkRequired flags required fields left empty. When provided is non-nil
// only fields touched by the request are checked.
func checkRequired(is *model.Issue, fields map[string]meta.FieldMeta, provided map[string]any, errs *errcol.Collection) {
	ids := make([]string, 0, len(fields))
	for id, fm := range fields {
		if fm.Required {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if id == model.FieldProject || id == model.FieldIssueType {
			continue
		}
		if provided != nil {
			if _, ok := provided[id]; !ok {
				continue
			}
		}
		v, _ := is.FieldValue(id)
		if formatValue(v) == "" {
			errs.AddError(id, fields[id].Name+" is required.", errcol.ValidationFailed)
		}
	}
}

func comments(bodies []string, author string) []model.Comment {
	out := make([]model.Comment, 0, len(bodies))
	for _, b := range bodies {
		out = append(out, model.Comment{Author: author, Body: b})
	}
	return out
}

func metadata(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}

func fieldErr(id, msg string) *errcol.Collection {
	c := errcol.New()
	c.AddError(id, msg, errcol.ValidationFailed)
	return c
}
