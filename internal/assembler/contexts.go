package assembler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// Screens lists the fields visible for each kind of operation.
type Screens interface {
	CreateFields(ctx context.Context, projectID int64, issueTypeID string) ([]string, error)
	EditFields(ctx context.Context, issue *model.Issue) ([]string, error)

	// TransitionFields reports ok=false when the action is not part of the
	// issue's workflow.
	TransitionFields(ctx context.Context, issue *model.Issue, actionID int) (fields []string, ok bool, err error)
}

// ForCreate resolves the project and issue type of req once, then
// assembles the rest of it against the create screen.
func (a *Assembler) ForCreate(ctx context.Context, req Request) *Result {
	actx := Context{Kind: Create, MustHaveFields: true}
	if len(req.Fields) == 0 && len(req.Update) == 0 {
		return a.Assemble(ctx, req, NewFieldSet(), actx)
	}

	var structural Request
	for _, fv := range req.Fields {
		if fv.ID == model.FieldProject || fv.ID == model.FieldIssueType {
			structural.Fields = append(structural.Fields, fv)
		}
	}
	pre := a.Assemble(ctx, structural, NewFieldSet(), Context{Kind: Create})
	if pre.HasErrors() {
		return pre
	}
	if pre.ProjectID == 0 {
		pre.Errors.AddError(model.FieldProject, "project is required", errcol.ValidationFailed)
		return pre
	}
	if pre.IssueTypeID == "" {
		pre.Errors.AddError(model.FieldIssueType, "issue type is required", errcol.ValidationFailed)
		return pre
	}

	project := pre.project
	if _, err := a.resolver.GetIssueType(ctx, pre.IssueTypeID); err != nil || !project.HasIssueType(pre.IssueTypeID) {
		if err != nil && !store.IsNotFound(err) {
			pre.Errors.AddErrorMessage(err.Error(), errcol.ServerError)
			return pre
		}
		pre.Errors.AddError(model.FieldIssueType, "valid issue type is required", errcol.ValidationFailed)
		return pre
	}

	ids, err := a.screens.CreateFields(ctx, project.ID, pre.IssueTypeID)
	if err != nil {
		return serverError(fmt.Errorf("resolving create screen: %w", err))
	}

	actx.Issue = field.IssueContext{ProjectID: project.ID, IssueTypeID: pre.IssueTypeID}
	return a.Assemble(ctx, req, NewFieldSet(ids...).With(model.FieldComment), actx)
}

// ForBulkCreate assembles every request on its own.
func (a *Assembler) ForBulkCreate(ctx context.Context, reqs []Request) []*Result {
	out := make([]*Result, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, a.ForCreate(ctx, req))
	}
	return out
}

// ForEdit assembles req against the edit screen of issue.
func (a *Assembler) ForEdit(ctx context.Context, req Request, issue *model.Issue) *Result {
	ids, err := a.screens.EditFields(ctx, issue)
	if err != nil {
		return serverError(fmt.Errorf("resolving edit screen of %s: %w", issue.Key, err))
	}
	return a.Assemble(ctx, req, NewFieldSet(ids...).With(model.FieldComment), Context{
		Kind:           Edit,
		MustHaveFields: true,
		Issue:          issueContext(issue),
	})
}

// ForTransition assembles req against the screen of the workflow action
// named by req.Transition. Fields are optional.
func (a *Assembler) ForTransition(ctx context.Context, req Request, issue *model.Issue) *Result {
	if req.Transition == nil || req.Transition.ID == "" {
		return errorResult(errcol.Of("Missing 'transition' identifier", errcol.ValidationFailed))
	}

	notValid := errcol.Of(fmt.Sprintf("Transition id '%s' is not valid for this issue.", req.Transition.ID), errcol.NotFound)
	actionID, err := strconv.Atoi(req.Transition.ID)
	if err != nil {
		return errorResult(notValid)
	}
	ids, ok, err := a.screens.TransitionFields(ctx, issue, actionID)
	if err != nil {
		return serverError(fmt.Errorf("resolving transition screen of %s: %w", issue.Key, err))
	}
	if !ok {
		return errorResult(notValid)
	}

	return a.Assemble(ctx, req, NewFieldSet(ids...).With(model.FieldComment), Context{
		Kind:  Transition,
		Issue: issueContext(issue),
	})
}

func issueContext(issue *model.Issue) field.IssueContext {
	return field.IssueContext{ProjectID: issue.ProjectID, IssueTypeID: issue.IssueTypeID, Issue: issue}
}

func errorResult(errs *errcol.Collection) *Result {
	return &Result{Params: field.NewParams(), Errors: errs}
}

func serverError(err error) *Result {
	return errorResult(errcol.Of(err.Error(), errcol.ServerError))
}
