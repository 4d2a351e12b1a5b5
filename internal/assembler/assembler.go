// Package assembler turns a client's "fields" and "update" maps into the
// ordered, validated field operations applied to an issue on create, edit
// and transition.
package assembler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/field"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// Kind is the operation a request is assembled for.
type Kind int

const (
	Create Kind = iota
	Edit
	Transition
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Edit:
		return "edit"
	case Transition:
		return "transition"
	}
	return "unknown"
}

// Context carries what the assembly depends on besides the request.
type Context struct {
	Kind Kind

	// MustHaveFields rejects requests with neither fields nor update.
	MustHaveFields bool

	Issue field.IssueContext
}

// FieldSet is an ordered set of field ids.
type FieldSet struct {
	ids []string
	set map[string]struct{}
}

// NewFieldSet returns a set of the given ids in first-seen order.
func NewFieldSet(ids ...string) FieldSet {
	s := FieldSet{set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *FieldSet) add(id string) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	s.ids = append(s.ids, id)
}

// With returns a copy of s extended by ids.
func (s FieldSet) With(ids ...string) FieldSet {
	out := NewFieldSet(s.ids...)
	for _, id := range ids {
		out.add(id)
	}
	return out
}

// Contains reports whether id is in the set.
func (s FieldSet) Contains(id string) bool {
	_, ok := s.set[id]
	return ok
}

// IDs returns the ids in order.
func (s FieldSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

// FieldOperations is the resolved operation list of one field.
type FieldOperations struct {
	FieldID    string
	Operations []field.Operation
}

// Result is the outcome of one assembly. It is not modified after Assemble
// returns.
type Result struct {
	// Operations holds the accepted operations per field, in the order the
	// fields were first seen.
	Operations []FieldOperations

	Params *field.Params
	Errors *errcol.Collection

	// ProjectID, IssueTypeID and ParentIDOrKey are resolved outside the
	// field operations.
	ProjectID     int64
	IssueTypeID   string
	ParentIDOrKey string

	project *model.Project
}

// HasErrors reports whether the assembly recorded any error.
func (r *Result) HasErrors() bool {
	return r.Errors.HasAnyErrors()
}

// OperationsFor returns the operations recorded for a field.
func (r *Result) OperationsFor(id string) ([]field.Operation, bool) {
	for _, fo := range r.Operations {
		if fo.FieldID == id {
			return fo.Operations, true
		}
	}
	return nil, false
}

// Registry resolves field ids.
type Registry interface {
	Field(id string) (field.Field, bool)
}

// Resolver resolves project and issue type references.
type Resolver interface {
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*model.Project, error)
	GetIssueType(ctx context.Context, id string) (*model.IssueType, error)
	GetIssueTypeByName(ctx context.Context, name string) (*model.IssueType, error)
}

// Assembler assembles requests against a field registry and resolver.
type Assembler struct {
	registry Registry
	resolver Resolver
	screens  Screens
}

// New returns an assembler. screens may be nil when only Assemble is used.
func New(registry Registry, resolver Resolver, screens Screens) *Assembler {
	return &Assembler{registry: registry, resolver: resolver, screens: screens}
}

// Message formats shared with callers and tests.
const (
	msgFieldsRequired = "one of 'fields' or 'update' required"
	msgCannotBeSet    = "Field '%s' cannot be set. It is not on the appropriate screen, or unknown."
	msgNoUpdate       = "Field does not support update '%s'"
	msgDuplicate      = "Field '%s' cannot appear in both 'fields' and 'update'"
	msgNoSuchField    = "Field with id '%s' does not exist"
	msgUnsupportedOp  = "Field with id '%s' and name '%s' does not support operation '%s'. Supported operation(s) are: '%s'"
)

// assembly is the mutable state of one Assemble call.
type assembly struct {
	*Assembler
	ctx        context.Context
	actx       Context
	result     *Result
	order      []string
	ops        map[string][]field.Operation
	fromFields map[string]bool
	dropped    map[string]bool
}

// Assemble merges req.Fields and req.Update into per-field operations,
// checks them against valid and applies the supported ones to a fresh
// parameter bag. Every problem is recorded in the result's errors; nothing
// stops early except the missing fields/update check.
func (a *Assembler) Assemble(ctx context.Context, req Request, valid FieldSet, actx Context) *Result {
	params := field.NewParams()
	params.ApplyDefaults = actx.Kind == Create
	params.RetainExisting = actx.Kind != Create

	st := &assembly{
		Assembler:  a,
		ctx:        ctx,
		actx:       actx,
		result:     &Result{Params: params, Errors: errcol.New()},
		ops:        make(map[string][]field.Operation),
		fromFields: make(map[string]bool),
		dropped:    make(map[string]bool),
	}
	if actx.Kind != Create || actx.Issue.ProjectID != 0 {
		st.result.ProjectID = actx.Issue.ProjectID
		st.result.IssueTypeID = actx.Issue.IssueTypeID
	}

	if actx.MustHaveFields && len(req.Fields) == 0 && len(req.Update) == 0 {
		st.result.Errors.AddErrorMessage(msgFieldsRequired, errcol.ValidationFailed)
		return st.result
	}

	st.handleFields(req.Fields, valid)
	st.handleUpdate(req.Update, valid)
	params.HistoryMetadata = req.HistoryMetadata
	st.apply()

	for _, id := range st.order {
		if st.dropped[id] {
			continue
		}
		st.result.Operations = append(st.result.Operations, FieldOperations{FieldID: id, Operations: st.ops[id]})
	}
	return st.result
}

func (st *assembly) record(id string, ops []field.Operation) {
	if _, ok := st.ops[id]; !ok {
		st.order = append(st.order, id)
	}
	st.ops[id] = ops
}

func (st *assembly) handleFields(fields []FieldValue, valid FieldSet) {
	errs := st.result.Errors
	for _, fv := range fields {
		switch {
		case fv.ID == model.FieldParent:
			st.result.ParentIDOrKey = parseParent(fv.Value, errs)
		case st.actx.Kind == Create && fv.ID == model.FieldProject:
			if st.resolved() {
				continue
			}
			if p := st.parseProject(fv.Value, errs); p != nil {
				st.result.ProjectID = p.ID
				st.result.project = p
			}
		case st.actx.Kind == Create && fv.ID == model.FieldIssueType:
			if st.resolved() {
				continue
			}
			st.result.IssueTypeID = st.parseIssueType(fv.Value, errs)
		case valid.Contains(fv.ID):
			st.addSetOperation(fv.ID, fv.Value)
		default:
			errs.AddError(fv.ID, fmt.Sprintf(msgCannotBeSet, fv.ID), errcol.ValidationFailed)
		}
	}
}

// resolved reports whether the create context already carries the
// project and issue type.
func (st *assembly) resolved() bool {
	return st.actx.Issue.ProjectID != 0
}

func (st *assembly) addSetOperation(id string, value json.RawMessage) {
	f, ok := st.registry.Field(id)
	if ok {
		if rf, ok := f.(field.RestOperations); ok && field.Supports(rf, field.OpSet) {
			st.record(id, []field.Operation{field.Set(value)})
			st.fromFields[id] = true
			return
		}
	}
	st.result.Errors.AddError(id, fmt.Sprintf(msgNoUpdate, id), errcol.ValidationFailed)
}

func (st *assembly) handleUpdate(update []FieldUpdate, valid FieldSet) {
	errs := st.result.Errors
	for _, fu := range update {
		if !valid.Contains(fu.ID) {
			errs.AddError(fu.ID, fmt.Sprintf(msgCannotBeSet, fu.ID), errcol.ValidationFailed)
			continue
		}
		if st.fromFields[fu.ID] {
			errs.AddErrorMessage(fmt.Sprintf(msgDuplicate, fu.ID), errcol.ValidationFailed)
			st.dropped[fu.ID] = true
			continue
		}
		st.record(fu.ID, fu.Operations)
	}
}

func (st *assembly) apply() {
	errs := st.result.Errors
	for _, id := range st.order {
		if st.dropped[id] {
			continue
		}
		f, ok := st.registry.Field(id)
		if !ok {
			msg := fmt.Sprintf(msgNoSuchField, id)
			if is := st.actx.Issue.Issue; is != nil {
				msg += fmt.Sprintf(" for issue '%s'", is.Key)
			}
			errs.AddErrorMessage(msg, errcol.ValidationFailed)
			continue
		}
		rf, ok := f.(field.RestOperations)
		if !ok {
			errs.AddError(id, fmt.Sprintf(msgNoUpdate, id), errcol.ValidationFailed)
			continue
		}

		ic := st.actx.Issue
		ic.ProjectID = st.result.ProjectID
		ic.IssueTypeID = st.result.IssueTypeID
		for _, op := range st.ops[id] {
			if !field.Supports(rf, op.Name) {
				errs.AddError(id, fmt.Sprintf(msgUnsupportedOp, id, rf.Name(), op.Name,
					strings.Join(rf.SupportedOperations(), ",")), errcol.ValidationFailed)
				continue
			}
			errs.AddAll(rf.Apply(st.ctx, ic, st.result.Params, op))
		}
	}
}

// parseParent reads the parent reference, trying "id" before "key".
func parseParent(raw json.RawMessage, errs *errcol.Collection) string {
	var ref map[string]any
	if err := json.Unmarshal(raw, &ref); err == nil && ref != nil {
		for _, key := range []string{"id", "key"} {
			switch v := ref[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}
	errs.AddError(model.FieldParent, "Parent must be an object with an 'id' or a 'key'", errcol.ValidationFailed)
	return ""
}

type resourceRef struct {
	ID   json.RawMessage `json:"id"`
	Key  string          `json:"key"`
	Name string          `json:"name"`
}

func (r resourceRef) id() string {
	if isNull(r.ID) {
		return ""
	}
	return strings.Trim(string(r.ID), `"`)
}

// parseProject resolves {"id": ..} or {"key": ..}. The id wins when both
// are given.
func (st *assembly) parseProject(raw json.RawMessage, errs *errcol.Collection) *model.Project {
	var ref resourceRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		errs.AddError(model.FieldProject, "Project must be an object with an 'id' or a 'key'", errcol.ValidationFailed)
		return nil
	}

	if id := ref.id(); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			errs.AddError(model.FieldProject, "invalid id: "+id, errcol.ValidationFailed)
			return nil
		}
		p, err := st.resolver.GetProject(st.ctx, n)
		if err == nil {
			return p
		}
		if !store.IsNotFound(err) {
			errs.AddErrorMessage(err.Error(), errcol.ServerError)
			return nil
		}
	} else if ref.Key != "" {
		p, err := st.resolver.GetProjectByKey(st.ctx, ref.Key)
		if err == nil {
			return p
		}
		if !store.IsNotFound(err) {
			errs.AddErrorMessage(err.Error(), errcol.ServerError)
			return nil
		}
	}

	errs.AddError(model.FieldProject, "Could not find project by id or key.", errcol.ValidationFailed)
	return nil
}

// parseIssueType returns the id given, or resolves a name to its id.
func (st *assembly) parseIssueType(raw json.RawMessage, errs *errcol.Collection) string {
	var ref resourceRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		errs.AddError(model.FieldIssueType, "Issue type must be an object with an 'id' or a 'name'", errcol.ValidationFailed)
		return ""
	}
	if id := ref.id(); id != "" {
		return id
	}
	if ref.Name != "" {
		it, err := st.resolver.GetIssueTypeByName(st.ctx, ref.Name)
		if err == nil {
			return it.ID
		}
		if !store.IsNotFound(err) {
			errs.AddErrorMessage(err.Error(), errcol.ServerError)
			return ""
		}
	}
	errs.AddError(model.FieldIssueType, "Could not find issuetype by id or name.", errcol.ValidationFailed)
	return ""
}
