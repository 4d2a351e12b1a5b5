// Package compose is an interactive terminal form that files an issue on a
// running server using its create metadata.
package compose

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/remote"
	"github.com/nhle/issue-rest/internal/theme"
)

// ErrAborted is reported when the user leaves the form.
var ErrAborted = errors.New("aborted")

// Client is the server API the composer needs.
type Client interface {
	CreateMeta(ctx context.Context, projectKeys []string) (*remote.CreateMetaResponse, error)
	CreateIssue(ctx context.Context, body any) (*remote.CreatedIssue, error)
}

// target is a project and one of its creatable issue types.
type target struct {
	ProjectKey string
	IssueType  remote.MetaIssueType
}

func (t target) label() string {
	return t.ProjectKey + " / " + t.IssueType.Name
}

func (t target) hasField(id string) bool {
	for _, f := range t.IssueType.Fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

type choice struct {
	ID   string
	Name string
}

type options struct {
	targets    []target
	priorities []choice
}

// optionsFrom lists every non sub-task issue type of every project and the
// priorities offered by their create screens.
func optionsFrom(cm *remote.CreateMetaResponse) options {
	var out options
	seen := make(map[string]bool)
	for _, p := range cm.Projects {
		for _, it := range p.IssueTypes {
			if it.Subtask {
				continue
			}
			out.targets = append(out.targets, target{ProjectKey: p.Key, IssueType: it})
			for _, f := range it.Fields {
				if f.ID != model.FieldPriority {
					continue
				}
				for _, v := range f.AllowedValues {
					if !seen[v.ID] {
						seen[v.ID] = true
						out.priorities = append(out.priorities, choice{ID: v.ID, Name: v.Name})
					}
				}
			}
		}
	}
	return out
}

// formBindings holds form values on the heap so that huh's Value()
// pointers stay valid across Bubble Tea model copies.
type formBindings struct {
	target      int
	summary     string
	description string
	priority    string
}

// buildRequest returns the create body for the form values. Optional
// fields are only sent when the target's create screen has them.
func buildRequest(t target, fb *formBindings) map[string]any {
	fields := map[string]any{
		model.FieldProject:   map[string]string{"key": t.ProjectKey},
		model.FieldIssueType: map[string]string{"id": t.IssueType.ID},
		model.FieldSummary:   strings.TrimSpace(fb.summary),
	}
	if d := strings.TrimSpace(fb.description); d != "" && t.hasField(model.FieldDescription) {
		fields[model.FieldDescription] = d
	}
	if fb.priority != "" && t.hasField(model.FieldPriority) {
		fields[model.FieldPriority] = map[string]string{"id": fb.priority}
	}
	return map[string]any{"fields": fields}
}

type state int

const (
	stateLoading state = iota
	stateForm
	stateSubmitting
	stateDone
)

type metaLoadedMsg struct {
	opts options
	err  error
}

type submittedMsg struct {
	created *remote.CreatedIssue
	err     error
}

// Model is the Bubble Tea model of the composer.
type Model struct {
	ctx         context.Context
	client      Client
	projectKeys []string

	state   state
	spinner spinner.Model
	form    *huh.Form
	fb      *formBindings
	opts    options

	created *remote.CreatedIssue
	err     error
}

// New creates a composer limited to projectKeys (all when empty).
func New(ctx context.Context, client Client, projectKeys []string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:         ctx,
		client:      client,
		projectKeys: projectKeys,
		spinner:     sp,
		fb:          &formBindings{},
	}
}

// Result returns the created issue or the error that ended the session.
func (m Model) Result() (*remote.CreatedIssue, error) {
	return m.created, m.err
}

// Init starts loading create metadata.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadMeta())
}

func (m Model) loadMeta() tea.Cmd {
	return func() tea.Msg {
		cm, err := m.client.CreateMeta(m.ctx, m.projectKeys)
		if err != nil {
			return metaLoadedMsg{err: err}
		}
		return metaLoadedMsg{opts: optionsFrom(cm)}
	}
}

func (m Model) submit() tea.Cmd {
	t := m.opts.targets[m.fb.target]
	body := buildRequest(t, m.fb)
	return func() tea.Msg {
		created, err := m.client.CreateIssue(m.ctx, body)
		return submittedMsg{created: created, err: err}
	}
}

// Update handles messages for the composer.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.state != stateForm {
			m.err = ErrAborted
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.state == stateLoading || m.state == stateSubmitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case metaLoadedMsg:
		if msg.err == nil && len(msg.opts.targets) == 0 {
			msg.err = errors.New("no project offers an issue type you can create")
		}
		if msg.err != nil {
			m.state = stateDone
			m.err = msg.err
			return m, tea.Quit
		}
		m.opts = msg.opts
		m.form = m.buildForm()
		m.state = stateForm
		return m, m.form.Init()

	case submittedMsg:
		m.state = stateDone
		m.created = msg.created
		m.err = msg.err
		return m, tea.Quit
	}

	if m.state != stateForm || m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.state = stateSubmitting
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		m.state = stateDone
		m.err = ErrAborted
		return m, tea.Quit
	}
	return m, cmd
}

func (m *Model) buildForm() *huh.Form {
	targets := make([]huh.Option[int], 0, len(m.opts.targets))
	for i, t := range m.opts.targets {
		targets = append(targets, huh.NewOption(t.label(), i))
	}

	fields := []huh.Field{
		huh.NewSelect[int]().
			Title("Project / issue type").
			Options(targets...).
			Value(&m.fb.target),
		huh.NewInput().
			Title("Summary").
			Placeholder("What is the problem?").
			Value(&m.fb.summary).
			Validate(validateSummary),
		huh.NewText().
			Title("Description").
			Value(&m.fb.description),
	}
	if len(m.opts.priorities) > 0 {
		prios := []huh.Option[string]{huh.NewOption("(default)", "")}
		for _, p := range m.opts.priorities {
			prios = append(prios, huh.NewOption(p.Name, p.ID))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Priority").
			Options(prios...).
			Value(&m.fb.priority))
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

func validateSummary(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("summary is required")
	}
	if utf8.RuneCountInString(s) > 255 {
		return errors.New("summary must be less than 255 characters")
	}
	return nil
}

// View renders the composer.
func (m Model) View() string {
	switch m.state {
	case stateLoading:
		return m.spinner.View() + " Loading create metadata..."
	case stateSubmitting:
		return m.spinner.View() + " Creating issue..."
	case stateForm:
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.HeaderStyle.Render("New issue"),
			"",
			m.form.View(),
			theme.HelpStyle.Render("enter: next  shift+tab: back  esc: cancel"),
		)
	}
	if errors.Is(m.err, ErrAborted) {
		return theme.HelpStyle.Render("Cancelled.") + "\n"
	}
	if m.err != nil {
		return renderError(m.err) + "\n"
	}
	return m.renderCreated() + "\n"
}

func (m Model) renderCreated() string {
	lines := []string{"Created " + theme.SuccessStyle.Render(m.created.Key)}
	if m.created.Self != "" {
		lines = append(lines, theme.HelpStyle.Render(m.created.Self))
	}
	for i, p := range m.opts.priorities {
		if p.ID == m.fb.priority {
			lines = append(lines, "Priority "+theme.PriorityStyle(i+1, len(m.opts.priorities)).Render(p.Name))
		}
	}
	return theme.PanelStyle.Render(strings.Join(lines, "\n"))
}

// renderError lists the general messages and field errors of an error
// collection, or the plain error text.
func renderError(err error) string {
	var coll *errcol.Collection
	if !errors.As(err, &coll) {
		return theme.ErrorStyle.Render(err.Error())
	}
	var lines []string
	for _, msg := range coll.Messages() {
		lines = append(lines, theme.ErrorStyle.Render(msg))
	}
	errs := coll.Errors()
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("%s: %s", theme.FieldStyle.Render(id), theme.ErrorStyle.Render(errs[id])))
	}
	return theme.PanelStyle.Render(strings.Join(lines, "\n"))
}

// Run shows the composer until the issue is created or the user cancels.
// Cancelling is not an error.
func Run(ctx context.Context, client Client, projectKeys []string) (*remote.CreatedIssue, error) {
	p := tea.NewProgram(New(ctx, client, projectKeys), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	created, err := m.Result()
	if errors.Is(err, ErrAborted) {
		return nil, nil
	}
	return created, err
}
