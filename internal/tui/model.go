// Package tui renders the interactive migration loop in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/juju/collections/set"

	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/session"
	"github.com/docshift/docshift/internal/strategy"
	"github.com/docshift/docshift/internal/syncstate"
	"github.com/docshift/docshift/internal/transfer"
)

// screen names the view being rendered.
type screen int

const (
	screenAnalyzing screen = iota
	screenSelect
	screenExecuting
	screenContinue
	screenError
	screenDone
)

// row is one pending entity in the plan listing.
type row struct {
	entity  planner.PlanEntity
	phase   int
	missing []string
}

func (r row) eligible() bool {
	return len(r.missing) == 0
}

// analysisDoneMsg reports a finished Refresh.
type analysisDoneMsg struct {
	err error
}

// executionDoneMsg reports a finished Select.
type executionDoneMsg struct {
	entity string
	err    error
}

// eventLog captures the session events emitted during a Select call so the
// continue screen can show the executor outcome.
type eventLog struct {
	mu     sync.Mutex
	events []session.Event
}

func (l *eventLog) add(e session.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func (l *eventLog) lastResult() *transfer.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == session.EventExecutionResult && l.events[i].Result != nil {
			return l.events[i].Result
		}
	}
	return nil
}

// Model drives the docshift migrate terminal UI over a session.
type Model struct {
	session *session.Session
	events  *eventLog
	env     string

	screen    screen
	rows      []row
	cursor    int
	executing string
	notice    string
	spinner   spinner.Model

	width  int
	height int
	err    error
}

// New builds the interactive model around a fresh session. The model claims
// cfg.Notify for its own event capture.
func New(cfg session.Config, env string) *Model {
	log := &eventLog{}
	cfg.Notify = log.add

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	return &Model{
		session: session.New(cfg),
		events:  log,
		env:     env,
		screen:  screenAnalyzing,
		spinner: sp,
	}
}

// Err returns the fatal error that ended the UI, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.spinner.Tick)
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return analysisDoneMsg{err: m.session.Refresh(context.Background())}
	}
}

func (m *Model) selectCmd(name string) tea.Cmd {
	return func() tea.Msg {
		return executionDoneMsg{entity: name, err: m.session.Select(context.Background(), name)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.screen == screenAnalyzing || m.screen == screenExecuting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case analysisDoneMsg:
		return m.handleAnalysisDone(msg)

	case executionDoneMsg:
		return m.handleExecutionDone(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.screen = screenDone
		return m, tea.Quit
	}

	switch m.screen {
	case screenSelect:
		return m.handleSelectKey(msg)

	case screenContinue:
		switch msg.String() {
		case "y", "enter":
			if err := m.session.Continue(true); err != nil {
				m.err = err
				m.screen = screenError
				return m, nil
			}
			m.reloadRows()
			m.notice = ""
			m.screen = screenSelect
			return m, nil
		case "n", "q":
			_ = m.session.Continue(false)
			m.screen = screenDone
			return m, tea.Quit
		}

	case screenError, screenDone:
		switch msg.String() {
		case "q", "enter", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *Model) handleSelectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		_ = m.session.Quit()
		m.screen = screenDone
		return m, tea.Quit

	case "r":
		m.notice = ""
		m.screen = screenAnalyzing
		return m, tea.Batch(m.refreshCmd(), m.spinner.Tick)

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case "enter":
		if len(m.rows) == 0 {
			return m, nil
		}
		name := m.rows[m.cursor].entity.Name
		m.executing = name
		m.notice = ""
		m.events.reset()
		m.screen = screenExecuting
		return m, tea.Batch(m.selectCmd(name), m.spinner.Tick)
	}

	return m, nil
}

func (m *Model) handleAnalysisDone(msg analysisDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if m.session.Plan() == nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		// A refresh failure with an earlier plan keeps the stale plan on
		// screen rather than tearing the session down.
		m.notice = fmt.Sprintf("refresh failed, showing last known state: %v", msg.err)
	}
	m.reloadRows()
	m.screen = screenSelect
	if len(m.rows) == 0 {
		m.notice = "all entities are in sync"
	}
	return m, nil
}

func (m *Model) handleExecutionDone(msg executionDoneMsg) (tea.Model, tea.Cmd) {
	m.executing = ""
	if msg.err != nil {
		m.notice = noticeForError(msg.err)
		m.reloadRows()
		m.screen = screenSelect
		return m, nil
	}
	m.reloadRows()
	m.screen = screenContinue
	return m, nil
}

// noticeForError turns a rejected or failed selection into the one-line
// notice shown above the listing.
func noticeForError(err error) string {
	var dep *session.DependencyNotSatisfiedError
	if errors.As(err, &dep) {
		return fmt.Sprintf("%s is blocked: migrate %s first", dep.Entity, strings.Join(dep.Missing, ", "))
	}
	var synced *session.AlreadySyncedError
	if errors.As(err, &synced) {
		return fmt.Sprintf("%s is already synced, nothing to do", synced.Entity)
	}
	var failed *session.ExecutionFailedError
	if errors.As(err, &failed) {
		return fmt.Sprintf("%s failed and can be retried: %v", failed.Entity, failed.Err)
	}
	return err.Error()
}

// reloadRows rebuilds the listing from the current plan: every entity still
// pending, in phase order, with its currently unsatisfied dependencies.
func (m *Model) reloadRows() {
	m.rows = nil
	plan := m.session.Plan()
	if plan == nil {
		return
	}
	migrated := set.NewStrings(m.session.MigratedNames()...)
	for _, phase := range plan.Phases {
		for _, e := range phase.Entities {
			if !e.NeedsMigration || migrated.Contains(e.Name) {
				continue
			}
			missing := set.NewStrings(e.Dependencies...).Difference(migrated).SortedValues()
			m.rows = append(m.rows, row{entity: e, phase: phase.Number, missing: missing})
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = 0
	}
}

func (m *Model) View() string {
	switch m.screen {
	case screenAnalyzing:
		return m.viewAnalyzing()
	case screenSelect:
		return m.viewSelect()
	case screenExecuting:
		return m.viewExecuting()
	case screenContinue:
		return m.viewContinue()
	case screenError:
		return m.viewError()
	case screenDone:
		return m.viewDone()
	}
	return ""
}

func (m *Model) header() string {
	return renderHeader(fmt.Sprintf("docshift migrate (%s)", m.env)) + "\n\n"
}

func (m *Model) viewAnalyzing() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString(fmt.Sprintf("%s Analyzing source and target catalogs...\n", m.spinner.View()))
	return b.String()
}

func (m *Model) viewSelect() string {
	var b strings.Builder
	b.WriteString(m.header())

	if plan := m.session.Plan(); plan != nil {
		b.WriteString(summaryBoxStyle.Render(m.summaryLines(plan)))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + warnStyle.Render(iconWarning+" "+m.notice) + "\n")
	}

	lastPhase := 0
	for i, r := range m.rows {
		if r.phase != lastPhase {
			b.WriteString(phaseHeaderStyle.Render(fmt.Sprintf("Phase %d", r.phase)) + "\n")
			lastPhase = r.phase
		}
		b.WriteString(m.renderRow(i, r) + "\n")
	}

	b.WriteString(renderStatusBar("↑/↓ move · enter migrate · r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderRow(i int, r row) string {
	line := fmt.Sprintf("%-24s %10d records   %s", r.entity.Name, r.entity.RecordCount, describeStrategy(r.entity))
	if !r.eligible() {
		return renderBlocked(fmt.Sprintf("%s   waits for: %s", line, strings.Join(r.missing, ", ")))
	}
	return renderOption(i == m.cursor, line)
}

func describeStrategy(e planner.PlanEntity) string {
	if e.Strategy == strategy.Embedded {
		return fmt.Sprintf("embeds into %s", e.Parent)
	}
	return string(e.Strategy)
}

func (m *Model) summaryLines(plan *planner.Plan) string {
	lines := []string{
		fmt.Sprintf("%d entities across %d phases, %d records to migrate",
			plan.EntitiesToMigrate, plan.TotalPhases, plan.RecordsToMigrate),
	}
	if state := m.session.DatabaseState(); state != nil {
		lines = append(lines, fmt.Sprintf("database state: %s", renderOverall(state.Overall)))
	}
	if migrated := m.session.MigratedNames(); len(migrated) > 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("migrated this session: %s", strings.Join(migrated, ", "))))
	}
	return strings.Join(lines, "\n")
}

func renderOverall(o syncstate.OverallStatus) string {
	switch o {
	case syncstate.OverallSynced:
		return successStyle.Render(string(o))
	case syncstate.OverallPartial:
		return warnStyle.Render(string(o))
	default:
		return errorStyle.Render(string(o))
	}
}

func (m *Model) viewExecuting() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString(fmt.Sprintf("%s Migrating %s...\n", m.spinner.View(), infoStyle.Render(m.executing)))
	return b.String()
}

func (m *Model) viewContinue() string {
	var b strings.Builder
	b.WriteString(m.header())

	if res := m.events.lastResult(); res != nil {
		b.WriteString(renderSuccess(fmt.Sprintf("%s migrated: %d documents in %s",
			res.Collection, res.Transferred, res.Duration.Round(time.Millisecond))))
		b.WriteString("\n")
	}
	if state := m.session.DatabaseState(); state != nil {
		b.WriteString(fmt.Sprintf("database state: %s\n", renderOverall(state.Overall)))
	}

	b.WriteString("\nMigrate another entity? " + mutedStyle.Render("[y/n]") + "\n")
	return b.String()
}

func (m *Model) viewError() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString(renderError(fmt.Sprintf("%v", m.err)) + "\n\n")
	b.WriteString(renderStatusBar("q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) viewDone() string {
	var b strings.Builder
	b.WriteString(m.header())
	if migrated := m.session.MigratedNames(); len(migrated) > 0 {
		b.WriteString(renderSuccess(fmt.Sprintf("migrated %d entities this session: %s",
			len(migrated), strings.Join(migrated, ", "))) + "\n")
	} else {
		b.WriteString(mutedStyle.Render("no entities migrated this session") + "\n")
	}
	return b.String()
}

// Run starts the interactive migration loop and blocks until the operator
// ends the session.
func Run(cfg session.Config, env string) error {
	model := New(cfg, env)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("failed to run migration ui: %w", err)
	}
	return model.Err()
}
