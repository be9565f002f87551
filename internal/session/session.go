// Package session drives the interactive migration loop: analyze, offer a
// selection, validate it, execute, and re-validate after every step.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/juju/collections/set"

	"github.com/docshift/docshift/catalog"
	"github.com/docshift/docshift/internal/graph"
	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/strategy"
	"github.com/docshift/docshift/internal/syncstate"
	"github.com/docshift/docshift/internal/transfer"
)

// State names the controller's position in the migration loop.
type State string

const (
	StateAnalyzing         State = "analyzing"
	StateAwaitingSelection State = "awaiting_selection"
	StateValidating        State = "validating"
	StateExecuting         State = "executing"
	StateUpdating          State = "updating"
	StateAwaitingContinue  State = "awaiting_continue"
	StateExit              State = "exit"
)

// Config wires the session's collaborators.
type Config struct {
	Source     catalog.Source
	Target     catalog.Target
	Executor   transfer.Executor
	Thresholds strategy.Thresholds

	// Notify receives session events. Called synchronously on the calling
	// goroutine; the sink must not call back into the session.
	Notify func(Event)
}

// Session owns the migration loop state, including the set of migrated
// entities. The set is seeded from synced entities at the first analysis,
// grows only through confirmed successful executions and later observations
// of synced entities, and is never rolled back within a session.
type Session struct {
	mu  sync.Mutex
	cfg Config

	state    State
	plan     *planner.Plan
	dbState  *syncstate.DatabaseState
	migrated set.Strings
	seeded   bool
}

// New builds a session in the analyzing state. Call Refresh to compute the
// first plan.
func New(cfg Config) *Session {
	return &Session{
		cfg:      cfg,
		state:    StateAnalyzing,
		migrated: set.NewStrings(),
	}
}

// State returns the current controller state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Plan returns the most recently assembled plan, nil before the first
// successful analysis.
func (s *Session) Plan() *planner.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// DatabaseState returns the most recent source/target comparison.
func (s *Session) DatabaseState() *syncstate.DatabaseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbState
}

// MigratedNames returns the migrated set, sorted.
func (s *Session) MigratedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrated.SortedValues()
}

// Selectable returns the entities the operator may select right now: still
// needing migration, not migrated this session, with every dependency in
// the migrated set. Ordered as the plan schedules them.
func (s *Session) Selectable() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectableLocked()
}

func (s *Session) selectableLocked() []string {
	if s.plan == nil {
		return nil
	}
	var names []string
	for _, e := range s.plan.PendingEntities() {
		if s.migrated.Contains(e.Name) {
			continue
		}
		if set.NewStrings(e.Dependencies...).Difference(s.migrated).IsEmpty() {
			names = append(names, e.Name)
		}
	}
	return names
}

// Refresh re-runs the full analysis: fetch both catalogs, compare, rebuild
// the graph, recompute phases, reclassify, and assemble a new plan. Valid
// from the initial state and between selections. Catalog, cycle, and
// unresolvable-dependency errors are fatal to the analysis; when a previous
// plan exists the session keeps it and returns to awaiting selection.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAnalyzing && s.state != StateAwaitingSelection {
		return fmt.Errorf("cannot refresh in state %s", s.state)
	}
	s.state = StateAnalyzing

	if err := s.analyzeLocked(ctx); err != nil {
		if s.plan != nil {
			s.state = StateAwaitingSelection
		}
		return err
	}

	s.state = StateAwaitingSelection
	s.emit(Event{Type: EventPlanReady, Plan: s.plan, State: s.dbState})
	return nil
}

func (s *Session) analyzeLocked(ctx context.Context) error {
	source, target, err := syncstate.Fetch(ctx, s.cfg.Source, s.cfg.Target)
	if err != nil {
		return err
	}
	dbState := syncstate.Compare(source, target)

	g, err := graph.Build(source)
	if err != nil {
		return err
	}

	synced := set.NewStrings(dbState.SyncedNames()...)
	if !s.seeded {
		s.migrated = synced
		s.seeded = true
	} else {
		s.migrated = s.migrated.Union(synced)
	}

	phases, err := planner.ComputePhases(g, s.migrated)
	if err != nil {
		return err
	}

	classes := strategy.Classify(source, g, s.cfg.Thresholds)
	s.plan = planner.Assemble(phases, g, dbState, classes)
	s.dbState = dbState
	return nil
}

// Select validates and, when the entity is eligible, executes one
// migration. Validation failures and executor failures both return the
// loop to awaiting selection without touching the migrated set; only a
// confirmed success adds the entity.
func (s *Session) Select(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingSelection {
		return fmt.Errorf("no selection expected in state %s", s.state)
	}
	if s.plan == nil {
		return fmt.Errorf("no plan computed yet")
	}

	s.state = StateValidating

	entity, ok := s.plan.Entity(name)
	if !ok {
		s.state = StateAwaitingSelection
		err := fmt.Errorf("unknown entity %q", name)
		s.emit(Event{Type: EventValidationBlocked, Entity: name, Err: err})
		return err
	}

	if s.migrated.Contains(name) || !entity.NeedsMigration {
		s.state = StateAwaitingSelection
		err := &AlreadySyncedError{Entity: name}
		s.emit(Event{Type: EventAlreadySynced, Entity: name, Err: err})
		return err
	}

	if missing := set.NewStrings(entity.Dependencies...).Difference(s.migrated); !missing.IsEmpty() {
		s.state = StateAwaitingSelection
		err := &DependencyNotSatisfiedError{Entity: name, Missing: missing.SortedValues()}
		s.emit(Event{Type: EventValidationBlocked, Entity: name, Missing: err.Missing, Err: err})
		return err
	}

	s.state = StateExecuting
	s.emit(Event{Type: EventExecutionStarted, Entity: name})

	result, execErr := s.cfg.Executor.Execute(ctx, entity)
	if execErr != nil || result == nil || !result.Success {
		s.state = StateAwaitingSelection
		if execErr == nil {
			execErr = fmt.Errorf("executor reported failure")
		}
		err := &ExecutionFailedError{Entity: name, Err: execErr}
		s.emit(Event{Type: EventExecutionResult, Entity: name, Result: result, Err: err})
		return err
	}

	s.state = StateUpdating
	s.migrated.Add(name)
	s.emit(Event{Type: EventExecutionResult, Entity: name, Result: result})

	// Re-read both catalogs so the operator sees the post-migration state.
	// A failed refresh keeps the previous comparison; the migration itself
	// stays confirmed.
	if source, target, err := syncstate.Fetch(ctx, s.cfg.Source, s.cfg.Target); err != nil {
		s.emit(Event{Type: EventStateRefreshed, Err: err})
	} else {
		s.dbState = syncstate.Compare(source, target)
		s.emit(Event{Type: EventStateRefreshed, State: s.dbState})
	}

	s.state = StateAwaitingContinue
	return nil
}

// Continue answers the post-migration prompt: proceed returns to selection,
// declining ends the session.
func (s *Session) Continue(proceed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingContinue {
		return fmt.Errorf("no continuation expected in state %s", s.state)
	}
	if proceed {
		s.state = StateAwaitingSelection
		return nil
	}
	s.state = StateExit
	s.emit(Event{Type: EventSessionEnded})
	return nil
}

// Quit ends the session from the selection prompt.
func (s *Session) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingSelection {
		return fmt.Errorf("cannot quit in state %s", s.state)
	}
	s.state = StateExit
	s.emit(Event{Type: EventSessionEnded})
	return nil
}

func (s *Session) emit(e Event) {
	if s.cfg.Notify != nil {
		s.cfg.Notify(e)
	}
}
