package session

import (
	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/syncstate"
	"github.com/docshift/docshift/internal/transfer"
)

// EventType enumerates session event kinds.
type EventType string

const (
	// EventPlanReady announces a freshly assembled plan after analysis.
	EventPlanReady EventType = "plan_ready"
	// EventValidationBlocked reports a selection rejected during validation.
	EventValidationBlocked EventType = "validation_blocked"
	// EventAlreadySynced reports a selection of an entity with nothing to do.
	EventAlreadySynced EventType = "already_synced"
	// EventExecutionStarted marks the hand-off to the migration executor.
	EventExecutionStarted EventType = "execution_started"
	// EventExecutionResult carries the executor outcome, success or failure.
	EventExecutionResult EventType = "execution_result"
	// EventStateRefreshed carries the database state recomputed after a
	// confirmed migration.
	EventStateRefreshed EventType = "state_refreshed"
	// EventSessionEnded marks the transition into the terminal state.
	EventSessionEnded EventType = "session_ended"
)

// Event is a generic container for session events, suitable for any
// presentation layer. Only a subset of fields is set depending on Type.
type Event struct {
	Type EventType `json:"type"`

	// Entity the event refers to, when any
	Entity string `json:"entity,omitempty"`

	// Unsatisfied dependencies for a blocked selection
	Missing []string `json:"missing,omitempty"`

	// Fresh plan after analysis
	Plan *planner.Plan `json:"plan,omitempty"`

	// Database state after analysis or post-migration refresh
	State *syncstate.DatabaseState `json:"state,omitempty"`

	// Executor outcome
	Result *transfer.Result `json:"result,omitempty"`

	// Error detail for failures; nil on success events
	Err error `json:"-"`
}
