// Package transfer copies entity records from the relational source into
// the document store.
package transfer

import (
	"context"
	"time"

	"github.com/docshift/docshift/internal/planner"
)

// Result reports the outcome of one entity migration.
type Result struct {
	Success     bool
	Transferred int64
	Collection  string
	Duration    time.Duration
}

// Executor performs the actual copy for one scheduled entity. It does not
// retry internally; retry is an explicit operator re-selection. The call
// honors ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, entity planner.PlanEntity) (*Result, error)
}
