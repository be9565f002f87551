package planner

import (
	"fmt"
	"strings"
)

// UnresolvableError indicates entities that can never be placed in a phase
// because a dependency is neither synced nor schedulable. Stuck holds the
// affected entity names, sorted.
type UnresolvableError struct {
	Stuck []string
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("unresolvable dependencies; cannot schedule entities: %s", strings.Join(e.Stuck, ", "))
}
