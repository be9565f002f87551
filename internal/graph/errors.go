package graph

import (
	"fmt"
	"strings"
)

// CycleError indicates the foreign key references form at least one cycle.
// Members holds every entity participating in a cyclic component, sorted.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among entities: %s", strings.Join(e.Members, ", "))
}
