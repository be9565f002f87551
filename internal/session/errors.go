package session

import (
	"fmt"
	"strings"
)

// AlreadySyncedError reports a selection with nothing to transfer. It
// blocks one selection and nothing else.
type AlreadySyncedError struct {
	Entity string
}

func (e *AlreadySyncedError) Error() string {
	return fmt.Sprintf("%s is already synced", e.Entity)
}

// DependencyNotSatisfiedError reports a selection blocked by unmigrated
// dependencies. Missing holds the unsatisfied entity names, sorted.
type DependencyNotSatisfiedError struct {
	Entity  string
	Missing []string
}

func (e *DependencyNotSatisfiedError) Error() string {
	return fmt.Sprintf("dependencies of %s not satisfied: %s", e.Entity, strings.Join(e.Missing, ", "))
}

// ExecutionFailedError reports an executor failure. The entity stays out
// of the migrated set and remains eligible for retry.
type ExecutionFailedError struct {
	Entity string
	Err    error
}

func (e *ExecutionFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("migration of %s failed", e.Entity)
	}
	return fmt.Sprintf("migration of %s failed: %v", e.Entity, e.Err)
}

func (e *ExecutionFailedError) Unwrap() error {
	return e.Err
}
