// Package catalog defines the entity catalogs exchanged between the
// relational source, the document-store target, and the migration engine.
package catalog

import (
	"context"
	"fmt"
)

// ForeignKeyRef represents a single foreign key reference on a source entity
type ForeignKeyRef struct {
	Column           string `json:"column"`
	ReferencedEntity string `json:"referenced_entity"`
	ReferencedColumn string `json:"referenced_column"`
}

// SourceEntity represents one migratable entity (table) in the source database
type SourceEntity struct {
	Name        string          `json:"name"`
	RecordCount int64           `json:"record_count"`
	ForeignKeys []ForeignKeyRef `json:"foreign_keys,omitempty"`
}

// TargetEntity represents one collection in the target document store
type TargetEntity struct {
	Name          string `json:"name"`
	DocumentCount int64  `json:"document_count"`
}

// Source defines the interface for reading the source entity catalog
type Source interface {
	// Entities returns every user entity with its record count and raw
	// foreign key references. References are reported as declared; the
	// graph builder decides what to keep.
	Entities(ctx context.Context) ([]SourceEntity, error)
}

// Target defines the interface for reading the target collection catalog
type Target interface {
	// Entities returns every collection with its document count.
	Entities(ctx context.Context) ([]TargetEntity, error)
}

// UnavailableError indicates a catalog could not be read at all.
// Planning cannot proceed without both catalogs.
type UnavailableError struct {
	Side string // "source" or "target"
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s catalog unavailable: %v", e.Side, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
