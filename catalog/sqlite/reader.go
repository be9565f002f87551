// Package sqlite reads the source migration catalog from a SQLite or
// libSQL database using sqlite_master and PRAGMA queries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/docshift/docshift/catalog"
)

// Reader implements catalog.Source for SQLite. libSQL connections use the
// same pragma surface, so the reader serves both drivers.
type Reader struct {
	db *sql.DB
}

// NewReader creates a SQLite catalog reader over an open connection.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Entities returns every user table with its row count and foreign key
// references. Internal sqlite_* tables are skipped.
func (r *Reader) Entities(ctx context.Context) ([]catalog.SourceEntity, error) {
	tables, err := r.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	entities := make([]catalog.SourceEntity, 0, len(tables))
	for _, tableName := range tables {
		entity := catalog.SourceEntity{Name: tableName}

		count, err := r.rowCount(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to count rows for table %s: %w", tableName, err)
		}
		entity.RecordCount = count

		foreignKeys, err := r.foreignKeys(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", tableName, err)
		}
		entity.ForeignKeys = foreignKeys

		entities = append(entities, entity)
	}

	return entities, nil
}

func (r *Reader) tableNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tableNames = append(tableNames, tableName)
	}

	return tableNames, rows.Err()
}

func (r *Reader) rowCount(ctx context.Context, tableName string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(tableName))
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Reader) foreignKeys(ctx context.Context, tableName string) ([]catalog.ForeignKeyRef, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", pq.QuoteIdentifier(tableName))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Rows belonging to one multi-column constraint share an id; the first
	// (seq 0) column pair keeps the dependency edge.
	seen := make(map[int]bool)
	var refs []catalog.ForeignKeyRef

	for rows.Next() {
		var id, seq int
		var table, from string
		var to sql.NullString
		var onUpdate, onDelete, match string

		// PRAGMA foreign_key_list returns: id, seq, table, from, to, on_update, on_delete, match
		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		// A NULL "to" means the reference targets the parent's primary key
		// without naming it.
		refs = append(refs, catalog.ForeignKeyRef{
			Column:           from,
			ReferencedEntity: table,
			ReferencedColumn: to.String,
		})
	}

	return refs, rows.Err()
}
