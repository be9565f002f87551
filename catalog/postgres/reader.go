// Package postgres reads the source migration catalog from a PostgreSQL
// database using information_schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/docshift/docshift/catalog"
)

// Reader implements catalog.Source for PostgreSQL.
type Reader struct {
	db *sql.DB
}

// NewReader creates a PostgreSQL catalog reader over an open connection.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Entities returns every base table in the current schema with its row
// count and foreign key references.
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
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	query := `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema()
			AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := r.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	// The catalog tracks single-column references; for a multi-column
	// constraint the first column pair keeps the dependency edge.
	seen := make(map[string]bool)
	var refs []catalog.ForeignKeyRef

	for rows.Next() {
		var constraintName, columnName, foreignTableName, foreignColumnName string
		if err := rows.Scan(&constraintName, &columnName, &foreignTableName, &foreignColumnName); err != nil {
			return nil, err
		}
		if seen[constraintName] {
			continue
		}
		seen[constraintName] = true

		refs = append(refs, catalog.ForeignKeyRef{
			Column:           columnName,
			ReferencedEntity: foreignTableName,
			ReferencedColumn: foreignColumnName,
		})
	}

	return refs, rows.Err()
}
