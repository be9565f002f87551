// Package sqlfile reads the source migration catalog from SQL DDL files so
// plans can be drawn against a schema dump without a live database. Row
// counts are unknown offline and reported as zero.
package sqlfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/docshift/docshift/catalog"
)

// Reader implements catalog.Source over a single .sql file or a directory
// of .sql files.
type Reader struct {
	path string
}

// NewReader creates a DDL catalog reader for the given path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Entities parses the DDL and returns one entity per CREATE TABLE with its
// foreign key references.
func (r *Reader) Entities(ctx context.Context) ([]catalog.SourceEntity, error) {
	ddl, err := readDDL(r.path)
	if err != nil {
		return nil, err
	}
	return Parse(ddl)
}

func readDDL(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema path %s: %w", path, err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read SQL file %s: %w", path, err)
		}
		return string(data), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema directory %s: %w", path, err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			sqlFiles = append(sqlFiles, filepath.Join(path, entry.Name()))
		}
	}
	if len(sqlFiles) == 0 {
		return "", fmt.Errorf("no .sql files found in directory %s", path)
	}
	sort.Strings(sqlFiles)

	var builder strings.Builder
	for _, file := range sqlFiles {
		data, readErr := os.ReadFile(file)
		if readErr != nil {
			return "", fmt.Errorf("failed to read SQL file %s: %w", file, readErr)
		}
		builder.Write(data)
		if len(data) == 0 || data[len(data)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}

// Parse extracts entities and their foreign key references from SQL DDL.
// Inline column REFERENCES, table-level FOREIGN KEY clauses, and
// ALTER TABLE ... ADD CONSTRAINT are all recognized.
func Parse(ddl string) ([]catalog.SourceEntity, error) {
	tree, err := pg_query.Parse(ddl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQL DDL: %w", err)
	}

	byName := make(map[string]int)
	var entities []catalog.SourceEntity

	for _, stmt := range tree.Stmts {
		if stmt.Stmt == nil {
			continue
		}

		switch node := stmt.Stmt.Node.(type) {
		case *pg_query.Node_CreateStmt:
			entity, err := parseCreateTable(node.CreateStmt)
			if err != nil {
				return nil, err
			}
			if _, exists := byName[entity.Name]; exists {
				// CREATE TABLE IF NOT EXISTS repeated in a dump
				continue
			}
			byName[entity.Name] = len(entities)
			entities = append(entities, *entity)

		case *pg_query.Node_AlterTableStmt:
			if err := applyAlterTable(entities, byName, node.AlterTableStmt); err != nil {
				return nil, err
			}
		}
	}

	return entities, nil
}

func parseCreateTable(stmt *pg_query.CreateStmt) (*catalog.SourceEntity, error) {
	if stmt.Relation == nil {
		return nil, fmt.Errorf("CREATE TABLE missing relation")
	}

	entity := &catalog.SourceEntity{Name: stmt.Relation.Relname}

	for _, elt := range stmt.TableElts {
		if elt.Node == nil {
			continue
		}

		switch node := elt.Node.(type) {
		case *pg_query.Node_ColumnDef:
			colDef := node.ColumnDef
			for _, constraint := range colDef.Constraints {
				cons, ok := constraint.Node.(*pg_query.Node_Constraint)
				if !ok || cons.Constraint == nil {
					continue
				}
				if ref := columnReference(colDef.Colname, cons.Constraint); ref != nil {
					entity.ForeignKeys = append(entity.ForeignKeys, *ref)
				}
			}

		case *pg_query.Node_Constraint:
			if ref := tableReference(node.Constraint); ref != nil {
				entity.ForeignKeys = append(entity.ForeignKeys, *ref)
			}
		}
	}

	return entity, nil
}

// columnReference converts an inline REFERENCES clause on one column.
func columnReference(column string, constraint *pg_query.Constraint) *catalog.ForeignKeyRef {
	if constraint.Contype != pg_query.ConstrType_CONSTR_FOREIGN {
		return nil
	}
	if constraint.Pktable == nil || constraint.Pktable.Relname == "" {
		return nil
	}
	return &catalog.ForeignKeyRef{
		Column:           column,
		ReferencedEntity: constraint.Pktable.Relname,
		ReferencedColumn: firstAttr(constraint.PkAttrs),
	}
}

// tableReference converts a table-level FOREIGN KEY constraint. The catalog
// tracks single-column references; for a multi-column constraint the first
// column pair keeps the dependency edge.
func tableReference(constraint *pg_query.Constraint) *catalog.ForeignKeyRef {
	if constraint == nil || constraint.Contype != pg_query.ConstrType_CONSTR_FOREIGN {
		return nil
	}
	if constraint.Pktable == nil || constraint.Pktable.Relname == "" {
		return nil
	}
	column := firstAttr(constraint.FkAttrs)
	if column == "" {
		return nil
	}
	return &catalog.ForeignKeyRef{
		Column:           column,
		ReferencedEntity: constraint.Pktable.Relname,
		ReferencedColumn: firstAttr(constraint.PkAttrs),
	}
}

func firstAttr(attrs []*pg_query.Node) string {
	for _, attr := range attrs {
		if node, ok := attr.Node.(*pg_query.Node_String_); ok {
			return node.String_.Sval
		}
	}
	return ""
}

func applyAlterTable(entities []catalog.SourceEntity, byName map[string]int, stmt *pg_query.AlterTableStmt) error {
	if stmt.Relation == nil || stmt.Relation.Relname == "" {
		return fmt.Errorf("ALTER TABLE missing relation")
	}
	idx, ok := byName[stmt.Relation.Relname]
	if !ok {
		return fmt.Errorf("ALTER TABLE references unknown table: %s", stmt.Relation.Relname)
	}

	for _, cmdNode := range stmt.Cmds {
		if cmdNode == nil {
			continue
		}
		alterCmd, ok := cmdNode.Node.(*pg_query.Node_AlterTableCmd)
		if !ok || alterCmd.AlterTableCmd == nil {
			continue
		}
		cmd := alterCmd.AlterTableCmd
		if cmd.Subtype != pg_query.AlterTableType_AT_AddConstraint {
			continue
		}
		constraint := cmd.GetDef().GetConstraint()
		if constraint == nil {
			continue
		}
		if ref := tableReference(constraint); ref != nil {
			entities[idx].ForeignKeys = append(entities[idx].ForeignKeys, *ref)
		}
	}

	return nil
}
