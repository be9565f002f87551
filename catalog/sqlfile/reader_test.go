package sqlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/docshift/docshift/catalog"
)

const pagilaDDL = `
CREATE TABLE country (
    country_id integer PRIMARY KEY,
    country text NOT NULL
);

CREATE TABLE city (
    city_id integer PRIMARY KEY,
    city text NOT NULL,
    country_id integer NOT NULL REFERENCES country(country_id)
);

CREATE TABLE address (
    address_id integer PRIMARY KEY,
    city_id integer NOT NULL
);

ALTER TABLE address ADD CONSTRAINT fk_address_city FOREIGN KEY (city_id) REFERENCES city (city_id);

CREATE TABLE store (
    store_id integer PRIMARY KEY,
    address_id integer NOT NULL,
    FOREIGN KEY (address_id) REFERENCES address (address_id)
);
`

func entityByName(t *testing.T, entities []catalog.SourceEntity, name string) catalog.SourceEntity {
	t.Helper()
	for _, e := range entities {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("Expected entity %s in %v", name, entities)
	return catalog.SourceEntity{}
}

func TestParse_AllForeignKeyForms(t *testing.T) {
	entities, err := Parse(pagilaDDL)
	if err != nil {
		t.Fatalf("Failed to parse DDL: %v", err)
	}

	if len(entities) != 4 {
		t.Fatalf("Expected 4 entities, got %d", len(entities))
	}

	// Inline column REFERENCES.
	city := entityByName(t, entities, "city")
	if len(city.ForeignKeys) != 1 {
		t.Fatalf("Expected 1 city foreign key, got %v", city.ForeignKeys)
	}
	if fk := city.ForeignKeys[0]; fk.Column != "country_id" || fk.ReferencedEntity != "country" || fk.ReferencedColumn != "country_id" {
		t.Errorf("Expected city.country_id -> country.country_id, got %+v", fk)
	}

	// ALTER TABLE ... ADD CONSTRAINT.
	address := entityByName(t, entities, "address")
	if len(address.ForeignKeys) != 1 {
		t.Fatalf("Expected 1 address foreign key, got %v", address.ForeignKeys)
	}
	if fk := address.ForeignKeys[0]; fk.Column != "city_id" || fk.ReferencedEntity != "city" {
		t.Errorf("Expected address.city_id -> city, got %+v", fk)
	}

	// Table-level FOREIGN KEY clause.
	store := entityByName(t, entities, "store")
	if len(store.ForeignKeys) != 1 {
		t.Fatalf("Expected 1 store foreign key, got %v", store.ForeignKeys)
	}
	if fk := store.ForeignKeys[0]; fk.Column != "address_id" || fk.ReferencedEntity != "address" {
		t.Errorf("Expected store.address_id -> address, got %+v", fk)
	}
}

func TestParse_RowCountsAreZeroOffline(t *testing.T) {
	entities, err := Parse(pagilaDDL)
	if err != nil {
		t.Fatalf("Failed to parse DDL: %v", err)
	}
	for _, e := range entities {
		if e.RecordCount != 0 {
			t.Errorf("Expected zero record count for %s, got %d", e.Name, e.RecordCount)
		}
	}
}

func TestParse_MultiColumnConstraintKeepsFirstPair(t *testing.T) {
	ddl := `
CREATE TABLE film_actor (
    film_id integer,
    actor_id integer,
    PRIMARY KEY (film_id, actor_id)
);
CREATE TABLE film_actor_audit (
    film_id integer,
    actor_id integer,
    FOREIGN KEY (film_id, actor_id) REFERENCES film_actor (film_id, actor_id)
);
`
	entities, err := Parse(ddl)
	if err != nil {
		t.Fatalf("Failed to parse DDL: %v", err)
	}

	audit := entityByName(t, entities, "film_actor_audit")
	if len(audit.ForeignKeys) != 1 {
		t.Fatalf("Expected 1 foreign key, got %v", audit.ForeignKeys)
	}
	if fk := audit.ForeignKeys[0]; fk.Column != "film_id" || fk.ReferencedColumn != "film_id" {
		t.Errorf("Expected first column pair film_id/film_id, got %+v", fk)
	}
}

func TestParse_InvalidSQL(t *testing.T) {
	if _, err := Parse("CREATE TABEL broken"); err == nil {
		t.Fatal("Expected parse error for invalid SQL, got nil")
	}
}

func TestParse_AlterUnknownTable(t *testing.T) {
	ddl := `ALTER TABLE missing ADD CONSTRAINT fk FOREIGN KEY (x) REFERENCES other (y);`
	if _, err := Parse(ddl); err == nil {
		t.Fatal("Expected error for ALTER TABLE on unknown table, got nil")
	}
}

func TestEntities_ReadsFileAndDirectory(t *testing.T) {
	tempDir := t.TempDir()

	filePath := filepath.Join(tempDir, "schema.sql")
	if err := os.WriteFile(filePath, []byte(pagilaDDL), 0o600); err != nil {
		t.Fatalf("Failed to write schema file: %v", err)
	}

	entities, err := NewReader(filePath).Entities(context.Background())
	if err != nil {
		t.Fatalf("Failed to read entities from file: %v", err)
	}
	if len(entities) != 4 {
		t.Errorf("Expected 4 entities from file, got %d", len(entities))
	}

	// Directory form: files concatenate in sorted order, so constraints in
	// a later file can reference tables created in an earlier one.
	dirPath := filepath.Join(tempDir, "schema")
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		t.Fatalf("Failed to create schema directory: %v", err)
	}
	first := "CREATE TABLE a (id integer PRIMARY KEY);\n"
	second := "CREATE TABLE b (id integer PRIMARY KEY, a_id integer REFERENCES a(id));\n"
	if err := os.WriteFile(filepath.Join(dirPath, "01_a.sql"), []byte(first), 0o600); err != nil {
		t.Fatalf("Failed to write first file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dirPath, "02_b.sql"), []byte(second), 0o600); err != nil {
		t.Fatalf("Failed to write second file: %v", err)
	}

	entities, err = NewReader(dirPath).Entities(context.Background())
	if err != nil {
		t.Fatalf("Failed to read entities from directory: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("Expected 2 entities from directory, got %d", len(entities))
	}
	b := entityByName(t, entities, "b")
	if len(b.ForeignKeys) != 1 || b.ForeignKeys[0].ReferencedEntity != "a" {
		t.Errorf("Expected b to reference a, got %v", b.ForeignKeys)
	}
}

func TestEntities_MissingPath(t *testing.T) {
	if _, err := NewReader("/nonexistent/schema.sql").Entities(context.Background()); err == nil {
		t.Fatal("Expected error for missing path, got nil")
	}
}
