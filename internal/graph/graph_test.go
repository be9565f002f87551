package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/docshift/docshift/catalog"
)

func TestBuild_EdgesFromForeignKeys(t *testing.T) {
	entities := []catalog.SourceEntity{
		{Name: "address", RecordCount: 603},
		{Name: "customer", RecordCount: 599, ForeignKeys: []catalog.ForeignKeyRef{
			{Column: "address_id", ReferencedEntity: "address", ReferencedColumn: "address_id"},
		}},
		{Name: "rental", RecordCount: 16044, ForeignKeys: []catalog.ForeignKeyRef{
			{Column: "customer_id", ReferencedEntity: "customer", ReferencedColumn: "customer_id"},
		}},
	}

	g, err := Build(entities)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	deps := g.Dependencies("rental")
	if !reflect.DeepEqual(deps, []string{"customer"}) {
		t.Errorf("Expected rental to depend on [customer], got %v", deps)
	}

	if got := g.Dependencies("address"); len(got) != 0 {
		t.Errorf("Expected address to have no dependencies, got %v", got)
	}

	if g.RefCount("address") != 1 {
		t.Errorf("Expected address to be referenced once, got %d", g.RefCount("address"))
	}

	refs := g.ReferencedBy("customer")
	if !reflect.DeepEqual(refs, []string{"rental"}) {
		t.Errorf("Expected customer to be referenced by [rental], got %v", refs)
	}
}

func TestBuild_DropsSelfReferences(t *testing.T) {
	entities := []catalog.SourceEntity{
		{Name: "employee", RecordCount: 10, ForeignKeys: []catalog.ForeignKeyRef{
			{Column: "manager_id", ReferencedEntity: "employee", ReferencedColumn: "employee_id"},
		}},
	}

	g, err := Build(entities)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	if deps := g.Dependencies("employee"); len(deps) != 0 {
		t.Errorf("Expected self reference to be dropped, got dependencies %v", deps)
	}

	if len(g.Warnings()) != 0 {
		t.Errorf("Expected no warnings for self references, got %v", g.Warnings())
	}
}

func TestBuild_WarnsOnUnknownReference(t *testing.T) {
	entities := []catalog.SourceEntity{
		{Name: "orders", RecordCount: 5, ForeignKeys: []catalog.ForeignKeyRef{
			{Column: "customer_id", ReferencedEntity: "customer", ReferencedColumn: "id"},
		}},
	}

	g, err := Build(entities)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	if deps := g.Dependencies("orders"); len(deps) != 0 {
		t.Errorf("Expected dangling reference to be dropped, got dependencies %v", deps)
	}

	if len(g.Warnings()) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(g.Warnings()))
	}
	if !strings.Contains(g.Warnings()[0], "customer") {
		t.Errorf("Expected warning to name the unknown entity, got: %s", g.Warnings()[0])
	}
}

func TestBuild_CycleFails(t *testing.T) {
	entities := []catalog.SourceEntity{
		{Name: "a", ForeignKeys: []catalog.ForeignKeyRef{{Column: "b_id", ReferencedEntity: "b", ReferencedColumn: "id"}}},
		{Name: "b", ForeignKeys: []catalog.ForeignKeyRef{{Column: "c_id", ReferencedEntity: "c", ReferencedColumn: "id"}}},
		{Name: "c", ForeignKeys: []catalog.ForeignKeyRef{{Column: "a_id", ReferencedEntity: "a", ReferencedColumn: "id"}}},
		{Name: "standalone"},
	}

	_, err := Build(entities)
	if err == nil {
		t.Fatal("Expected cycle error, got nil")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleError, got %T: %v", err, err)
	}

	if !reflect.DeepEqual(cycleErr.Members, []string{"a", "b", "c"}) {
		t.Errorf("Expected cycle members [a b c], got %v", cycleErr.Members)
	}
}

func TestBuild_TwoNodeCycle(t *testing.T) {
	entities := []catalog.SourceEntity{
		{Name: "left", ForeignKeys: []catalog.ForeignKeyRef{{Column: "right_id", ReferencedEntity: "right", ReferencedColumn: "id"}}},
		{Name: "right", ForeignKeys: []catalog.ForeignKeyRef{{Column: "left_id", ReferencedEntity: "left", ReferencedColumn: "id"}}},
	}

	_, err := Build(entities)
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
	if len(cycleErr.Members) != 2 {
		t.Errorf("Expected 2 cycle members, got %v", cycleErr.Members)
	}
}

func TestBuild_DiamondIsAcyclic(t *testing.T) {
	// film and customer both depend on language/address style shared parents;
	// shared parents are not cycles.
	entities := []catalog.SourceEntity{
		{Name: "country"},
		{Name: "city", ForeignKeys: []catalog.ForeignKeyRef{{Column: "country_id", ReferencedEntity: "country", ReferencedColumn: "id"}}},
		{Name: "address", ForeignKeys: []catalog.ForeignKeyRef{{Column: "city_id", ReferencedEntity: "city", ReferencedColumn: "id"}}},
		{Name: "store", ForeignKeys: []catalog.ForeignKeyRef{{Column: "address_id", ReferencedEntity: "address", ReferencedColumn: "id"}}},
		{Name: "customer", ForeignKeys: []catalog.ForeignKeyRef{
			{Column: "address_id", ReferencedEntity: "address", ReferencedColumn: "id"},
			{Column: "store_id", ReferencedEntity: "store", ReferencedColumn: "id"},
		}},
	}

	g, err := Build(entities)
	if err != nil {
		t.Fatalf("Expected diamond graph to build, got error: %v", err)
	}

	deps := g.Dependencies("customer")
	if !reflect.DeepEqual(deps, []string{"address", "store"}) {
		t.Errorf("Expected customer dependencies [address store], got %v", deps)
	}
}

func TestBuild_DuplicateForeignKeysCollapse(t *testing.T) {
	// Two constraints to the same parent produce one edge.
	entities := []catalog.SourceEntity{
		{Name: "parent"},
		{Name: "child", ForeignKeys: []catalog.ForeignKeyRef{
			{Column: "parent_id", ReferencedEntity: "parent", ReferencedColumn: "id"},
			{Column: "alt_parent_id", ReferencedEntity: "parent", ReferencedColumn: "id"},
		}},
	}

	g, err := Build(entities)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	if deps := g.Dependencies("child"); !reflect.DeepEqual(deps, []string{"parent"}) {
		t.Errorf("Expected single collapsed edge to parent, got %v", deps)
	}
	if g.RefCount("parent") != 1 {
		t.Errorf("Expected parent RefCount 1, got %d", g.RefCount("parent"))
	}
}
