package transfer

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docshift/docshift/catalog"
	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/strategy"
)

// setupTargetDB connects to a test MongoDB instance.
// Skips the test if the database is unavailable (unless REQUIRE_TEST_DB=true).
func setupTargetDB(t *testing.T) *mongo.Database {
	t.Helper()

	requireDB := os.Getenv("REQUIRE_TEST_DB") == "true"

	uri := os.Getenv("MONGO_TEST_URL")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		if requireDB {
			t.Fatalf("MongoDB required but unavailable: %v", err)
		}
		t.Skipf("MongoDB not available: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		if requireDB {
			t.Fatalf("MongoDB required but unreachable: %v", err)
		}
		t.Skipf("MongoDB not reachable: %v", err)
	}

	db := client.Database("docshift_transfer_test")
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestBulk_StandaloneAndEmbedded(t *testing.T) {
	target := setupTargetDB(t)
	source := openSourceDB(t)
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE customer (customer_id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE review (review_id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customer(customer_id), body TEXT)`,
		`INSERT INTO customer VALUES (1, 'MARY SMITH'), (2, 'PATRICIA JOHNSON')`,
		`INSERT INTO review VALUES (10, 1, 'great'), (11, 1, 'fine'), (12, 2, 'ok'), (13, NULL, 'orphan')`,
	}
	for _, stmt := range stmts {
		if _, err := source.Exec(stmt); err != nil {
			t.Fatalf("Failed to seed source: %v", err)
		}
	}

	bulk := NewBulk(source, target, 2)

	customer := planner.PlanEntity{Name: "customer", RecordCount: 2, NeedsMigration: true, Strategy: strategy.Standalone}
	result, err := bulk.Execute(ctx, customer)
	if err != nil {
		t.Fatalf("Failed to migrate customer: %v", err)
	}
	if !result.Success || result.Transferred != 2 {
		t.Fatalf("Expected 2 transferred, got %+v", result)
	}
	if result.Collection != "customer" {
		t.Errorf("Expected collection customer, got %s", result.Collection)
	}

	count, err := target.Collection("customer").CountDocuments(ctx, bson.D{})
	if err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 customer documents, got %d", count)
	}

	review := planner.PlanEntity{
		Name: "review", RecordCount: 4, NeedsMigration: true,
		Strategy: strategy.Embedded, Parent: "customer",
		ParentRef: &catalog.ForeignKeyRef{Column: "customer_id", ReferencedEntity: "customer", ReferencedColumn: "customer_id"},
	}
	result, err = bulk.Execute(ctx, review)
	if err != nil {
		t.Fatalf("Failed to embed review: %v", err)
	}
	// The orphan row has no parent key and is not transferred.
	if result.Transferred != 3 {
		t.Errorf("Expected 3 embedded rows, got %d", result.Transferred)
	}
	if result.Collection != "customer" {
		t.Errorf("Expected embedded result to report parent collection, got %s", result.Collection)
	}

	var doc bson.M
	if err := target.Collection("customer").FindOne(ctx, bson.M{"customer_id": int64(1)}).Decode(&doc); err != nil {
		t.Fatalf("Failed to load parent document: %v", err)
	}
	reviews, ok := doc["review"].(bson.A)
	if !ok {
		t.Fatalf("Expected review array on customer document, got %T", doc["review"])
	}
	if len(reviews) != 2 {
		t.Errorf("Expected 2 embedded reviews for customer 1, got %d", len(reviews))
	}

	// Re-running the embed must replace, not double, the arrays.
	if _, err := bulk.Execute(ctx, review); err != nil {
		t.Fatalf("Failed to re-embed review: %v", err)
	}
	if err := target.Collection("customer").FindOne(ctx, bson.M{"customer_id": int64(1)}).Decode(&doc); err != nil {
		t.Fatalf("Failed to reload parent document: %v", err)
	}
	if len(doc["review"].(bson.A)) != 2 {
		t.Errorf("Expected re-embed to stay at 2 reviews, got %d", len(doc["review"].(bson.A)))
	}
}

func TestBulk_StandaloneRerunReplaces(t *testing.T) {
	target := setupTargetDB(t)
	source := openSourceDB(t)
	ctx := context.Background()

	if _, err := source.Exec(`CREATE TABLE language (language_id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if _, err := source.Exec(`INSERT INTO language VALUES (1, 'English'), (2, 'Italian')`); err != nil {
		t.Fatalf("Failed to insert rows: %v", err)
	}

	bulk := NewBulk(source, target, 0)
	entity := planner.PlanEntity{Name: "language", RecordCount: 2, NeedsMigration: true, Strategy: strategy.Standalone}

	for i := 0; i < 2; i++ {
		if _, err := bulk.Execute(ctx, entity); err != nil {
			t.Fatalf("Run %d failed: %v", i+1, err)
		}
	}

	count, err := target.Collection("language").CountDocuments(ctx, bson.D{})
	if err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected rerun to keep 2 documents, got %d", count)
	}
}

func TestBulk_CancelledContextFails(t *testing.T) {
	target := setupTargetDB(t)
	source := openSourceDB(t)

	if _, err := source.Exec(`CREATE TABLE actor (actor_id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bulk := NewBulk(source, target, 0)
	result, err := bulk.Execute(ctx, planner.PlanEntity{Name: "actor", NeedsMigration: true, Strategy: strategy.Standalone})
	if err == nil {
		t.Fatal("Expected cancelled execution to fail")
	}
	if result != nil && result.Success {
		t.Error("Expected failed result for cancelled execution")
	}
}
