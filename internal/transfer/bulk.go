package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/strategy"
)

// DefaultBatchSize bounds one InsertMany call.
const DefaultBatchSize = 1000

// Bulk is the document-store executor. Standalone entities are reloaded
// into their own collection; embedded entities are grouped by their parent
// foreign key and pushed into the parent's documents as an array field
// named after the entity.
type Bulk struct {
	source    *sql.DB
	target    *mongo.Database
	batchSize int
}

// NewBulk builds an executor over an open source connection and target
// database handle. batchSize <= 0 selects DefaultBatchSize.
func NewBulk(source *sql.DB, target *mongo.Database, batchSize int) *Bulk {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Bulk{source: source, target: target, batchSize: batchSize}
}

// Execute copies one entity. The returned Result reports the collection
// written and the records transferred even when the copy fails partway.
func (b *Bulk) Execute(ctx context.Context, entity planner.PlanEntity) (*Result, error) {
	start := time.Now()

	var (
		transferred int64
		collection  string
		err         error
	)
	if entity.Strategy == strategy.Embedded {
		collection = entity.Parent
		transferred, err = b.copyEmbedded(ctx, entity)
	} else {
		collection = entity.Name
		transferred, err = b.copyStandalone(ctx, entity)
	}

	result := &Result{
		Success:     err == nil,
		Transferred: transferred,
		Collection:  collection,
		Duration:    time.Since(start),
	}
	if err != nil {
		return result, fmt.Errorf("failed to migrate %s: %w", entity.Name, err)
	}
	return result, nil
}

// copyStandalone drops the entity's collection and reloads it in batches,
// so a retry after a partial failure cannot double documents.
func (b *Bulk) copyStandalone(ctx context.Context, entity planner.PlanEntity) (int64, error) {
	coll := b.target.Collection(entity.Name)
	if err := coll.Drop(ctx); err != nil {
		return 0, fmt.Errorf("failed to reset collection %s: %w", entity.Name, err)
	}

	rows, err := b.source.QueryContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(entity.Name))
	if err != nil {
		return 0, fmt.Errorf("failed to read source rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scanner, err := newRowScanner(rows)
	if err != nil {
		return 0, err
	}

	var total int64
	batch := make([]interface{}, 0, b.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := coll.InsertMany(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", entity.Name, err)
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for rows.Next() {
		doc, err := scanner.Scan(rows)
		if err != nil {
			return total, err
		}
		batch = append(batch, doc)
		if len(batch) >= b.batchSize {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return total, fmt.Errorf("failed to read source rows: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// copyEmbedded nests child rows into their parent documents. Rows are
// grouped by the foreign key value, the previous array field is cleared,
// and each group is pushed with a single update. Rows with a NULL foreign
// key or a missing parent document are not transferred.
func (b *Bulk) copyEmbedded(ctx context.Context, entity planner.PlanEntity) (int64, error) {
	if entity.Parent == "" || entity.ParentRef == nil {
		return 0, fmt.Errorf("embedded entity %s has no parent reference", entity.Name)
	}

	parentColl := b.target.Collection(entity.Parent)
	if _, err := parentColl.UpdateMany(ctx, bson.M{}, bson.M{"$unset": bson.M{entity.Name: ""}}); err != nil {
		return 0, fmt.Errorf("failed to reset %s arrays in %s: %w", entity.Name, entity.Parent, err)
	}

	rows, err := b.source.QueryContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(entity.Name))
	if err != nil {
		return 0, fmt.Errorf("failed to read source rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scanner, err := newRowScanner(rows)
	if err != nil {
		return 0, err
	}

	groups := make(map[any][]interface{})
	var order []any
	for rows.Next() {
		doc, err := scanner.Scan(rows)
		if err != nil {
			return 0, err
		}
		key := doc[entity.ParentRef.Column]
		if key == nil {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], doc)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read source rows: %w", err)
	}

	var total int64
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := parentColl.UpdateOne(ctx,
			bson.M{entity.ParentRef.ReferencedColumn: key},
			bson.M{"$push": bson.M{entity.Name: bson.M{"$each": groups[key]}}})
		if err != nil {
			return total, fmt.Errorf("failed to embed into %s: %w", entity.Parent, err)
		}
		if res.MatchedCount > 0 {
			total += int64(len(groups[key]))
		}
	}
	return total, nil
}
