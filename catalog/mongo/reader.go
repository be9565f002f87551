// Package mongo reads the target migration catalog from a MongoDB
// database.
package mongo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docshift/docshift/catalog"
)

// Reader implements catalog.Target for MongoDB.
type Reader struct {
	db *mongo.Database
}

// NewReader creates a MongoDB catalog reader over an open database handle.
func NewReader(db *mongo.Database) *Reader {
	return &Reader{db: db}
}

// Entities returns every collection with its document count. Internal
// system.* collections are skipped. Entities embedded inside parent
// documents have no collection of their own and never appear here.
func (r *Reader) Entities(ctx context.Context) ([]catalog.TargetEntity, error) {
	names, err := r.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)

	entities := make([]catalog.TargetEntity, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, "system.") {
			continue
		}

		count, err := r.db.Collection(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("failed to count documents in %s: %w", name, err)
		}

		entities = append(entities, catalog.TargetEntity{Name: name, DocumentCount: count})
	}

	return entities, nil
}
