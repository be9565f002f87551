// Package strategy decides how each entity's records land in the document
// store: as a standalone collection or embedded inside its parent's
// documents.
package strategy

import (
	"fmt"
	"strings"

	"github.com/docshift/docshift/catalog"
	"github.com/docshift/docshift/internal/graph"
)

// Strategy names a document modeling approach for one entity
type Strategy string

const (
	// Standalone migrates the entity into its own collection.
	Standalone Strategy = "standalone"
	// Embedded nests the entity's records as an array inside the documents
	// of the single parent entity it references.
	Embedded Strategy = "embedded"
)

// Default cardinality knobs. A child is an embedding candidate only while
// it stays small relative to its parent.
const (
	DefaultEmbedMaxRatio = 10.0
	DefaultEmbedMaxRows  = 1000
)

// Thresholds are the tunable embedding limits. Zero fields fall back to the
// defaults.
type Thresholds struct {
	// EmbedMaxRatio is the largest child/parent row ratio still considered
	// low cardinality.
	EmbedMaxRatio float64
	// EmbedMaxRows bounds the child row count when the parent is empty and
	// no ratio can be computed.
	EmbedMaxRows int64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.EmbedMaxRatio <= 0 {
		t.EmbedMaxRatio = DefaultEmbedMaxRatio
	}
	if t.EmbedMaxRows <= 0 {
		t.EmbedMaxRows = DefaultEmbedMaxRows
	}
	return t
}

// Classification is the decision for one entity, with an operator-facing
// explanation. For embedded entities ParentRef names the foreign key the
// executor nests by.
type Classification struct {
	Strategy  Strategy               `json:"strategy"`
	Parent    string                 `json:"parent,omitempty"`
	ParentRef *catalog.ForeignKeyRef `json:"parent_ref,omitempty"`
	Reason    string                 `json:"reason"`
}

// Classify computes a classification for every entity in the catalog.
func Classify(entities []catalog.SourceEntity, g *graph.Graph, t Thresholds) map[string]Classification {
	t = t.withDefaults()

	counts := make(map[string]int64, len(entities))
	for _, e := range entities {
		counts[e.Name] = e.RecordCount
	}

	result := make(map[string]Classification, len(entities))
	for _, e := range entities {
		result[e.Name] = classifyOne(e, g, counts, t)
	}
	return result
}

func classifyOne(e catalog.SourceEntity, g *graph.Graph, counts map[string]int64, t Thresholds) Classification {
	// An entity other entities point at must keep its own collection so
	// those references stay resolvable.
	if refs := g.ReferencedBy(e.Name); len(refs) > 0 {
		return Classification{
			Strategy: Standalone,
			Reason: fmt.Sprintf("referenced by %s; must stay addressable as its own collection",
				strings.Join(refs, ", ")),
		}
	}

	parents := g.Dependencies(e.Name)
	switch len(parents) {
	case 0:
		return Classification{
			Strategy: Standalone,
			Reason:   "no relationships to other entities; migrates as its own collection",
		}
	case 1:
		return classifyChild(e, parents[0], counts, t)
	default:
		return Classification{
			Strategy: Standalone,
			Reason: fmt.Sprintf("references %d parent entities (%s); migrates as its own collection",
				len(parents), strings.Join(parents, ", ")),
		}
	}
}

func classifyChild(e catalog.SourceEntity, parent string, counts map[string]int64, t Thresholds) Classification {
	parentCount := counts[parent]

	if parentCount == 0 {
		if e.RecordCount <= t.EmbedMaxRows {
			return Classification{
				Strategy:  Embedded,
				Parent:    parent,
				ParentRef: embedRef(e, parent),
				Reason: fmt.Sprintf("references only %s and %d rows fit the embedding limit of %d; nest as an array inside %s documents",
					parent, e.RecordCount, t.EmbedMaxRows, parent),
			}
		}
		return Classification{
			Strategy: Standalone,
			Reason: fmt.Sprintf("references only %s but %d rows exceed the embedding limit of %d",
				parent, e.RecordCount, t.EmbedMaxRows),
		}
	}

	ratio := float64(e.RecordCount) / float64(parentCount)
	if ratio <= t.EmbedMaxRatio {
		return Classification{
			Strategy:  Embedded,
			Parent:    parent,
			ParentRef: embedRef(e, parent),
			Reason: fmt.Sprintf("references only %s at ~%.1f rows per parent; nest as an array inside %s documents",
				parent, ratio, parent),
		}
	}
	return Classification{
		Strategy: Standalone,
		Reason: fmt.Sprintf("references only %s but ~%.1f rows per parent would bloat %s documents (limit %.1f)",
			parent, ratio, parent, t.EmbedMaxRatio),
	}
}

// embedRef picks the foreign key used for nesting: the first declared
// reference from the child to its parent.
func embedRef(e catalog.SourceEntity, parent string) *catalog.ForeignKeyRef {
	for _, fk := range e.ForeignKeys {
		if fk.ReferencedEntity == parent {
			ref := fk
			return &ref
		}
	}
	return nil
}
