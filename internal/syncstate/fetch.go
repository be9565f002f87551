package syncstate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/docshift/docshift/catalog"
)

// Fetch reads both catalogs concurrently. The reads are independent, but
// both must succeed before a comparison is possible; the first failure
// cancels the other read and is returned as a catalog.UnavailableError.
func Fetch(ctx context.Context, src catalog.Source, tgt catalog.Target) ([]catalog.SourceEntity, []catalog.TargetEntity, error) {
	var (
		sourceEntities []catalog.SourceEntity
		targetEntities []catalog.TargetEntity
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entities, err := src.Entities(ctx)
		if err != nil {
			return &catalog.UnavailableError{Side: "source", Err: err}
		}
		sourceEntities = entities
		return nil
	})
	g.Go(func() error {
		entities, err := tgt.Entities(ctx)
		if err != nil {
			return &catalog.UnavailableError{Side: "target", Err: err}
		}
		targetEntities = entities
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sourceEntities, targetEntities, nil
}
