// Package planner partitions the dependency graph into ordered migration
// phases and assembles the full migration plan.
package planner

import (
	"fmt"
	"time"

	"github.com/juju/collections/set"

	"github.com/docshift/docshift/internal/graph"
	"github.com/docshift/docshift/internal/strategy"
	"github.com/docshift/docshift/internal/syncstate"
)

// ComputePhases levels the graph into phases. Entities in the synced set
// are treated as already migrated: they are excluded from the phases and
// count as satisfied dependencies. Phase k holds every remaining entity
// whose dependencies are all synced or placed in phases < k; entities
// within a phase are sorted by name.
func ComputePhases(g *graph.Graph, synced set.Strings) ([][]string, error) {
	remaining := set.NewStrings()
	for _, name := range g.Entities() {
		if !synced.Contains(name) {
			remaining.Add(name)
		}
	}
	placed := set.NewStrings(synced.Values()...)

	var phases [][]string
	for !remaining.IsEmpty() {
		var ready []string
		for _, name := range remaining.SortedValues() {
			if g.DependencySet(name).Difference(placed).IsEmpty() {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			// Every remaining entity waits on another remaining entity.
			// The builder already rejected cycles, so this only happens
			// with a dependency set the catalog cannot satisfy.
			return nil, &UnresolvableError{Stuck: remaining.SortedValues()}
		}
		phases = append(phases, ready)
		for _, name := range ready {
			remaining.Remove(name)
			placed.Add(name)
		}
	}
	return phases, nil
}

// Assemble merges the computed phases with sync states and strategy
// classifications into a Plan. Pure: it reads its inputs and touches no
// external system.
func Assemble(phaseNames [][]string, g *graph.Graph, state *syncstate.DatabaseState, classes map[string]strategy.Classification) *Plan {
	plan := &Plan{
		CreatedAt:   time.Now().UTC(),
		TotalPhases: len(phaseNames),
		Warnings:    g.Warnings(),
	}

	for i, names := range phaseNames {
		phase := Phase{
			Number: i + 1,
			Name:   fmt.Sprintf("phase_%d", i+1),
		}
		if i == 0 {
			phase.Description = "Independent entities with no outstanding dependencies"
		} else {
			phase.Description = fmt.Sprintf("Entities whose dependencies are satisfied by phases 1-%d", i)
		}

		for _, name := range names {
			entity := PlanEntity{
				Name:         name,
				Dependencies: g.Dependencies(name),
			}
			if st, ok := state.Entity(name); ok {
				entity.RecordCount = st.SourceCount
				entity.TargetCount = st.TargetCount
				entity.NeedsMigration = st.NeedsMigration()
			}
			if c, ok := classes[name]; ok {
				entity.Strategy = c.Strategy
				entity.Parent = c.Parent
				entity.ParentRef = c.ParentRef
				entity.Reason = c.Reason
			}
			if entity.NeedsMigration {
				plan.EntitiesToMigrate++
				plan.RecordsToMigrate += entity.RecordCount - entity.TargetCount
			}
			phase.Entities = append(phase.Entities, entity)
		}
		plan.Phases = append(plan.Phases, phase)
	}

	plan.Summary = renderSummary(plan, state)
	return plan
}

func renderSummary(plan *Plan, state *syncstate.DatabaseState) string {
	scheduled := 0
	for _, phase := range plan.Phases {
		scheduled += len(phase.Entities)
	}
	synced := len(state.SyncedNames())

	if plan.EntitiesToMigrate == 0 {
		return fmt.Sprintf("Nothing to migrate: %d entities already synced", synced)
	}
	return fmt.Sprintf("%d of %d scheduled entities need migration across %d phases (%d records to transfer, %d entities already synced)",
		plan.EntitiesToMigrate, scheduled, plan.TotalPhases, plan.RecordsToMigrate, synced)
}
