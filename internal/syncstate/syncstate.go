// Package syncstate compares source and target catalogs into a per-entity
// sync status report.
package syncstate

import (
	"sort"

	"github.com/docshift/docshift/catalog"
)

// Status represents the sync status of a single entity
type Status string

const (
	StatusSynced      Status = "synced"
	StatusSourceAhead Status = "source_ahead"
	StatusTargetAhead Status = "target_ahead"
	StatusSourceOnly  Status = "source_only"
	StatusTargetOnly  Status = "target_only"
)

// OverallStatus represents the sync status of the whole catalog
type OverallStatus string

const (
	OverallSynced    OverallStatus = "synced"
	OverallPartial   OverallStatus = "partially_synced"
	OverallOutOfSync OverallStatus = "out_of_sync"
)

// EntityState represents the comparison result for one entity
type EntityState struct {
	Name        string `json:"name"`
	SourceCount int64  `json:"source_count"`
	TargetCount int64  `json:"target_count"`
	Status      Status `json:"status"`
	Difference  int64  `json:"difference"`
}

// NeedsMigration reports whether the target is missing data for the entity.
func (e EntityState) NeedsMigration() bool {
	return e.Status == StatusSourceAhead || e.Status == StatusSourceOnly
}

// DatabaseState is the comprehensive comparison of both catalogs
type DatabaseState struct {
	Common             []EntityState `json:"common"`
	SourceOnly         []EntityState `json:"source_only"`
	TargetOnly         []EntityState `json:"target_only"`
	TotalSourceRecords int64         `json:"total_source_records"`
	TotalTargetRecords int64         `json:"total_target_records"`
	Overall            OverallStatus `json:"overall_sync_status"`
}

// Compare builds the DatabaseState for the given catalogs. It is pure: the
// inputs are never mutated and repeated calls with the same inputs produce
// the same result.
func Compare(source []catalog.SourceEntity, target []catalog.TargetEntity) *DatabaseState {
	sourceByName := make(map[string]catalog.SourceEntity, len(source))
	for _, e := range source {
		sourceByName[e.Name] = e
	}
	targetByName := make(map[string]catalog.TargetEntity, len(target))
	for _, e := range target {
		targetByName[e.Name] = e
	}

	state := &DatabaseState{}

	for _, e := range source {
		state.TotalSourceRecords += e.RecordCount
		tgt, ok := targetByName[e.Name]
		if !ok {
			state.SourceOnly = append(state.SourceOnly, EntityState{
				Name:        e.Name,
				SourceCount: e.RecordCount,
				Status:      StatusSourceOnly,
				Difference:  e.RecordCount,
			})
			continue
		}
		state.Common = append(state.Common, compareCounts(e.Name, e.RecordCount, tgt.DocumentCount))
	}

	for _, e := range target {
		state.TotalTargetRecords += e.DocumentCount
		if _, ok := sourceByName[e.Name]; !ok {
			state.TargetOnly = append(state.TargetOnly, EntityState{
				Name:        e.Name,
				TargetCount: e.DocumentCount,
				Status:      StatusTargetOnly,
				Difference:  e.DocumentCount,
			})
		}
	}

	sortByName(state.Common)
	sortByName(state.SourceOnly)
	sortByName(state.TargetOnly)

	state.Overall = overallStatus(state)
	return state
}

func compareCounts(name string, src, tgt int64) EntityState {
	s := EntityState{
		Name:        name,
		SourceCount: src,
		TargetCount: tgt,
	}
	switch {
	case src == tgt:
		s.Status = StatusSynced
	case src > tgt:
		s.Status = StatusSourceAhead
		s.Difference = src - tgt
	default:
		s.Status = StatusTargetAhead
		s.Difference = tgt - src
	}
	return s
}

func sortByName(states []EntityState) {
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
}

// overallStatus classifies the whole catalog: synced only when every common
// entity matches and nothing exists on one side alone; out_of_sync when not
// a single common entity matches; partially_synced otherwise.
func overallStatus(state *DatabaseState) OverallStatus {
	syncedCount := 0
	for _, e := range state.Common {
		if e.Status == StatusSynced {
			syncedCount++
		}
	}

	if syncedCount == len(state.Common) && len(state.SourceOnly) == 0 && len(state.TargetOnly) == 0 {
		return OverallSynced
	}
	if syncedCount == 0 {
		return OverallOutOfSync
	}
	return OverallPartial
}

// Entity looks up the state for a single entity across all three groups.
func (s *DatabaseState) Entity(name string) (EntityState, bool) {
	for _, group := range [][]EntityState{s.Common, s.SourceOnly, s.TargetOnly} {
		for _, e := range group {
			if e.Name == name {
				return e, true
			}
		}
	}
	return EntityState{}, false
}

// SyncedNames returns the names of every synced entity, sorted.
func (s *DatabaseState) SyncedNames() []string {
	var names []string
	for _, e := range s.Common {
		if e.Status == StatusSynced {
			names = append(names, e.Name)
		}
	}
	return names
}

// SourceEntityNames returns every entity name present in the source, sorted.
func (s *DatabaseState) SourceEntityNames() []string {
	names := make([]string, 0, len(s.Common)+len(s.SourceOnly))
	for _, e := range s.Common {
		names = append(names, e.Name)
	}
	for _, e := range s.SourceOnly {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
