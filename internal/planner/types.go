package planner

import (
	"time"

	"github.com/docshift/docshift/catalog"
	"github.com/docshift/docshift/internal/strategy"
)

// PlanEntity represents one entity scheduled inside a phase. Parent and
// ParentRef are set for embedded entities only.
type PlanEntity struct {
	Name           string                 `json:"name"`
	RecordCount    int64                  `json:"record_count"`
	TargetCount    int64                  `json:"target_count"`
	Dependencies   []string               `json:"dependencies,omitempty"`
	NeedsMigration bool                   `json:"needs_migration"`
	Strategy       strategy.Strategy      `json:"strategy"`
	Parent         string                 `json:"parent,omitempty"`
	ParentRef      *catalog.ForeignKeyRef `json:"parent_ref,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
}

// Phase represents one ordered group of entities that can be migrated once
// all earlier phases are done
type Phase struct {
	Number      int          `json:"phase"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Entities    []PlanEntity `json:"entities"`
}

// Plan is the full phased migration plan
type Plan struct {
	CreatedAt         time.Time `json:"created_at"`
	TotalPhases       int       `json:"total_phases"`
	Phases            []Phase   `json:"phases"`
	EntitiesToMigrate int       `json:"entities_to_migrate"`
	RecordsToMigrate  int64     `json:"records_to_migrate"`
	Summary           string    `json:"summary"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// Entity finds a scheduled entity by name.
func (p *Plan) Entity(name string) (PlanEntity, bool) {
	for _, phase := range p.Phases {
		for _, e := range phase.Entities {
			if e.Name == name {
				return e, true
			}
		}
	}
	return PlanEntity{}, false
}

// PhaseOf returns the 1-based phase number holding name, or 0 when the
// entity is not scheduled.
func (p *Plan) PhaseOf(name string) int {
	for _, phase := range p.Phases {
		for _, e := range phase.Entities {
			if e.Name == name {
				return phase.Number
			}
		}
	}
	return 0
}

// PendingEntities returns every scheduled entity that still needs
// migration, in phase order.
func (p *Plan) PendingEntities() []PlanEntity {
	var pending []PlanEntity
	for _, phase := range p.Phases {
		for _, e := range phase.Entities {
			if e.NeedsMigration {
				pending = append(pending, e)
			}
		}
	}
	return pending
}
