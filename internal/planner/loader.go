package planner

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed plan_schema.json
var planSchema string

// LoadPlan reads an exported plan file, validates it against the plan
// schema, and re-checks phase ordering. A plan whose phases violate the
// dependency order is rejected even when the JSON itself is well formed.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(planSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate plan file: %w", err)
	}
	if !result.Valid() {
		msg := "plan file does not match the plan schema:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf("\n  - %s", desc)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if err := checkPhaseOrder(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// checkPhaseOrder verifies that no entity appears twice and that every
// dependency scheduled in the plan sits in an earlier phase. Dependencies
// absent from the plan were synced when the plan was assembled and impose
// no ordering.
func checkPhaseOrder(plan *Plan) error {
	phaseOf := make(map[string]int)
	for _, phase := range plan.Phases {
		for _, e := range phase.Entities {
			if _, dup := phaseOf[e.Name]; dup {
				return fmt.Errorf("invalid plan: entity %s is scheduled more than once", e.Name)
			}
			phaseOf[e.Name] = phase.Number
		}
	}

	for _, phase := range plan.Phases {
		for _, e := range phase.Entities {
			for _, dep := range e.Dependencies {
				depPhase, scheduled := phaseOf[dep]
				if !scheduled {
					continue
				}
				if depPhase >= phase.Number {
					return fmt.Errorf("invalid plan: %s in phase %d depends on %s in phase %d",
						e.Name, phase.Number, dep, depPhase)
				}
			}
		}
	}
	return nil
}
