// Package graph builds the entity dependency graph from foreign key
// references reported by the source catalog.
package graph

import (
	"fmt"

	"github.com/juju/collections/set"

	"github.com/docshift/docshift/catalog"
)

// Graph is the dependency graph over source entities. Edges point from an
// entity to the entities it depends on (its foreign key targets).
type Graph struct {
	names    set.Strings
	deps     map[string]set.Strings
	refs     map[string]set.Strings
	warnings []string
}

// Build constructs the graph from the source catalog. Self references are
// dropped silently; references to entities missing from the catalog are
// dropped with a warning. A reference cycle between two or more entities is
// unresolvable and returns a CycleError.
func Build(entities []catalog.SourceEntity) (*Graph, error) {
	g := &Graph{
		names: set.NewStrings(),
		deps:  make(map[string]set.Strings, len(entities)),
		refs:  make(map[string]set.Strings, len(entities)),
	}

	for _, e := range entities {
		g.names.Add(e.Name)
		g.deps[e.Name] = set.NewStrings()
		g.refs[e.Name] = set.NewStrings()
	}

	for _, e := range entities {
		for _, fk := range e.ForeignKeys {
			if fk.ReferencedEntity == e.Name {
				// Self reference (e.g. employee.manager_id) carries no
				// ordering information.
				continue
			}
			if !g.names.Contains(fk.ReferencedEntity) {
				g.warnings = append(g.warnings, fmt.Sprintf(
					"%s.%s references unknown entity %q; reference ignored",
					e.Name, fk.Column, fk.ReferencedEntity))
				continue
			}
			g.deps[e.Name].Add(fk.ReferencedEntity)
			g.refs[fk.ReferencedEntity].Add(e.Name)
		}
	}

	if members := g.findCycle(); len(members) > 0 {
		return nil, &CycleError{Members: members}
	}

	return g, nil
}

// Entities returns every entity name in the graph, sorted.
func (g *Graph) Entities() []string {
	return g.names.SortedValues()
}

// Contains reports whether the entity is part of the graph.
func (g *Graph) Contains(name string) bool {
	return g.names.Contains(name)
}

// Dependencies returns the entities name depends on, sorted.
func (g *Graph) Dependencies(name string) []string {
	if deps, ok := g.deps[name]; ok {
		return deps.SortedValues()
	}
	return nil
}

// DependencySet returns a copy of the dependency set for name.
func (g *Graph) DependencySet(name string) set.Strings {
	if deps, ok := g.deps[name]; ok {
		return set.NewStrings(deps.Values()...)
	}
	return set.NewStrings()
}

// ReferencedBy returns the entities that depend on name, sorted.
func (g *Graph) ReferencedBy(name string) []string {
	if refs, ok := g.refs[name]; ok {
		return refs.SortedValues()
	}
	return nil
}

// RefCount returns how many entities reference name.
func (g *Graph) RefCount(name string) int {
	if refs, ok := g.refs[name]; ok {
		return refs.Size()
	}
	return 0
}

// Warnings returns the dropped-reference warnings collected during Build.
func (g *Graph) Warnings() []string {
	return g.warnings
}

// findCycle runs Tarjan's strongly connected components algorithm and
// returns the union of all components larger than one node, sorted. An
// empty result means the graph is acyclic (self references were already
// dropped in Build).
func (g *Graph) findCycle() []string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := set.NewStrings()
	var stack []string
	cyclic := set.NewStrings()

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack.Add(v)

		for _, w := range g.deps[v].SortedValues() {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack.Contains(w) {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack.Remove(w)
				component = append(component, w)
				if w == v {
					break
				}
			}
			if len(component) > 1 {
				for _, m := range component {
					cyclic.Add(m)
				}
			}
		}
	}

	for _, v := range g.names.SortedValues() {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}

	if cyclic.IsEmpty() {
		return nil
	}
	return cyclic.SortedValues()
}
