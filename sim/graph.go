package sim

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and lookup failures.
var (
	ErrDuplicateName = errors.New("duplicate entity name")
	ErrUnknownName   = errors.New("unknown entity name")
)

// Graph owns every entity in the model. It is both name-keyed (linking,
// override application) and insertion-ordered: the traversal order used by the
// clock's backup and compute phases, and by the output columns, is the order
// entities were added in, which the loader derives from the document's
// declaration order.
type Graph struct {
	order  []Entity
	byName map[string]Entity
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]Entity)}
}

// Add inserts an entity, keyed by its unique name. Adding a second entity with
// the same name is a configuration error.
func (g *Graph) Add(e Entity) error {
	if _, exists := g.byName[e.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, e.Name())
	}
	g.byName[e.Name()] = e
	g.order = append(g.order, e)
	return nil
}

// Lookup returns the entity with the given name, if any.
func (g *Graph) Lookup(name string) (Entity, bool) {
	e, ok := g.byName[name]
	return e, ok
}

// Entities returns every entity in traversal (insertion) order. The returned
// slice is the graph's internal storage — callers may iterate over it but MUST
// NOT append to or reorder it.
func (g *Graph) Entities() []Entity {
	return g.order
}

// Names returns the entity names in traversal order. Used for the output
// header row.
func (g *Graph) Names() []string {
	names := make([]string, len(g.order))
	for i, e := range g.order {
		names[i] = e.Name()
	}
	return names
}

// Len returns the number of entities in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}
