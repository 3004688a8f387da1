package kitting

import (
	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalogs/nomenclature"
)

// Graph maps each kit to its ordered component ids.
type Graph map[id.ID][]id.ID

// BuildGraph builds the kit graph. Every kit gets a node even without edges.
func BuildGraph(kitIDs []id.ID, edges []nomenclature.KitEdge) Graph {
	g := make(Graph, len(kitIDs))
	for _, k := range kitIDs {
		if _, ok := g[k]; !ok {
			g[k] = nil
		}
	}
	for _, e := range edges {
		g[e.KitID] = append(g[e.KitID], e.ComponentID)
	}
	return g
}

// WithEdges returns a copy of g where kitID points at components.
func (g Graph) WithEdges(kitID id.ID, components []id.ID) Graph {
	c := make(Graph, len(g)+1)
	for k, v := range g {
		c[k] = v
	}
	c[kitID] = append([]id.ID(nil), components...)
	return c
}

// HasPath reports whether to is reachable from from. Nodes without an
// adjacency entry are leaves.
func (g Graph) HasPath(from, to id.ID) bool {
	if from == to {
		return true
	}
	visited := map[id.ID]bool{from: true}
	stack := []id.ID{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g[n] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// FindCycle returns the first proposed component from which kitID is
// reachable once kitID points at components, or false when none closes a cycle.
func (g Graph) FindCycle(kitID id.ID, components []id.ID) (id.ID, bool) {
	h := g.WithEdges(kitID, components)
	for _, c := range components {
		if h.HasPath(c, kitID) {
			return c, true
		}
	}
	return id.ID{}, false
}
