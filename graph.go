package stateflow

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// depGraph is the dependency structure derived from callback declarations at
// freeze time. It is built once and never mutated, so it is safe to share
// read-only across concurrent planners.
//
// dependents, ancestors, and rank are indexed by CallbackID, which is the
// dense registration index.
type depGraph struct {
	inputToCallbacks map[Identifier][]CallbackID
	dependents       [][]CallbackID
	ancestors        [][]CallbackID
	rank             []int
}

func buildDepGraph(callbacks []RegisteredCallback) (*depGraph, error) {
	g := &depGraph{
		inputToCallbacks: make(map[Identifier][]CallbackID),
		dependents:       make([][]CallbackID, len(callbacks)),
		ancestors:        make([][]CallbackID, len(callbacks)),
	}

	for _, rc := range callbacks {
		for _, input := range rc.Callback.Inputs {
			g.inputToCallbacks[input] = append(g.inputToCallbacks[input], rc.ID)
		}
	}

	// A callback consuming one of our outputs is a dependent; we are an
	// ancestor of it. Multiple producers of the same identifier are legal.
	for _, rc := range callbacks {
		for _, output := range rc.Callback.Outputs {
			for _, dep := range g.inputToCallbacks[output] {
				g.dependents[rc.ID.Index()] = append(g.dependents[rc.ID.Index()], dep)
				g.ancestors[dep.Index()] = append(g.ancestors[dep.Index()], rc.ID)
			}
		}
	}

	order, err := g.topologicalOrder(callbacks)
	if err != nil {
		return nil, err
	}

	g.rank = make([]int, len(callbacks))
	for rank, id := range order {
		g.rank[id.Index()] = rank
	}
	return g, nil
}

const (
	colorUnvisited = iota
	colorInProgress
	colorDone
)

// topologicalOrder runs a three-color depth-first search over the dependents
// graph and returns ids in definition-before-use order. Hitting an
// in-progress node means the registration is cyclic, which is reported with
// the full cycle path by callback name.
func (g *depGraph) topologicalOrder(callbacks []RegisteredCallback) ([]CallbackID, error) {
	color := make([]int, len(callbacks))
	postOrder := make([]CallbackID, 0, len(callbacks))

	var cycle []CallbackID
	var visit func(id CallbackID) bool
	visit = func(id CallbackID) bool {
		switch color[id.Index()] {
		case colorDone:
			return false
		case colorInProgress:
			cycle = append(cycle, id)
			return true
		}

		color[id.Index()] = colorInProgress
		for _, dep := range g.dependents[id.Index()] {
			if visit(dep) {
				// Keep extending the path until the cycle closes on the
				// repeated node, then just unwind.
				if len(cycle) == 1 || cycle[0] != cycle[len(cycle)-1] {
					cycle = append(cycle, id)
				}
				return true
			}
		}
		color[id.Index()] = colorDone
		postOrder = append(postOrder, id)
		return false
	}

	for _, rc := range callbacks {
		if color[rc.ID.Index()] != colorUnvisited {
			continue
		}
		if visit(rc.ID) {
			return nil, cycleError(cycle, callbacks)
		}
	}

	// Post-order has consumers first; reverse for producers-first ranks.
	order := make([]CallbackID, len(postOrder))
	for i, id := range postOrder {
		order[len(postOrder)-1-i] = id
	}
	return order, nil
}

func cycleError(cycle []CallbackID, callbacks []RegisteredCallback) error {
	names := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		names = append(names, callbacks[cycle[i].Index()].Callback.Name)
	}
	return errors.New("callback dependency cycle: "+strings.Join(names, " -> "), errors.CategoryConflict).
		WithTextCode(ErrCodeCallbackCycle).
		WithMetadata(map[string]any{"cycle": names})
}
