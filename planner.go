package stateflow

import "sort"

// Plan is the phase-partitioned response to a batch of changed identifiers.
// The three sequences are disjoint, each is ordered by ascending topological
// rank, and their union is the full set of callbacks the update reaches.
//
// PreLocal runs in the caller before the remote round trip, Remote is
// dispatched to the remote executor peer in a single round trip, and
// PostLocal runs in the caller afterwards. Phases are contiguous stretches
// of the topological order so one round trip always suffices.
type Plan struct {
	PreLocal  []CallbackID `json:"preLocal"`
	Remote    []CallbackID `json:"remote"`
	PostLocal []CallbackID `json:"postLocal"`
}

// All returns the full plan in execution order: pre, remote, post.
func (p Plan) All() []CallbackID {
	out := make([]CallbackID, 0, len(p.PreLocal)+len(p.Remote)+len(p.PostLocal))
	out = append(out, p.PreLocal...)
	out = append(out, p.Remote...)
	out = append(out, p.PostLocal...)
	return out
}

// Empty reports whether the plan contains no callbacks.
func (p Plan) Empty() bool {
	return len(p.PreLocal) == 0 && len(p.Remote) == 0 && len(p.PostLocal) == 0
}

// Len returns the number of callbacks across all phases.
func (p Plan) Len() int {
	return len(p.PreLocal) + len(p.Remote) + len(p.PostLocal)
}

// ComputePlan determines which callbacks an update batch reaches, orders
// them by rank, and partitions the run into local/remote/local phases.
func (r *Registry) ComputePlan(changed IdentifierSet) (Plan, error) {
	graph, err := r.frozenGraph()
	if err != nil {
		return Plan{}, err
	}

	reachable := graph.reachableFrom(changed)

	ordered := make([]CallbackID, 0, len(reachable))
	for id := range reachable {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return graph.rank[ordered[i].Index()] < graph.rank[ordered[j].Index()]
	})

	isRemote := func(id CallbackID) bool {
		return r.callbacks[id.Index()].Callback.Affinity == AffinityRemote
	}
	pre := &closureCheck{isRemote: isRemote, edges: graph.ancestors, inPlan: reachable, memo: make(map[CallbackID]bool)}
	post := &closureCheck{isRemote: isRemote, edges: graph.dependents, inPlan: reachable, memo: make(map[CallbackID]bool)}

	var plan Plan
	for _, id := range ordered {
		switch {
		case isRemote(id):
			plan.Remote = append(plan.Remote, id)
		case pre.localOnly(id):
			// No remote work upstream of this callback within the plan: its
			// inputs are resolvable before the round trip.
			plan.PreLocal = append(plan.PreLocal, id)
		case post.localOnly(id):
			// Nothing remote depends on it: its output can wait until after
			// the round trip.
			plan.PostLocal = append(plan.PostLocal, id)
		default:
			// Locally runnable but wedged between remote work. Sending it to
			// the peer keeps the phase boundaries contiguous.
			plan.Remote = append(plan.Remote, id)
		}
	}
	return plan, nil
}

// reachableFrom collects the transitive dependents closure of every callback
// triggered by the changed identifiers.
func (g *depGraph) reachableFrom(changed IdentifierSet) map[CallbackID]struct{} {
	reachable := make(map[CallbackID]struct{})
	var stack []CallbackID
	for id := range changed {
		stack = append(stack, g.inputToCallbacks[id]...)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := reachable[id]; seen {
			continue
		}
		reachable[id] = struct{}{}
		stack = append(stack, g.dependents[id.Index()]...)
	}
	return reachable
}

// closureCheck answers "is this callback free of remote work along the given
// edge direction, within the current plan?". Results are memoized per id.
// The traversal is an explicit-stack post-order so plan size, not recursion
// depth, bounds the work; correctness relies on the graph being acyclic,
// which Freeze guarantees.
type closureCheck struct {
	isRemote func(CallbackID) bool
	edges    [][]CallbackID
	inPlan   map[CallbackID]struct{}
	memo     map[CallbackID]bool
}

type closureFrame struct {
	id       CallbackID
	expanded bool
}

func (c *closureCheck) localOnly(root CallbackID) bool {
	if v, ok := c.memo[root]; ok {
		return v
	}

	stack := []closureFrame{{id: root}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, done := c.memo[frame.id]; done {
			continue
		}
		if c.isRemote(frame.id) {
			c.memo[frame.id] = false
			continue
		}

		if frame.expanded {
			verdict := true
			for _, next := range c.edges[frame.id.Index()] {
				if _, ok := c.inPlan[next]; !ok {
					continue
				}
				if v, known := c.memo[next]; known && !v {
					verdict = false
					break
				}
			}
			c.memo[frame.id] = verdict
			continue
		}

		stack = append(stack, closureFrame{id: frame.id, expanded: true})
		for _, next := range c.edges[frame.id.Index()] {
			if _, ok := c.inPlan[next]; !ok {
				continue
			}
			if _, known := c.memo[next]; !known {
				stack = append(stack, closureFrame{id: next})
			}
		}
	}
	return c.memo[root]
}

// RequiredArgs returns the union of declared inputs across the given plan
// segment: the full argument surface a caller must resolve before running
// it.
func (r *Registry) RequiredArgs(ids []CallbackID) (IdentifierSet, error) {
	if _, err := r.frozenGraph(); err != nil {
		return nil, err
	}

	args := make(IdentifierSet)
	for _, id := range ids {
		cb, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		for _, input := range cb.Inputs {
			args.Add(input)
		}
	}
	return args, nil
}

// RequiredState simulates executing the plan segment in order and reports
// which inputs must be fetched from the durable state store: anything not
// covered by the update batch or produced earlier in the same segment.
func (r *Registry) RequiredState(updated IdentifierSet, ids []CallbackID) (IdentifierSet, error) {
	if _, err := r.frozenGraph(); err != nil {
		return nil, err
	}

	available := make(IdentifierSet, len(updated))
	for id := range updated {
		available.Add(id)
	}

	required := make(IdentifierSet)
	for _, id := range ids {
		cb, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		for _, input := range cb.Inputs {
			if !available.Has(input) {
				required.Add(input)
			}
		}
		for _, output := range cb.Outputs {
			available.Add(output)
		}
	}
	return required, nil
}

// RequiredInitializationInputs returns the source identifiers with no
// producer: every declared input that no callback outputs. This is the
// minimal read needed to cold-start the system.
func (r *Registry) RequiredInitializationInputs() (IdentifierSet, error) {
	if _, err := r.frozenGraph(); err != nil {
		return nil, err
	}

	required := make(IdentifierSet)
	for _, rc := range r.All() {
		for _, input := range rc.Callback.Inputs {
			required.Add(input)
		}
	}
	for _, rc := range r.All() {
		for _, output := range rc.Callback.Outputs {
			delete(required, output)
		}
	}
	return required, nil
}
