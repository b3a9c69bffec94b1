package stateflow

import (
	"testing"
)

// pipelineRegistry builds the canonical split pipeline:
//
//	f1 (local):  x -> y
//	f2 (remote): y -> z
//	f3 (local):  z -> w
//	f4 (local):  x -> v
type pipelineIDs struct {
	f1, f2, f3, f4 CallbackID
}

func pipelineRegistry(t *testing.T) (*Registry, pipelineIDs) {
	t.Helper()
	reg := NewRegistry()
	ids := pipelineIDs{
		f1: mustRegister(t, reg, Callback{Name: "f1", Inputs: []Identifier{"x"}, Outputs: []Identifier{"y"}}),
		f2: mustRegister(t, reg, Callback{Name: "f2", Inputs: []Identifier{"y"}, Outputs: []Identifier{"z"}, Affinity: AffinityRemote}),
		f3: mustRegister(t, reg, Callback{Name: "f3", Inputs: []Identifier{"z"}, Outputs: []Identifier{"w"}}),
		f4: mustRegister(t, reg, Callback{Name: "f4", Inputs: []Identifier{"x"}, Outputs: []Identifier{"v"}}),
	}
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	return reg, ids
}

func equalIDs(a, b []CallbackID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestComputePlanSplitsAroundRemoteCallback(t *testing.T) {
	reg, ids := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}

	wantPre := []CallbackID{ids.f1, ids.f4}
	if !equalIDs(plan.PreLocal, wantPre) && !equalIDs(plan.PreLocal, []CallbackID{ids.f4, ids.f1}) {
		t.Fatalf("unexpected preLocal: %v", plan.PreLocal)
	}
	if !equalIDs(plan.Remote, []CallbackID{ids.f2}) {
		t.Fatalf("unexpected remote: %v", plan.Remote)
	}
	if !equalIDs(plan.PostLocal, []CallbackID{ids.f3}) {
		t.Fatalf("unexpected postLocal: %v", plan.PostLocal)
	}
}

func TestComputePlanPhasesAreDisjointAndCoverClosure(t *testing.T) {
	reg, ids := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}

	seen := make(map[CallbackID]int)
	for _, id := range plan.All() {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("callback %d appears %d times across phases", id, n)
		}
	}

	// Union equals the transitive dependents closure of the triggered set.
	want := []CallbackID{ids.f1, ids.f2, ids.f3, ids.f4}
	if len(seen) != len(want) {
		t.Fatalf("expected closure of %d callbacks, got %v", len(want), seen)
	}
	for _, id := range want {
		if seen[id] != 1 {
			t.Fatalf("closure missing callback %d", id)
		}
	}

	// Phase-internal order is non-decreasing in rank.
	for _, phase := range [][]CallbackID{plan.PreLocal, plan.Remote, plan.PostLocal} {
		last := -1
		for _, id := range phase {
			rank, err := reg.Rank(id)
			if err != nil {
				t.Fatalf("rank: %v", err)
			}
			if rank < last {
				t.Fatalf("phase order violates rank: %v", phase)
			}
			last = rank
		}
	}
}

func TestComputePlanRemoteAffinityAlwaysLandsRemote(t *testing.T) {
	reg, ids := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("x", "y", "z"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}
	for _, id := range plan.PreLocal {
		if id == ids.f2 {
			t.Fatalf("remote-affinity callback in preLocal")
		}
	}
	for _, id := range plan.PostLocal {
		if id == ids.f2 {
			t.Fatalf("remote-affinity callback in postLocal")
		}
	}
	found := false
	for _, id := range plan.Remote {
		if id == ids.f2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("remote-affinity callback missing from remote phase")
	}
}

func TestComputePlanUnrelatedRemoteDoesNotDemoteLocalBranch(t *testing.T) {
	reg, ids := pipelineRegistry(t)

	// f4 has no remote ancestor or dependent in a plan triggered by x, so it
	// stays preLocal even though f2 is remote elsewhere in the plan.
	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}
	for _, id := range plan.PreLocal {
		if id == ids.f4 {
			return
		}
	}
	t.Fatalf("expected f4 in preLocal, plan %+v", plan)
}

func TestComputePlanDefaultsWedgedLocalCallbackToRemote(t *testing.T) {
	// c sits between two remote callbacks: remote ancestor b upstream,
	// remote dependent d downstream. It can run locally but must ship with
	// the remote phase to keep boundaries contiguous.
	reg := NewRegistry()
	a := mustRegister(t, reg, Callback{Name: "a", Inputs: []Identifier{"x"}, Outputs: []Identifier{"p"}})
	b := mustRegister(t, reg, Callback{Name: "b", Inputs: []Identifier{"p"}, Outputs: []Identifier{"q"}, Affinity: AffinityRemote})
	c := mustRegister(t, reg, Callback{Name: "c", Inputs: []Identifier{"q"}, Outputs: []Identifier{"r"}})
	d := mustRegister(t, reg, Callback{Name: "d", Inputs: []Identifier{"r"}, Outputs: []Identifier{"s"}, Affinity: AffinityRemote})
	e := mustRegister(t, reg, Callback{Name: "e", Inputs: []Identifier{"s"}, Outputs: []Identifier{"t"}})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}
	if !equalIDs(plan.PreLocal, []CallbackID{a}) {
		t.Fatalf("unexpected preLocal: %v", plan.PreLocal)
	}
	if !equalIDs(plan.Remote, []CallbackID{b, c, d}) {
		t.Fatalf("unexpected remote: %v", plan.Remote)
	}
	if !equalIDs(plan.PostLocal, []CallbackID{e}) {
		t.Fatalf("unexpected postLocal: %v", plan.PostLocal)
	}
}

func TestComputePlanEmptyForUnknownIdentifier(t *testing.T) {
	reg, _ := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("unknown"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}

func TestComputePlanIncludesDiamondOnce(t *testing.T) {
	// x fans out to two branches that rejoin; the join callback is reached
	// by two paths but planned once.
	reg := NewRegistry()
	mustRegister(t, reg, Callback{Name: "left", Inputs: []Identifier{"x"}, Outputs: []Identifier{"l"}})
	mustRegister(t, reg, Callback{Name: "right", Inputs: []Identifier{"x"}, Outputs: []Identifier{"r"}})
	join := mustRegister(t, reg, Callback{Name: "join", Inputs: []Identifier{"l", "r"}, Outputs: []Identifier{"j"}})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}
	count := 0
	for _, id := range plan.All() {
		if id == join {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("join planned %d times", count)
	}
	if plan.Len() != 3 {
		t.Fatalf("expected 3 callbacks, got %d", plan.Len())
	}
}

func TestRequiredArgsUnionsDeclaredInputs(t *testing.T) {
	reg, ids := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}

	args, err := reg.RequiredArgs(plan.Remote)
	if err != nil {
		t.Fatalf("required args: %v", err)
	}
	if len(args) != 1 || !args.Has("y") {
		t.Fatalf("expected remote args {y}, got %v", args.Sorted())
	}

	args, err = reg.RequiredArgs([]CallbackID{ids.f1, ids.f3})
	if err != nil {
		t.Fatalf("required args: %v", err)
	}
	if len(args) != 2 || !args.Has("x") || !args.Has("z") {
		t.Fatalf("expected args {x z}, got %v", args.Sorted())
	}
}

func TestRequiredStateSkipsInPlanProduction(t *testing.T) {
	reg, _ := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("x"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}

	// y and z are produced in-plan before they are needed.
	state, err := reg.RequiredState(NewIdentifierSet("x"), plan.All())
	if err != nil {
		t.Fatalf("required state: %v", err)
	}
	if len(state) != 0 {
		t.Fatalf("expected no required state, got %v", state.Sorted())
	}

	// Running only the tail requires z from the store.
	state, err = reg.RequiredState(NewIdentifierSet(), plan.PostLocal)
	if err != nil {
		t.Fatalf("required state: %v", err)
	}
	if len(state) != 1 || !state.Has("z") {
		t.Fatalf("expected required state {z}, got %v", state.Sorted())
	}
}

func TestRequiredStateNeverIncludesUpdateSet(t *testing.T) {
	reg, _ := pipelineRegistry(t)

	plan, err := reg.ComputePlan(NewIdentifierSet("z"))
	if err != nil {
		t.Fatalf("compute plan: %v", err)
	}
	state, err := reg.RequiredState(NewIdentifierSet("z"), plan.All())
	if err != nil {
		t.Fatalf("required state: %v", err)
	}
	if state.Has("z") {
		t.Fatalf("required state must not include the update set: %v", state.Sorted())
	}
}

func TestRequiredInitializationInputs(t *testing.T) {
	reg, _ := pipelineRegistry(t)

	inputs, err := reg.RequiredInitializationInputs()
	if err != nil {
		t.Fatalf("required initialization inputs: %v", err)
	}
	// x is the only declared input no callback produces.
	if len(inputs) != 1 || !inputs.Has("x") {
		t.Fatalf("expected source inputs {x}, got %v", inputs.Sorted())
	}
}
