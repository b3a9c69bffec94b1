package stateflow

import (
	"github.com/goliatone/go-errors"
)

// ArgState distinguishes values supplied because they changed from values
// supplied only because a downstream callback needs them.
type ArgState string

const (
	ArgUnmodified ArgState = "unmodified"
	ArgUpdated    ArgState = "updated"
)

// ExecutionArg is one value crossing the execution boundary, tagged with
// whether it changed this batch.
type ExecutionArg struct {
	Value Value    `json:"value"`
	State ArgState `json:"state"`
}

// ExecutePlan runs an ordered list of callbacks against a state snapshot
// built from args. Each callback's outputs are threaded back into the state
// so later callbacks in the same run see fresh values, and every output is
// accumulated into the result tagged Updated. Duplicate output identifiers
// across callbacks are legal; within the state map the last writer wins.
//
// Invoking a callback whose body is nil fails: that callback's code was not
// linked into this binary and the plan should never have been routed here.
func (r *Registry) ExecutePlan(args []ExecutionArg, ids []CallbackID) ([]ExecutionArg, error) {
	if _, err := r.frozenGraph(); err != nil {
		return nil, err
	}

	state := make(State, len(args))
	for _, arg := range args {
		state[arg.Value.Identifier()] = arg.Value
	}

	var outputs []Value
	for _, id := range ids {
		cb, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		if cb.Body == nil {
			return nil, errors.New("callback body not available in this binary", errors.CategoryConflict).
				WithTextCode(ErrCodeBodyNotAvailable).
				WithMetadata(map[string]any{"callback": cb.Name, "affinity": cb.Affinity.String()})
		}

		fresh, err := cb.Body(state)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryHandler, "callback execution failed").
				WithMetadata(map[string]any{"callback": cb.Name})
		}
		for _, value := range fresh {
			state[value.Identifier()] = value
		}
		outputs = append(outputs, fresh...)
	}

	result := make([]ExecutionArg, 0, len(outputs))
	for _, value := range outputs {
		result = append(result, ExecutionArg{Value: value, State: ArgUpdated})
	}
	return result, nil
}
