package rpc

import (
	"context"

	stateflow "github.com/goliatone/go-stateflow"
)

// Local runs "remote" segments in-process against a registry. Single-binary
// deployments use it to skip the network hop while keeping the runner's
// phase semantics intact.
type Local struct {
	registry *stateflow.Registry
}

// NewLocal builds an in-process executor over the registry.
func NewLocal(registry *stateflow.Registry) *Local {
	return &Local{registry: registry}
}

func (l *Local) ExecuteRemote(_ context.Context, _ string, args []stateflow.ExecutionArg, plan []stateflow.CallbackID) ([]stateflow.ExecutionArg, error) {
	return l.registry.ExecutePlan(args, plan)
}
