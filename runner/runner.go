// Package runner drives update batches end to end: plan computation, the
// local pre phase, the single remote round trip, the local post phase, and
// the version-fenced merge of results into the durable value store.
package runner

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/goliatone/go-errors"
	stateflow "github.com/goliatone/go-stateflow"
	"github.com/goliatone/go-stateflow/store"
)

// ErrCodeRemoteFailed tags batch failures caused by the remote executor.
const ErrCodeRemoteFailed = "REMOTE_FAILED"

// RemoteExecutor runs the remote segment of a plan on a peer process. The
// rpc package provides HTTP client and in-process implementations.
type RemoteExecutor interface {
	ExecuteRemote(ctx context.Context, batchID string, args []stateflow.ExecutionArg, plan []stateflow.CallbackID) ([]stateflow.ExecutionArg, error)
}

// BatchResult records what a batch did: which callbacks ran, which values
// landed in the store, and which writes lost a version race to a concurrent
// batch.
type BatchResult struct {
	BatchID   string
	Plan      stateflow.Plan
	Applied   []stateflow.Value
	Conflicts []stateflow.Identifier
}

// Runner executes update batches against a frozen registry.
type Runner struct {
	registry *stateflow.Registry
	store    store.Store
	remote   RemoteExecutor
	logger   Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New builds a Runner. The registry must already be frozen; remote may be
// nil when the registry declares no remote callbacks.
func New(registry *stateflow.Registry, st store.Store, remote RemoteExecutor, opts ...Option) (*Runner, error) {
	if registry == nil || !registry.Frozen() {
		return nil, errors.New("runner requires a frozen registry", errors.CategoryBadInput).
			WithTextCode(stateflow.ErrCodeRegistryNotFrozen)
	}
	if st == nil {
		return nil, errors.New("runner requires a value store", errors.CategoryBadInput)
	}

	r := &Runner{
		registry: registry,
		store:    st,
		remote:   remote,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = normalizeLogger(r.logger)
	return r, nil
}

// HandleUpdates runs one batch for the given changed values. The whole batch
// is transactional with respect to the remote phase: if the remote executor
// fails, nothing from the batch reaches the store.
func (r *Runner) HandleUpdates(ctx context.Context, updates []stateflow.Value) (*BatchResult, error) {
	batchID := uuid.NewString()
	log := withLoggerFields(r.logger, map[string]any{"batch_id": batchID})

	changed := stateflow.NewIdentifierSet()
	for _, v := range updates {
		changed.Add(v.Identifier())
	}

	plan, err := r.registry.ComputePlan(changed)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{BatchID: batchID, Plan: plan}
	if plan.Empty() {
		log.Debug("update batch reaches no callbacks")
		return result, nil
	}
	log.Info("update batch planned: %d pre, %d remote, %d post",
		len(plan.PreLocal), len(plan.Remote), len(plan.PostLocal))

	// Snapshot versions before any work runs; the merge at the end only
	// lands writes for slots still at their snapshot version.
	versions, err := r.store.Versions(ctx, r.mergeTargets(changed, plan))
	if err != nil {
		return nil, err
	}

	updated := make(map[stateflow.Identifier]stateflow.ExecutionArg, len(updates))
	for _, v := range updates {
		updated[v.Identifier()] = stateflow.ExecutionArg{Value: v, State: stateflow.ArgUpdated}
	}

	if err := r.runLocal(ctx, updated, plan.PreLocal); err != nil {
		return nil, err
	}

	if len(plan.Remote) > 0 {
		if r.remote == nil {
			return nil, errors.New("plan requires remote execution but no remote executor is configured", errors.CategoryConflict).
				WithTextCode(ErrCodeRemoteFailed)
		}
		args, err := r.executionArgs(ctx, updated, plan.Remote)
		if err != nil {
			return nil, err
		}
		out, err := r.remote.ExecuteRemote(ctx, batchID, args, plan.Remote)
		if err != nil {
			log.Error("remote phase failed, dropping batch: %v", err)
			return nil, errors.Wrap(err, errors.CategoryExternal, "remote execution failed").
				WithTextCode(ErrCodeRemoteFailed).
				WithMetadata(map[string]any{"batch_id": batchID, "remote_callbacks": len(plan.Remote)})
		}
		absorb(updated, out)
	}

	if err := r.runLocal(ctx, updated, plan.PostLocal); err != nil {
		return nil, err
	}

	return r.merge(ctx, log, result, updated, versions)
}

// Initialize cold-starts the pipeline: it reads every source identifier,
// values no callback produces, and runs them through a full batch. Hosts
// call it once at startup and again on scheduled refreshes.
func (r *Runner) Initialize(ctx context.Context) (*BatchResult, error) {
	sources, err := r.registry.RequiredInitializationInputs()
	if err != nil {
		return nil, err
	}
	values, err := r.store.Values(ctx, sources.Sorted())
	if err != nil {
		return nil, err
	}
	return r.HandleUpdates(ctx, values)
}

func (r *Runner) runLocal(ctx context.Context, updated map[stateflow.Identifier]stateflow.ExecutionArg, ids []stateflow.CallbackID) error {
	if len(ids) == 0 {
		return nil
	}
	args, err := r.executionArgs(ctx, updated, ids)
	if err != nil {
		return err
	}
	out, err := r.registry.ExecutePlan(args, ids)
	if err != nil {
		return err
	}
	absorb(updated, out)
	return nil
}

// executionArgs resolves the argument surface of a plan segment: values
// already updated this batch are passed through as-is, everything else is
// read from the store and tagged unmodified.
func (r *Runner) executionArgs(ctx context.Context, updated map[stateflow.Identifier]stateflow.ExecutionArg, ids []stateflow.CallbackID) ([]stateflow.ExecutionArg, error) {
	required, err := r.registry.RequiredArgs(ids)
	if err != nil {
		return nil, err
	}

	args := make([]stateflow.ExecutionArg, 0, len(required))
	for _, id := range required.Sorted() {
		if arg, ok := updated[id]; ok {
			args = append(args, arg)
			continue
		}
		v, err := r.store.ReadValue(ctx, id)
		if err != nil {
			return nil, err
		}
		args = append(args, stateflow.ExecutionArg{Value: v, State: stateflow.ArgUnmodified})
	}
	return args, nil
}

// mergeTargets lists every identifier the batch may write: the changed
// inputs plus all outputs of callbacks in the plan.
func (r *Runner) mergeTargets(changed stateflow.IdentifierSet, plan stateflow.Plan) []stateflow.Identifier {
	targets := stateflow.NewIdentifierSet()
	for id := range changed {
		targets.Add(id)
	}
	for _, cbID := range plan.All() {
		cb, err := r.registry.Get(cbID)
		if err != nil {
			continue
		}
		for _, out := range cb.Outputs {
			targets.Add(out)
		}
	}
	return targets.Sorted()
}

// merge lands the batch's updated values in the store. Each write is fenced
// on the version observed before the batch ran; a slot bumped by a
// concurrent batch keeps the newer value and the loser is reported as a
// conflict rather than failing the whole batch.
func (r *Runner) merge(ctx context.Context, log Logger, result *BatchResult, updated map[stateflow.Identifier]stateflow.ExecutionArg, versions map[stateflow.Identifier]int64) (*BatchResult, error) {
	ids := make([]stateflow.Identifier, 0, len(updated))
	for id := range updated {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		arg := updated[id]
		if arg.State != stateflow.ArgUpdated {
			continue
		}
		if _, err := r.store.UpdateValueIfFresh(ctx, arg.Value, versions[id]); err != nil {
			if store.IsVersionConflict(err) {
				log.Warn("dropping stale write for %q, a newer batch already landed", string(id))
				result.Conflicts = append(result.Conflicts, id)
				continue
			}
			return nil, err
		}
		result.Applied = append(result.Applied, arg.Value)
	}

	log.Info("batch merged: %d applied, %d conflicts", len(result.Applied), len(result.Conflicts))
	return result, nil
}

func absorb(updated map[stateflow.Identifier]stateflow.ExecutionArg, out []stateflow.ExecutionArg) {
	for _, arg := range out {
		updated[arg.Value.Identifier()] = arg
	}
}
