package runner

import (
	"context"

	rcron "github.com/robfig/cron/v3"
)

// Refresher periodically re-runs the pipeline from its source identifiers so
// derived values track external writes to the store. Scheduling uses
// standard cron expressions.
type Refresher struct {
	runner *Runner
	cron   *rcron.Cron
	logger Logger
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefresherLogger sets the refresher logger.
func WithRefresherLogger(logger Logger) RefresherOption {
	return func(f *Refresher) {
		f.logger = logger
	}
}

// NewRefresher builds a stopped refresher around the runner.
func NewRefresher(r *Runner, opts ...RefresherOption) *Refresher {
	f := &Refresher{
		runner: r,
		cron:   rcron.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = normalizeLogger(f.logger)
	return f
}

// Schedule registers a refresh job for the given cron expression. Refresh
// failures are logged, never fatal; the next tick retries from scratch.
func (f *Refresher) Schedule(expr string) (rcron.EntryID, error) {
	return f.cron.AddFunc(expr, func() {
		result, err := f.runner.Initialize(context.Background())
		if err != nil {
			f.logger.Error("scheduled refresh failed: %v", err)
			return
		}
		f.logger.Debug("scheduled refresh applied %d values", len(result.Applied))
	})
}

// Start begins running scheduled jobs in their own goroutine.
func (f *Refresher) Start() {
	f.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (f *Refresher) Stop() {
	<-f.cron.Stop().Done()
}
