package main

import (
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-stateflow/runner"
)

// glogAdapter bridges go-logger onto the runner's logging contract.
type glogAdapter struct {
	logger glog.Logger
}

func (l glogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogAdapter) WithFields(fields map[string]any) runner.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}

func newLogger(cfg Config) glogAdapter {
	return glogAdapter{logger: glog.NewLogger(
		glog.WithLevel(cfg.Log.Level),
	)}
}
