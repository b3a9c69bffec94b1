package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	stateflow "github.com/goliatone/go-stateflow"
	"github.com/goliatone/go-stateflow/rpc"
	"github.com/goliatone/go-stateflow/runner"
	"github.com/goliatone/go-stateflow/store"

	_ "modernc.org/sqlite"
)

var cli struct {
	Config string `short:"c" type:"path" help:"Path to a YAML config file."`

	Serve ServeCmd `cmd:"" help:"Run the remote execution peer."`
	Run   RunCmd   `cmd:"" help:"Run the update host against a remote peer."`
	Demo  DemoCmd  `cmd:"" help:"Run a sample batch in-process and exit."`
}

type cmdContext struct {
	cfg    Config
	logger glogAdapter
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("stateflowd"),
		kong.Description("Incremental update pipeline daemon."),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(cli.Config)
	kctx.FatalIfErrorf(err)

	kctx.FatalIfErrorf(kctx.Run(&cmdContext{cfg: cfg, logger: newLogger(cfg)}))
}

// ServeCmd hosts the remote half of the pipeline over HTTP.
type ServeCmd struct{}

func (c *ServeCmd) Run(app *cmdContext) error {
	reg, err := pipelineRegistry(true)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    app.cfg.Addr,
		Handler: rpc.NewServer(reg, rpc.WithServerLogger(app.logger)).Handler(),
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		app.logger.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	app.logger.Info("execution peer listening on %s", app.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunCmd drives the host side: it initializes the pipeline from stored
// sources, schedules refreshes, and dispatches remote work to the peer.
type RunCmd struct{}

func (c *RunCmd) Run(app *cmdContext) error {
	reg, err := pipelineRegistry(false)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(app.cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	r, err := runner.New(reg, st, rpc.NewClient(app.cfg.PeerURL), runner.WithLogger(app.logger))
	if err != nil {
		return err
	}

	result, err := r.Initialize(context.Background())
	if err != nil {
		return err
	}
	app.logger.Info("initialized: %d values applied", len(result.Applied))

	refresher := runner.NewRefresher(r, runner.WithRefresherLogger(app.logger))
	if app.cfg.Refresh != "" {
		if _, err := refresher.Schedule(app.cfg.Refresh); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
		refresher.Start()
		defer refresher.Stop()
		app.logger.Info("refresh scheduled: %s", app.cfg.Refresh)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	app.logger.Info("shutting down")
	return nil
}

// DemoCmd seeds sample sensor readings and runs one batch with the remote
// stage executed in-process.
type DemoCmd struct {
	Celsius  float64 `default:"24" help:"Sample temperature reading."`
	Humidity float64 `default:"60" help:"Sample humidity reading."`
}

func (c *DemoCmd) Run(app *cmdContext) error {
	ctx := context.Background()

	reg, err := pipelineRegistry(true)
	if err != nil {
		return err
	}

	st := store.NewMemoryStore().Seed(
		stateflow.NewValue("celsius", c.Celsius),
		stateflow.NewValue("humidity", c.Humidity),
	)

	r, err := runner.New(reg, st, rpc.NewLocal(reg), runner.WithLogger(app.logger))
	if err != nil {
		return err
	}

	result, err := r.HandleUpdates(ctx, []stateflow.Value{
		stateflow.NewValue("celsius", c.Celsius),
		stateflow.NewValue("humidity", c.Humidity),
	})
	if err != nil {
		return err
	}

	for _, v := range result.Applied {
		fmt.Printf("%-14s %v\n", v.ID, v.Data)
	}
	return nil
}

func openStore(cfg Config) (store.Store, func(), error) {
	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewSQLiteStore(db, cfg.Database.Table), func() { _ = db.Close() }, nil
}
