// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction, database opening and
// planner wiring to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"os"

	"github.com/lherron/homeplan/internal/attach"
	"github.com/lherron/homeplan/internal/config"
	"github.com/lherron/homeplan/internal/db"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/logging"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/lherron/homeplan/internal/remote"
	"github.com/lherron/homeplan/internal/render"
	"github.com/lherron/homeplan/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	Logger *zap.Logger

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Planner is wired to DB (nil if NeedsDB is false)
	Planner *planner.Planner

	// Unit is the presentation unit for lengths
	Unit domain.Unit
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Renderer returns a renderer for cmd's stdout honoring --output and
// --porcelain, falling back to the configured output format.
func (a *App) Renderer(cmd *cobra.Command) (*render.Renderer, error) {
	format := a.Config.Output
	if f := cmd.Flag("output"); f != nil && f.Changed {
		format = f.Value.String()
	}
	parsed, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	porcelain := false
	if f := cmd.Flag("porcelain"); f != nil {
		porcelain = f.Value.String() == "true"
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: parsed, Porcelain: porcelain}), nil
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// Migrate applies pending migrations instead of refusing to run.
	Migrate bool
}

// DefaultOptions returns default options (DB required, schema current).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// Initializing returns options for commands that create or upgrade the
// database.
func Initializing() Options {
	return Options{NeedsDB: true, Migrate: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	overrides := map[string]*string{
		"db":          &cfg.DBPath,
		"log-level":   &cfg.LogLevel,
		"actor":       &cfg.DefaultActor,
		"unit":        &cfg.DefaultUnit,
		"remote-file": &cfg.RemoteFile,
	}
	for name, dst := range overrides {
		if f := cmd.Flag(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}

	logger, err := logging.New(logging.Config{
		Level:             cfg.LogLevel,
		Encoding:          cfg.LogEncoding,
		DisableCaller:     true,
		DisableStacktrace: true,
	}, os.Stderr)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	actor, err := cfg.Actor()
	if err != nil {
		return nil, err
	}
	if app.Unit, err = cfg.Unit(); err != nil {
		return nil, err
	}

	if !opts.NeedsDB {
		return app, nil
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.Migrate {
		applied, err := database.MigrateWithInfo()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		for _, name := range applied {
			logger.Info("applied migration", zap.String("migration", name))
		}
	} else if err := database.RequiresMigrationError(); err != nil {
		database.Close()
		return nil, err
	}
	app.DB = database

	popts := []planner.Option{
		planner.WithLogger(logger),
		planner.WithActor(actor),
		planner.WithAttach(attach.Config{AttachDir: cfg.AttachDir, MaxMB: cfg.AttachMaxMB()}),
	}
	if cfg.RemoteFile != "" {
		popts = append(popts, planner.WithRemote(remote.NewFileClient(cfg.RemoteFile), cfg.RemoteView))
	}
	app.Planner = planner.New(store.New(database, nil), popts...)

	return app, nil
}
