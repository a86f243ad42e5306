package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/catalog"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/config"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

// environment is everything a command needs to talk to the data hub.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	session *session.Session
}

// openEnvironment loads configuration, opens the database and starts a
// session. The caller must Close it.
func openEnvironment(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	if opts.EnvFile != "" {
		if err := config.LoadDotEnv(opts.EnvFile); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load env file", err)
		}
	}

	cfg, err := config.Load(opts.ConfigPath, func(c *config.Config) {
		if opts.Database != "" {
			c.Database = opts.Database
		}
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	var cat *catalog.Catalog
	if cfg.CatalogDir != "" {
		cat, err = catalog.Load(cfg.CatalogDir)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		logger.Debug("catalog loaded", "dir", cfg.CatalogDir, "tables", len(cat.Tables()))
	}

	logger.Debug("opening database", "path", cfg.Database, "writable", cfg.Writable)
	st, err := store.Open(cfg.Database, store.Options{ReadOnly: !cfg.Writable})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	sess := session.New(st, catalog.NewDescriber(st, cat), session.Config{
		MaxRows:         cfg.Limits.MaxRows,
		Timeout:         cfg.Timeout(),
		HistoryCap:      cfg.Limits.HistoryCap,
		HistoryPageSize: cfg.Limits.HistoryPageSize,
		GridPageSize:    cfg.Limits.GridPageSize,
		Logger:          logger,
	})

	return &environment{cfg: cfg, logger: logger, store: st, session: sess}, nil
}

// Close ends the session and closes the database.
func (e *environment) Close() {
	e.session.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}
