package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"oshimaint/internal/config"
	"oshimaint/internal/journal"
	"oshimaint/internal/logging"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/notifications"
	"oshimaint/internal/pacing"
	"oshimaint/internal/store"
	"oshimaint/internal/store/pgstore"
	"oshimaint/internal/store/supastore"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	// openStore and notifier are replaced in tests.
	openStore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error)
	notifier  notifications.Service
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		openStore:  openConfiguredStore,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func openConfiguredStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return pgstore.Open(ctx, cfg.Postgres, logger)
	default:
		return supastore.New(cfg.Supabase, logger)
	}
}

// withStore opens the configured store for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := c.openStore(ctx, cfg, c.loggerValue())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()
	return fn(st)
}

func (c *commandContext) withJournal(fn func(*journal.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	js, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer js.Close()
	return fn(js)
}

func (c *commandContext) notifierValue() notifications.Service {
	if c.notifier != nil {
		return c.notifier
	}
	return notifications.NewService(c.configValue(), c.loggerValue())
}

func (c *commandContext) maintainer(st store.Store) *maintenance.Maintainer {
	return &maintenance.Maintainer{
		Store:  st,
		Pacer:  pacing.New(c.configValue().RequestDelay()),
		Logger: c.loggerValue(),
	}
}

// runOperation executes op as a journaled run against the configured store.
func (c *commandContext) runOperation(cmd *cobra.Command, command string, apply bool, op func(context.Context, *maintenance.Maintainer, *maintenance.Session) (maintenance.Summary, error)) (*journal.Run, error) {
	var run *journal.Run
	err := c.withStore(cmd.Context(), func(st store.Store) error {
		return c.withJournal(func(js *journal.Store) error {
			runner := &maintenance.Runner{
				Journal:  js,
				Notifier: c.notifierValue(),
				Logger:   c.loggerValue(),
				LockPath: c.configValue().LockPath(),
			}
			m := c.maintainer(st)
			var runErr error
			run, runErr = runner.Do(cmd.Context(), command, !apply, func(ctx context.Context, session *maintenance.Session) (maintenance.Summary, error) {
				return op(ctx, m, session)
			})
			return runErr
		})
	})
	return run, err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
