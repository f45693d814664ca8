package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/benchbase/pkg/airtable"
	"github.com/mchmarny/benchbase/pkg/auth"
	"github.com/mchmarny/benchbase/pkg/config"
	"github.com/mchmarny/benchbase/pkg/data"
	"github.com/mchmarny/benchbase/pkg/logging"
	"github.com/mchmarny/benchbase/pkg/snapshot"
	"github.com/urfave/cli/v3"
)

const (
	appName      = "benchbase"
	appConfigKey = "app-config"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: fmt.Sprintf("Output format [%s]", strings.Join(formats, ", ")),
	}

	snapshotFlag = &cli.StringFlag{
		Name:    "snapshot",
		Usage:   "Read from a local snapshot (SQLite file path or postgres:// DSN) instead of the remote base",
		Sources: cli.EnvVars("BENCHBASE_SNAPSHOT"),
	}

	configDirFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Directory holding settings and the local snapshot (default: ~/.benchbase)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// appConfig is the per-invocation state shared by all commands.
type appConfig struct {
	Dir      string
	Settings *config.Settings
	Format   string
	Snapshot string

	store  *snapshot.Store
	loader *data.Loader
}

func getConfig(cmd *cli.Command) (*appConfig, error) {
	cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig)
	if !ok {
		return nil, errors.New("application not initialized")
	}
	return cfg, nil
}

// source opens the record source: the snapshot when one was named,
// otherwise the remote base.
func (c *appConfig) source(ctx context.Context) (data.Source, error) {
	if c.Snapshot != "" {
		if c.store == nil {
			s, err := snapshot.Open(ctx, c.Snapshot)
			if err != nil {
				return nil, fmt.Errorf("opening snapshot: %w", err)
			}
			c.store = s
		}
		slog.Debug("reading from snapshot", "dsn", c.Snapshot)
		return c.store, nil
	}
	return c.remote()
}

func (c *appConfig) remote() (*airtable.Client, error) {
	rc, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rc.APIKey == "" {
		key, err := auth.NewTokenStore(c.Dir).Get()
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			return nil, fmt.Errorf("reading stored API key: %w", err)
		}
		rc.APIKey = key
	}
	return airtable.NewClient(rc), nil
}

// getLoader returns the session loader, creating it on first use.
func (c *appConfig) getLoader(ctx context.Context) (*data.Loader, error) {
	if c.loader != nil {
		return c.loader, nil
	}
	src, err := c.source(ctx)
	if err != nil {
		return nil, err
	}
	c.loader = data.NewLoader(src, data.NewCache())
	return c.loader, nil
}

func (c *appConfig) close() {
	if c.loader != nil {
		c.loader.Cache().Reset()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			slog.Debug("closing snapshot", "error", err)
		}
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Query ML models, benchmark runs and scores",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			debugFlag,
			formatFlag,
			snapshotFlag,
			configDirFlag,
		},
		Commands: []*cli.Command{
			modelCmd,
			topCmd,
			timelineCmd,
			compareCmd,
			missingCmd,
			snapshotCmd,
			authCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(debugFlag.Name) {
				logging.SetDefaultCLILogger("debug")
			}

			dir := cmd.String(configDirFlag.Name)
			if dir == "" {
				d, _, err := config.GetOrCreateHomeDir(appName)
				if err != nil {
					return ctx, fmt.Errorf("getting config dir: %w", err)
				}
				dir = d
			}

			settings, err := config.ReadOrCreate(dir)
			if err != nil {
				return ctx, fmt.Errorf("reading settings: %w", err)
			}

			f := settings.Format
			if cmd.IsSet(formatFlag.Name) {
				f = cmd.String(formatFlag.Name)
			}
			f, err = parseFormat(f)
			if err != nil {
				return ctx, err
			}

			cmd.Metadata[appConfigKey] = &appConfig{
				Dir:      dir,
				Settings: settings,
				Format:   f,
				Snapshot: cmd.String(snapshotFlag.Name),
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok {
				cfg.close()
			}
			return nil
		},
	}
}

// defaultSnapshotPath is the snapshot file inside the config dir.
func defaultSnapshotPath(dir string) string {
	return filepath.Join(dir, snapshot.FileName)
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
