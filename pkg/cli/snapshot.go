package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mchmarny/benchbase/pkg/snapshot"
	"github.com/urfave/cli/v3"
)

var (
	snapshotDBFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "Snapshot target, SQLite file path or postgres:// DSN (default: snapshot.db in the config dir)",
	}

	snapshotCmd = &cli.Command{
		Name:   "snapshot",
		Usage:  "Copy every remote table into a local snapshot",
		Flags:  []cli.Flag{snapshotDBFlag},
		Action: cmdSnapshot,
	}
)

func cmdSnapshot(ctx context.Context, cmd *cli.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Snapshot != "" {
		return errors.New("snapshot reads from the remote base, drop --snapshot")
	}

	dsn := cmd.String(snapshotDBFlag.Name)
	if dsn == "" {
		dsn = defaultSnapshotPath(cfg.Dir)
	}

	src, err := cfg.remote()
	if err != nil {
		return err
	}

	dst, err := snapshot.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer dst.Close()

	start := time.Now()
	counts, err := snapshot.Copy(ctx, src, dst)
	if err != nil {
		return fmt.Errorf("copying tables: %w", err)
	}
	slog.Debug("snapshot complete", "tables", len(counts), "duration", time.Since(start))

	tables, err := dst.Tables(ctx)
	if err != nil {
		return err
	}

	return encode(cmd, tables, func() []*table {
		t := &table{
			title:  "Snapshot: " + dsn,
			header: []string{"Table", "Rows", "Saved"},
		}
		for _, ti := range tables {
			t.rows = append(t.rows, []string{ti.Table, strconv.Itoa(ti.Rows), ti.SavedAt.Format(time.RFC3339)})
		}
		return []*table{t}
	})
}
