package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mchmarny/benchbase/pkg/airtable"
	"github.com/mchmarny/benchbase/pkg/data"
	"golang.org/x/sync/errgroup"
)

// Copy reads every listed table from src concurrently and saves them into
// dst in a single transaction. Nothing is written unless all reads and all
// saves succeed. It returns the number of rows saved per table.
func Copy(ctx context.Context, src data.Source, dst *Store, tables ...data.Table) (map[data.Table]int, error) {
	if len(tables) == 0 {
		tables = data.Tables
	}

	var mu sync.Mutex
	fetched := make(map[data.Table][]*airtable.Record, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tables {
		g.Go(func() error {
			list := make([]*airtable.Record, 0)
			for r, err := range src.Records(gctx, string(t)) {
				if err != nil {
					return fmt.Errorf("reading %s: %w", t, err)
				}
				list = append(list, r)
			}
			mu.Lock()
			fetched[t] = list
			mu.Unlock()
			slog.Debug("table read", "table", t, "rows", len(list))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(tables))
	rows := make(map[string][]*airtable.Record, len(tables))
	for i, t := range tables {
		names[i] = string(t)
		rows[names[i]] = fetched[t]
	}
	saved, err := dst.saveAll(ctx, names, rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[data.Table]int, len(tables))
	for _, t := range tables {
		counts[t] = saved[string(t)]
	}
	return counts, nil
}
