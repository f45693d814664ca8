package data

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/mchmarny/benchbase/pkg/airtable"
)

type fakeSource struct {
	mu     sync.Mutex
	tables map[string][]*airtable.Record
	calls  map[string]int
	err    error
}

func newFakeSource(tables map[Table][]*airtable.Record) *fakeSource {
	f := &fakeSource{
		tables: make(map[string][]*airtable.Record),
		calls:  make(map[string]int),
	}
	for t, rows := range tables {
		f.tables[string(t)] = rows
	}
	return f
}

func (f *fakeSource) Records(_ context.Context, table string) iter.Seq2[*airtable.Record, error] {
	return func(yield func(*airtable.Record, error) bool) {
		f.mu.Lock()
		f.calls[table]++
		rows := f.tables[table]
		err := f.err
		f.mu.Unlock()

		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range rows {
			// hand out copies so every fetch decodes fresh rows
			c := *r
			if !yield(&c, nil) {
				return
			}
		}
	}
}

func (f *fakeSource) callCount(t Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[string(t)]
}

func row(id string, fields map[string]any) *airtable.Record {
	return &airtable.Record{
		ID:          id,
		CreatedTime: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		Fields:      fields,
	}
}

func links(ids ...string) []any {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return list
}

// testTables returns a small consistent base: three models scored on one
// task with the "acc" scorer, plus a second scorer on model A.
func testTables() map[Table][]*airtable.Record {
	return map[Table][]*airtable.Record{
		TableOrganizations: {
			row("orgX", map[string]any{"name": "Org X"}),
			row("orgY", map[string]any{"name": "Org Y"}),
		},
		TableModels: {
			row("mA", map[string]any{"id": "model-a", "release_date": "2023-06-01", "organizations": links("orgX"), "notes": "first"}),
			row("mB", map[string]any{"id": "model-b", "release_date": "2024-02-01", "organizations": links("orgY", "orgX")}),
			row("mC", map[string]any{"id": "model-c"}),
		},
		TableTasks: {
			row("tX", map[string]any{"path": "bench.task.x", "name": "Task X"}),
			row("tY", map[string]any{"path": "bench.task.y"}),
		},
		TableRuns: {
			row("rA", map[string]any{"model": links("mA"), "task": links("tX"), "started_at": "2024-01-01", "status": "Success"}),
			row("rB", map[string]any{"model": links("mB"), "task": links("tX"), "started_at": "2024-03-01", "status": "Success"}),
			row("rC", map[string]any{"model": links("mC"), "task": links("tX"), "started_at": "2024-02-01", "status": "Success"}),
		},
		TableScores: {
			row("sA", map[string]any{"benchmark_run": links("rA"), "scorer": "acc", "mean": 0.50, "stderr": 0.01}),
			row("sB", map[string]any{"benchmark_run": links("rB"), "scorer": "acc", "mean": 0.75}),
			row("sC", map[string]any{"benchmark_run": links("rC"), "scorer": "acc", "mean": 0.60}),
			row("sA2", map[string]any{"benchmark_run": links("rA"), "scorer": "f1", "mean": 0.40}),
		},
	}
}
