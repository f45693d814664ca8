package snapshot

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/mchmarny/benchbase/pkg/airtable"
	"github.com/mchmarny/benchbase/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	tables map[string][]*airtable.Record
	fail   string
}

func (m *mapSource) Records(_ context.Context, table string) iter.Seq2[*airtable.Record, error] {
	return func(yield func(*airtable.Record, error) bool) {
		if table == m.fail {
			yield(nil, &airtable.TransportError{Table: table, StatusCode: 500})
			return
		}
		for _, r := range m.tables[table] {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func rec(id string, fields map[string]any) *airtable.Record {
	return &airtable.Record{ID: id, CreatedTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Fields: fields}
}

func linkedSource() *mapSource {
	return &mapSource{tables: map[string][]*airtable.Record{
		"Organizations": {rec("o1", map[string]any{"name": "Org"})},
		"Models":        {rec("m1", map[string]any{"id": "model-a", "organizations": []any{"o1"}})},
		"Tasks":         {rec("t1", map[string]any{"path": "bench.task.x"})},
		"Benchmark Runs": {
			rec("r1", map[string]any{"model": []any{"m1"}, "task": []any{"t1"}, "started_at": "2024-01-01", "status": "Success"}),
		},
		"Scores": {rec("s1", map[string]any{"benchmark_run": []any{"r1"}, "scorer": "acc", "mean": 0.5})},
	}}
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	counts, err := Copy(ctx, linkedSource(), s)
	require.NoError(t, err)
	assert.Len(t, counts, len(data.Tables))
	assert.Equal(t, 1, counts[data.TableScores])

	scores, err := data.LoadLinked[data.Score](ctx, data.NewLoader(s, nil), true)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	run, ok := scores[0].Run.Get()
	require.True(t, ok)
	m, ok := run.Model.Get()
	require.True(t, ok)
	assert.Equal(t, "model-a", m.Name)
}

func TestCopy_Subset(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	counts, err := Copy(ctx, linkedSource(), s, data.TableTasks)
	require.NoError(t, err)
	assert.Equal(t, map[data.Table]int{data.TableTasks: 1}, counts)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
}

func TestCopy_ReadErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	src := linkedSource()
	src.fail = "Scores"

	_, err := Copy(ctx, src, s)
	var te *airtable.TransportError
	require.True(t, errors.As(err, &te))

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestCopy_SaveErrorKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := Copy(ctx, linkedSource(), s)
	require.NoError(t, err)

	src := linkedSource()
	src.tables["Organizations"] = []*airtable.Record{rec("o2", map[string]any{"name": "Other"})}
	// duplicate IDs break the Models insert after Organizations was written
	src.tables["Models"] = []*airtable.Record{
		rec("m1", map[string]any{"id": "model-a"}),
		rec("m1", map[string]any{"id": "model-a"}),
	}

	_, err = Copy(ctx, src, s)
	require.Error(t, err)

	orgs, err := collect(t, s.Records(ctx, "Organizations"))
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "o1", orgs[0].ID)

	models, err := collect(t, s.Records(ctx, "Models"))
	require.NoError(t, err)
	assert.Len(t, models, 1)
}
