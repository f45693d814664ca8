package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mchmarny/benchbase/pkg/airtable"
	"github.com/mchmarny/benchbase/pkg/auth"
	"github.com/mchmarny/benchbase/pkg/data"
	"github.com/mchmarny/benchbase/pkg/report"
	"github.com/mchmarny/benchbase/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func rec(id string, fields map[string]any) *airtable.Record {
	return &airtable.Record{
		ID:          id,
		CreatedTime: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		Fields:      fields,
	}
}

// setupSnapshot seeds a SQLite snapshot with three models scored on one
// task and returns the config dir and snapshot path.
func setupSnapshot(t *testing.T) (dir, dsn string) {
	t.Helper()
	dir = t.TempDir()
	dsn = filepath.Join(dir, "test.db")

	s, err := snapshot.Open(t.Context(), dsn)
	require.NoError(t, err)
	defer s.Close()

	tables := map[data.Table][]*airtable.Record{
		data.TableOrganizations: {
			rec("orgX", map[string]any{"name": "Org X"}),
		},
		data.TableModels: {
			rec("mA", map[string]any{"id": "model-a", "release_date": "2023-06-01", "organizations": []any{"orgX"}, "benchmark_runs": []any{"rA", "rD"}}),
			rec("mB", map[string]any{"id": "model-b", "release_date": "2024-02-01"}),
			rec("mC", map[string]any{"id": "model-c"}),
		},
		data.TableTasks: {
			rec("tX", map[string]any{"path": "bench.task.x"}),
			rec("tY", map[string]any{"path": "bench.task.y"}),
		},
		data.TableRuns: {
			rec("rA", map[string]any{"model": []any{"mA"}, "task": []any{"tX"}, "started_at": "2024-01-01", "status": "Success"}),
			rec("rB", map[string]any{"model": []any{"mB"}, "task": []any{"tX"}, "started_at": "2024-03-01", "status": "Success"}),
			rec("rC", map[string]any{"model": []any{"mC"}, "task": []any{"tX"}, "started_at": "2024-02-01", "status": "Success"}),
			rec("rD", map[string]any{"model": []any{"mA"}, "task": []any{"tY"}, "started_at": "2024-04-01", "status": "Error", "log_viewer": "https://logs.example.com/rD"}),
		},
		data.TableScores: {
			rec("sA", map[string]any{"benchmark_run": []any{"rA"}, "scorer": "acc", "mean": 0.50, "stderr": 0.01}),
			rec("sB", map[string]any{"benchmark_run": []any{"rB"}, "scorer": "acc", "mean": 0.75}),
			rec("sC", map[string]any{"benchmark_run": []any{"rC"}, "scorer": "acc", "mean": 0.60}),
			rec("sA2", map[string]any{"benchmark_run": []any{"rA"}, "scorer": "f1", "mean": 0.40}),
		},
	}
	for tbl, rows := range tables {
		require.NoError(t, s.Save(t.Context(), string(tbl), rows))
	}
	return dir, dsn
}

// run executes the app against the seeded snapshot and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir, dsn := setupSnapshot(t)

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf

	full := append([]string{appName, "--config", dir, "--snapshot", dsn}, args...)
	err := app.Run(t.Context(), full)
	return buf.String(), err
}

func TestTopCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "top", "--task", "bench.task.x", "--scorer", "acc", "--limit", "10")
	require.NoError(t, err)

	var list []report.ScoreEntry
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "model-b", list[0].Model)
	assert.Equal(t, "model-c", list[1].Model)
	assert.Equal(t, "model-a", list[2].Model)
	require.NotNil(t, list[2].StdErr)
	assert.InDelta(t, 0.01, *list[2].StdErr, 1e-9)
}

func TestTopCommand_Table(t *testing.T) {
	out, err := run(t, "--format", "table", "top", "--task", "bench.task.x", "--scorer", "acc", "--limit", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Top 2 scores for bench.task.x (acc)", lines[0])
	assert.Contains(t, lines[3], "model-b")
	assert.Contains(t, lines[3], "0.750")
	assert.Contains(t, lines[3], "N/A")
	assert.Contains(t, lines[4], "2024-02-01")
}

func TestTopCommand_NoMatches(t *testing.T) {
	out, err := run(t, "--format", "json", "top", "--task", "bench.task.y", "--scorer", "acc", "--limit", "10")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestTopCommand_UnknownTask(t *testing.T) {
	_, err := run(t, "--format", "json", "top", "--task", "bench.task.nope", "--scorer", "acc", "--limit", "10")
	var nf *data.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, data.TableTasks, nf.Table)
	assert.Equal(t, "bench.task.nope", nf.Key)
}

func TestTimelineCommand_UnknownTask(t *testing.T) {
	_, err := run(t, "--format", "json", "timeline", "--task", "bench.task.nope", "--scorer", "acc")
	var nf *data.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestTimelineCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "timeline", "--task", "bench.task.x", "--scorer", "acc")
	require.NoError(t, err)

	var points []report.TimelinePoint
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 2)
	assert.Equal(t, "model-a", points[0].Model)
	assert.Equal(t, "2024-01-01", points[0].Date.Format(time.DateOnly))
	assert.Equal(t, "model-b", points[1].Model)
	assert.Equal(t, "2024-03-01", points[1].Date.Format(time.DateOnly))
}

func TestModelCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "model", "--name", "model-a")
	require.NoError(t, err)

	var sum report.ModelSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "mA", sum.ID)
	assert.Equal(t, []string{"Org X"}, sum.Organizations)
	require.Len(t, sum.Runs, 2)
	assert.Equal(t, "bench.task.x", sum.Runs[0].Task)
	require.Len(t, sum.Runs[0].Scores, 2)
	assert.Equal(t, "acc", sum.Runs[0].Scores[0].Scorer)
	assert.Equal(t, "f1", sum.Runs[0].Scores[1].Scorer)

	// a run without scores is still listed
	assert.Equal(t, "rD", sum.Runs[1].ID)
	assert.Equal(t, "bench.task.y", sum.Runs[1].Task)
	assert.Equal(t, "https://logs.example.com/rD", sum.Runs[1].LogViewer)
	assert.Empty(t, sum.Runs[1].Scores)
}

func TestModelCommand_YAML(t *testing.T) {
	out, err := run(t, "--format", "yaml", "model", "--name", "mB")
	require.NoError(t, err)
	assert.Contains(t, out, "name: model-b")
}

func TestModelCommand_Unknown(t *testing.T) {
	_, err := run(t, "--format", "json", "model", "--name", "model-z")
	require.Error(t, err)

	var nf *data.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCompareCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "compare", "--task", "bench.task.x=acc")
	require.NoError(t, err)

	var c report.Comparison
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	require.Len(t, c.Columns, 1)
	assert.Equal(t, "acc", c.Columns[0].Scorer)
	require.Len(t, c.Rows, 3)
	assert.Equal(t, "model-c", c.Rows[0].Model)
	assert.Equal(t, "model-a", c.Rows[1].Model)
	assert.Equal(t, "model-b", c.Rows[2].Model)
	assert.InDelta(t, 0.75, c.Rows[2].Cells["bench.task.x"].Mean, 1e-9)
}

func TestCompareCommand_InvalidTask(t *testing.T) {
	_, err := run(t, "--format", "json", "compare", "--task", "bench.task.x")
	assert.Error(t, err)
}

func TestMissingCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "missing", "--group-by", "task", "--summary")
	require.NoError(t, err)

	var res missingResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "bench.task.y", res.Groups[0].Key)
	assert.Equal(t, []string{"model-a", "model-b", "model-c"}, res.Groups[0].Members)

	require.NotNil(t, res.Summary)
	assert.Equal(t, 6, res.Summary.Possible)
	assert.Equal(t, 3, res.Summary.Missing)
	assert.InDelta(t, 50.0, res.Summary.Completion, 1e-9)
}

func TestMissingCommand_ModelFilter(t *testing.T) {
	out, err := run(t, "--format", "json", "missing", "--group-by", "model", "--model-filter", "MODEL-B")
	require.NoError(t, err)

	var res missingResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "model-b", res.Groups[0].Key)
	assert.Equal(t, []string{"bench.task.y"}, res.Groups[0].Members)
}

func TestMissingCommand_OrganizationLabel(t *testing.T) {
	out, err := run(t, "--format", "json", "missing", "--group-by", "model", "--model-filter", "model-a")
	require.NoError(t, err)

	var res missingResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Org X", res.Groups[0].Label)
}

func TestMissingCommand_InvalidGroup(t *testing.T) {
	_, err := run(t, "--format", "json", "missing", "--group-by", "org")
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "top", "--task", "bench.task.x", "--scorer", "acc")
	assert.ErrorContains(t, err, "invalid format")
}

func TestAuthCommand(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.Reader = strings.NewReader("pat.test\n")
	require.NoError(t, app.Run(t.Context(), []string{appName, "--config", dir, "auth"}))
	assert.Contains(t, buf.String(), "API key saved")

	key, err := auth.NewTokenStore(dir).Get()
	require.NoError(t, err)
	assert.Equal(t, "pat.test", key)
}
