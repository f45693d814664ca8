package data

import (
	"context"
	"fmt"
	"time"
)

// Table names a remote table.
type Table string

const (
	TableOrganizations Table = "Organizations"
	TableModels        Table = "Models"
	TableTasks         Table = "Tasks"
	TableRuns          Table = "Benchmark Runs"
	TableScores        Table = "Scores"
)

// Tables lists every table in load order: referenced tables first.
var Tables = []Table{
	TableOrganizations,
	TableModels,
	TableTasks,
	TableRuns,
	TableScores,
}

// Entity is the set of record types a table can be decoded into.
type Entity interface {
	Organization | MLModel | Task | BenchmarkRun | Score
}

// Organization is a model developer.
type Organization struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// MLModel is one published model.
type MLModel struct {
	ID            string                `json:"id" yaml:"id"`
	Name          string                `json:"name" yaml:"name"`
	ReleaseDate   *time.Time            `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	HFDeveloper   string                `json:"hf_developer,omitempty" yaml:"hf_developer,omitempty"`
	Organizations RefList[Organization] `json:"organizations" yaml:"-"`
	BenchmarkRuns RefList[BenchmarkRun] `json:"benchmark_runs" yaml:"-"`
	Attributes    map[string]string     `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Task is a benchmark task identified by its hierarchical path.
type Task struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// DisplayName returns the task name, or the path when the name is empty.
func (t *Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Path
}

// BenchmarkRun pairs a model and a task at a point in time.
type BenchmarkRun struct {
	ID        string         `json:"id" yaml:"id"`
	Model     Ref[MLModel]   `json:"model" yaml:"-"`
	Task      Ref[Task]      `json:"task" yaml:"-"`
	Date      time.Time      `json:"date" yaml:"date"`
	Status    string         `json:"status,omitempty" yaml:"status,omitempty"`
	LogViewer string         `json:"log_viewer,omitempty" yaml:"log_viewer,omitempty"`
	Scores    RefList[Score] `json:"scores" yaml:"-"`
}

// Score is the value one scorer assigned to one run.
type Score struct {
	ID     string            `json:"id" yaml:"id"`
	Run    Ref[BenchmarkRun] `json:"benchmark_run" yaml:"-"`
	Scorer string            `json:"scorer" yaml:"scorer"`
	Mean   float64           `json:"mean" yaml:"mean"`
	StdErr *float64          `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// linker resolves the references a record holds.
type linker interface {
	link(ctx context.Context, l *Loader) error
}

func (o *Organization) link(_ context.Context, _ *Loader) error {
	return nil
}

func (m *MLModel) link(ctx context.Context, l *Loader) error {
	if _, err := m.Organizations.Resolve(ctx, l); err != nil {
		return fmt.Errorf("model %s organizations: %w", m.ID, err)
	}
	return nil
}

func (t *Task) link(_ context.Context, _ *Loader) error {
	return nil
}

func (r *BenchmarkRun) link(ctx context.Context, l *Loader) error {
	if r.Model.IsZero() {
		return missingLink(TableRuns, r.ID, "model")
	}
	if r.Task.IsZero() {
		return missingLink(TableRuns, r.ID, "task")
	}
	m, err := r.Model.Resolve(ctx, l)
	if err != nil {
		return fmt.Errorf("run %s model: %w", r.ID, err)
	}
	if err := m.link(ctx, l); err != nil {
		return err
	}
	if _, err := r.Task.Resolve(ctx, l); err != nil {
		return fmt.Errorf("run %s task: %w", r.ID, err)
	}
	return nil
}

func (s *Score) link(ctx context.Context, l *Loader) error {
	if s.Run.IsZero() {
		return missingLink(TableScores, s.ID, "benchmark_run")
	}
	run, err := s.Run.Resolve(ctx, l)
	if err != nil {
		return fmt.Errorf("score %s run: %w", s.ID, err)
	}
	return run.link(ctx, l)
}

func missingLink(table Table, id, field string) error {
	return &SchemaError{Table: table, RecordID: id, Field: field, Reason: "required link is empty"}
}

func tableOf[T any]() Table {
	switch any((*T)(nil)).(type) {
	case *Organization:
		return TableOrganizations
	case *MLModel:
		return TableModels
	case *Task:
		return TableTasks
	case *BenchmarkRun:
		return TableRuns
	case *Score:
		return TableScores
	}
	return ""
}
