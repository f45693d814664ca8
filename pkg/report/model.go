package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mchmarny/benchbase/pkg/data"
)

// ModelSummary describes one model and every score recorded for it.
type ModelSummary struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Organizations []string          `json:"organizations" yaml:"organizations"`
	ReleaseDate   *time.Time        `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	HFDeveloper   string            `json:"hf_developer,omitempty" yaml:"hf_developer,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Runs          []*RunSummary     `json:"runs" yaml:"runs"`
}

// RunSummary is one benchmark run of a model with its scores.
type RunSummary struct {
	ID        string       `json:"id" yaml:"id"`
	Task      string       `json:"task" yaml:"task"`
	TaskName  string       `json:"task_name,omitempty" yaml:"task_name,omitempty"`
	Date      time.Time    `json:"date" yaml:"date"`
	Status    string       `json:"status,omitempty" yaml:"status,omitempty"`
	LogViewer string       `json:"log_viewer,omitempty" yaml:"log_viewer,omitempty"`
	Scores    []ScoreValue `json:"scores" yaml:"scores"`
}

// ScoreValue is a single scorer result.
type ScoreValue struct {
	Scorer string   `json:"scorer" yaml:"scorer"`
	Mean   float64  `json:"mean" yaml:"mean"`
	StdErr *float64 `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// FindModel returns the model whose record ID or name equals key.
func FindModel(models []*data.MLModel, key string) (*data.MLModel, error) {
	key = strings.TrimSpace(key)
	if key != "" {
		for _, m := range models {
			if m != nil && (m.ID == key || m.Name == key) {
				return m, nil
			}
		}
	}
	return nil, &data.NotFoundError{Table: data.TableModels, Key: key}
}

// ModelInfo summarizes the model matching key (record ID or name) along with
// the scores whose run references it. When the model's benchmark runs are
// resolved, runs without scores are listed too. Runs are ordered by date.
func ModelInfo(models []*data.MLModel, scores []*data.Score, key string) (*ModelSummary, error) {
	m, err := FindModel(models, key)
	if err != nil {
		return nil, err
	}

	orgs, ok := m.Organizations.Get()
	if !ok {
		return nil, fmt.Errorf("model %s organizations: %w", m.ID, data.ErrUnresolved)
	}

	sum := &ModelSummary{
		ID:            m.ID,
		Name:          m.Name,
		Organizations: make([]string, 0, len(orgs)),
		ReleaseDate:   m.ReleaseDate,
		HFDeveloper:   m.HFDeveloper,
		Attributes:    m.Attributes,
		Runs:          make([]*RunSummary, 0),
	}
	for _, o := range orgs {
		sum.Organizations = append(sum.Organizations, o.Name)
	}

	runs := make(map[string]*RunSummary)
	add := func(r *data.BenchmarkRun, t *data.Task) *RunSummary {
		rs, ok := runs[r.ID]
		if !ok {
			rs = &RunSummary{
				ID:        r.ID,
				Task:      t.Path,
				TaskName:  t.Name,
				Date:      r.Date,
				Status:    r.Status,
				LogViewer: r.LogViewer,
				Scores:    make([]ScoreValue, 0),
			}
			runs[r.ID] = rs
			sum.Runs = append(sum.Runs, rs)
		}
		return rs
	}

	if own, ok := m.BenchmarkRuns.Get(); ok {
		for _, r := range own {
			if r == nil {
				continue
			}
			t, ok := r.Task.Get()
			if !ok {
				return nil, fmt.Errorf("run %s task: %w", r.ID, data.ErrUnresolved)
			}
			add(r, t)
		}
	}

	for _, s := range scores {
		e, err := expand(s)
		if err != nil {
			return nil, err
		}
		if e.model.ID != m.ID {
			continue
		}
		rs := add(e.run, e.task)
		rs.Scores = append(rs.Scores, ScoreValue{
			Scorer: e.score.Scorer,
			Mean:   e.score.Mean,
			StdErr: e.score.StdErr,
		})
	}

	slices.SortStableFunc(sum.Runs, func(a, b *RunSummary) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Task, b.Task)
	})
	for _, rs := range sum.Runs {
		slices.SortStableFunc(rs.Scores, func(a, b ScoreValue) int {
			return cmp.Compare(a.Scorer, b.Scorer)
		})
	}

	return sum, nil
}

// ModelFilter selects models by name.
type ModelFilter struct {
	// Prefixes keeps models whose name starts with any of these.
	Prefixes []string
	// Names keeps models whose name is one of these.
	Names []string
	// Exclude drops models whose name contains any of these.
	Exclude []string
}

func (f ModelFilter) keep(name string) bool {
	for _, x := range f.Exclude {
		if x != "" && strings.Contains(name, x) {
			return false
		}
	}
	if len(f.Prefixes) == 0 && len(f.Names) == 0 {
		return true
	}
	for _, p := range f.Prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return slices.Contains(f.Names, name)
}

// SelectModels returns the models accepted by f ordered by release date.
// Models without a release date come first.
func SelectModels(models []*data.MLModel, f ModelFilter) []*data.MLModel {
	list := make([]*data.MLModel, 0)
	for _, m := range models {
		if m != nil && f.keep(m.Name) {
			list = append(list, m)
		}
	}

	slices.SortStableFunc(list, func(a, b *data.MLModel) int {
		switch {
		case a.ReleaseDate == nil && b.ReleaseDate == nil:
			return 0
		case a.ReleaseDate == nil:
			return -1
		case b.ReleaseDate == nil:
			return 1
		}
		return a.ReleaseDate.Compare(*b.ReleaseDate)
	})
	return list
}

// Column is one task column of a comparison.
type Column struct {
	Task   string `json:"task" yaml:"task"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Scorer string `json:"scorer" yaml:"scorer"`
}

// Header is the column label: the task name or path and its scorer.
func (c Column) Header() string {
	n := c.Name
	if n == "" {
		n = c.Task
	}
	return fmt.Sprintf("%s (%s)", n, c.Scorer)
}

// ComparisonRow holds one model's cells, keyed by task path.
type ComparisonRow struct {
	Model       string                 `json:"model" yaml:"model"`
	ReleaseDate *time.Time             `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	Cells       map[string]*ScoreValue `json:"cells" yaml:"cells"`
}

// Comparison is a model by task score matrix.
type Comparison struct {
	Columns []Column         `json:"columns" yaml:"columns"`
	Rows    []*ComparisonRow `json:"rows" yaml:"rows"`
}

// CompareModels builds a matrix of the given models against the tasks named
// in taskScorers (task path to scorer). Only tasks present in tasks become
// columns. Models without any matching score are left out. When a model has
// several runs of a task, the latest run wins.
func CompareModels(models []*data.MLModel, scores []*data.Score, tasks []*data.Task, taskScorers map[string]string) (*Comparison, error) {
	c := &Comparison{
		Columns: make([]Column, 0),
		Rows:    make([]*ComparisonRow, 0),
	}

	for _, t := range tasks {
		if s, ok := taskScorers[t.Path]; ok {
			c.Columns = append(c.Columns, Column{Task: t.Path, Name: t.Name, Scorer: s})
		}
	}
	slices.SortStableFunc(c.Columns, func(a, b Column) int {
		return cmp.Compare(a.Task, b.Task)
	})

	wanted := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		wanted[col.Task] = true
	}

	type cell struct {
		value *ScoreValue
		date  time.Time
	}
	byModel := make(map[string]map[string]*cell)

	for _, s := range scores {
		e, err := expand(s)
		if err != nil {
			return nil, err
		}
		if !wanted[e.task.Path] || taskScorers[e.task.Path] != e.score.Scorer {
			continue
		}
		cells, ok := byModel[e.model.ID]
		if !ok {
			cells = make(map[string]*cell)
			byModel[e.model.ID] = cells
		}
		if prev, ok := cells[e.task.Path]; ok && prev.date.After(e.run.Date) {
			continue
		}
		cells[e.task.Path] = &cell{
			value: &ScoreValue{Scorer: e.score.Scorer, Mean: e.score.Mean, StdErr: e.score.StdErr},
			date:  e.run.Date,
		}
	}

	for _, m := range models {
		cells, ok := byModel[m.ID]
		if !ok {
			continue
		}
		row := &ComparisonRow{
			Model:       m.Name,
			ReleaseDate: m.ReleaseDate,
			Cells:       make(map[string]*ScoreValue, len(cells)),
		}
		for path, v := range cells {
			row.Cells[path] = v.value
		}
		c.Rows = append(c.Rows, row)
	}

	return c, nil
}
