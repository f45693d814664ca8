package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mchmarny/benchbase/pkg/data"
)

const (
	// GroupByModel groups missing pairs under each model.
	GroupByModel = "model"
	// GroupByTask groups missing pairs under each task.
	GroupByTask = "task"

	// DefaultSuccessStatus is the run status that counts as coverage.
	DefaultSuccessStatus = "Success"
	// DefaultSummaryTop is the number of models and tasks listed in a summary.
	DefaultSummaryTop = 5
)

// Pair is a model and task without a successful run.
type Pair struct {
	Model string `json:"model" yaml:"model"`
	Task  string `json:"task" yaml:"task"`
}

// MissingOptions narrows MissingCombinations.
type MissingOptions struct {
	// Status is the run status counted as coverage (DefaultSuccessStatus when empty).
	Status string
	// ModelFilter keeps pairs whose model contains it, ignoring case.
	ModelFilter string
	// TaskFilter keeps pairs whose task path contains it, ignoring case.
	TaskFilter string
}

// MissingCombinations returns every (model, task) pair with no successful
// run. Only models with at least one successful run are considered; they
// are crossed with every task. Pairs are sorted by model, then task.
func MissingCombinations(runs []*data.BenchmarkRun, tasks []*data.Task, opts MissingOptions) ([]Pair, error) {
	status := opts.Status
	if status == "" {
		status = DefaultSuccessStatus
	}

	covered := make(map[Pair]bool)
	active := make(map[string]bool)

	for _, r := range runs {
		if r == nil || r.Status != status {
			continue
		}
		m, ok := r.Model.Get()
		if !ok {
			return nil, fmt.Errorf("run %s model: %w", r.ID, data.ErrUnresolved)
		}
		t, ok := r.Task.Get()
		if !ok {
			return nil, fmt.Errorf("run %s task: %w", r.ID, data.ErrUnresolved)
		}
		covered[Pair{Model: m.Name, Task: t.Path}] = true
		active[m.Name] = true
	}

	seen := make(map[Pair]bool)
	pairs := make([]Pair, 0)
	for model := range active {
		if opts.ModelFilter != "" && !containsFold(model, opts.ModelFilter) {
			continue
		}
		for _, t := range tasks {
			if opts.TaskFilter != "" && !containsFold(t.Path, opts.TaskFilter) {
				continue
			}
			p := Pair{Model: model, Task: t.Path}
			if !covered[p] && !seen[p] {
				seen[p] = true
				pairs = append(pairs, p)
			}
		}
	}

	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.Model, b.Model); c != 0 {
			return c
		}
		return cmp.Compare(a.Task, b.Task)
	})
	return pairs, nil
}

// Group lists the members missing for one key.
type Group struct {
	Key     string   `json:"key" yaml:"key"`
	Label   string   `json:"label,omitempty" yaml:"label,omitempty"`
	Members []string `json:"members" yaml:"members"`
}

// GroupMissing groups pairs by GroupByModel (members are tasks) or
// GroupByTask (members are models). Groups and members are sorted.
func GroupMissing(pairs []Pair, by string) ([]Group, error) {
	var key, member func(Pair) string
	switch by {
	case GroupByModel:
		key = func(p Pair) string { return p.Model }
		member = func(p Pair) string { return p.Task }
	case GroupByTask:
		key = func(p Pair) string { return p.Task }
		member = func(p Pair) string { return p.Model }
	default:
		return nil, fmt.Errorf("invalid group by %q, expected %s or %s", by, GroupByModel, GroupByTask)
	}

	idx := make(map[string]int)
	groups := make([]Group, 0)
	for _, p := range pairs {
		k := key(p)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Members = append(groups[i].Members, member(p))
	}

	slices.SortFunc(groups, func(a, b Group) int {
		return cmp.Compare(a.Key, b.Key)
	})
	for i := range groups {
		slices.Sort(groups[i].Members)
	}
	return groups, nil
}

// GapCount is how many pairs one model or task is missing.
type GapCount struct {
	Name       string  `json:"name" yaml:"name"`
	Label      string  `json:"label,omitempty" yaml:"label,omitempty"`
	Missing    int     `json:"missing" yaml:"missing"`
	Of         int     `json:"of" yaml:"of"`
	Completion float64 `json:"completion" yaml:"completion"`
}

// Summary describes benchmark coverage.
type Summary struct {
	Models     int        `json:"models" yaml:"models"`
	Tasks      int        `json:"tasks" yaml:"tasks"`
	Possible   int        `json:"possible" yaml:"possible"`
	Missing    int        `json:"missing" yaml:"missing"`
	Completion float64    `json:"completion" yaml:"completion"`
	TopModels  []GapCount `json:"top_models" yaml:"top_models"`
	TopTasks   []GapCount `json:"top_tasks" yaml:"top_tasks"`
}

// SummarizeMissing computes completion over modelCount x taskCount possible
// pairs and lists the top models and tasks with the most gaps (count
// descending, then name). A top of zero or less means DefaultSummaryTop.
func SummarizeMissing(pairs []Pair, modelCount, taskCount, top int) *Summary {
	if top <= 0 {
		top = DefaultSummaryTop
	}

	s := &Summary{
		Models:   modelCount,
		Tasks:    taskCount,
		Possible: modelCount * taskCount,
		Missing:  len(pairs),
	}
	s.Completion = percent(s.Possible-s.Missing, s.Possible)

	byModel := make(map[string]int)
	byTask := make(map[string]int)
	for _, p := range pairs {
		byModel[p.Model]++
		byTask[p.Task]++
	}

	s.TopModels = topGaps(byModel, taskCount, top)
	s.TopTasks = topGaps(byTask, modelCount, top)
	return s
}

func topGaps(counts map[string]int, of, top int) []GapCount {
	list := make([]GapCount, 0, len(counts))
	for name, n := range counts {
		list = append(list, GapCount{
			Name:       name,
			Missing:    n,
			Of:         of,
			Completion: percent(of-n, of),
		})
	}
	slices.SortFunc(list, func(a, b GapCount) int {
		if c := cmp.Compare(b.Missing, a.Missing); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(list) > top {
		list = list[:top]
	}
	return list
}

func percent(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

// LabelGroups fills in each group's Label: the organization names of the
// model for GroupByModel, the task display name for GroupByTask. Models
// must have their organizations linked.
func LabelGroups(groups []Group, by string, models []*data.MLModel, tasks []*data.Task) error {
	var label func(string) (string, error)
	switch by {
	case GroupByModel:
		label = modelLabels(models)
	case GroupByTask:
		label = taskLabels(tasks)
	default:
		return fmt.Errorf("invalid group by %q, expected %s or %s", by, GroupByModel, GroupByTask)
	}

	for i := range groups {
		l, err := label(groups[i].Key)
		if err != nil {
			return err
		}
		groups[i].Label = l
	}
	return nil
}

// LabelSummary sets the display name of every task in s.TopTasks.
func LabelSummary(s *Summary, tasks []*data.Task) {
	if s == nil {
		return
	}
	label := taskLabels(tasks)
	for i := range s.TopTasks {
		s.TopTasks[i].Label, _ = label(s.TopTasks[i].Name)
	}
}

func modelLabels(models []*data.MLModel) func(string) (string, error) {
	byName := make(map[string]*data.MLModel, len(models))
	for _, m := range models {
		if m != nil {
			byName[m.Name] = m
		}
	}
	return func(name string) (string, error) {
		m, ok := byName[name]
		if !ok {
			return "", nil
		}
		orgs, ok := m.Organizations.Get()
		if !ok {
			return "", fmt.Errorf("model %s organizations: %w", m.ID, data.ErrUnresolved)
		}
		names := make([]string, 0, len(orgs))
		for _, o := range orgs {
			if o != nil {
				names = append(names, o.Name)
			}
		}
		return strings.Join(names, ", "), nil
	}
}

func taskLabels(tasks []*data.Task) func(string) (string, error) {
	byPath := make(map[string]*data.Task, len(tasks))
	for _, t := range tasks {
		if t != nil {
			byPath[t.Path] = t
		}
	}
	return func(path string) (string, error) {
		if t, ok := byPath[path]; ok {
			return t.DisplayName(), nil
		}
		return path, nil
	}
}
