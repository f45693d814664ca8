package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mchmarny/benchbase/pkg/data"
	"github.com/mchmarny/benchbase/pkg/report"
	"github.com/urfave/cli/v3"
)

var (
	modelNameFlag = &cli.StringFlag{
		Name:     "name",
		Usage:    "Model name or record ID",
		Required: true,
	}

	taskPathFlag = &cli.StringFlag{
		Name:     "task",
		Usage:    "Task path (e.g. bench.task.gpqa.gpqa_diamond)",
		Required: true,
	}

	scorerFlag = &cli.StringFlag{
		Name:     "scorer",
		Usage:    "Scorer name (e.g. choice)",
		Required: true,
	}

	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Number of scores to list (default from settings)",
	}

	compareTaskFlag = &cli.StringSliceFlag{
		Name:  "task",
		Usage: "Task column as path=scorer, repeatable (default from settings)",
	}

	prefixFlag = &cli.StringSliceFlag{
		Name:  "prefix",
		Usage: "Keep models whose name starts with prefix, repeatable",
	}

	nameFlag = &cli.StringSliceFlag{
		Name:  "name",
		Usage: "Keep the model with this exact name, repeatable",
	}

	excludeFlag = &cli.StringSliceFlag{
		Name:  "exclude",
		Usage: "Drop models whose name contains this text, repeatable",
	}

	groupByFlag = &cli.StringFlag{
		Name:  "group-by",
		Usage: fmt.Sprintf("Group results by %s or %s", report.GroupByModel, report.GroupByTask),
		Value: report.GroupByTask,
	}

	modelFilterFlag = &cli.StringFlag{
		Name:  "model-filter",
		Usage: "Filter by model name (case-insensitive substring match)",
	}

	taskFilterFlag = &cli.StringFlag{
		Name:  "task-filter",
		Usage: "Filter by task path (case-insensitive substring match)",
	}

	statusFlag = &cli.StringFlag{
		Name:  "status",
		Usage: "Run status counted as coverage (default from settings)",
	}

	summaryFlag = &cli.BoolFlag{
		Name:  "summary",
		Usage: "Include summary statistics",
	}

	modelCmd = &cli.Command{
		Name:   "model",
		Usage:  "Print model info with its benchmark runs and scores",
		Flags:  []cli.Flag{modelNameFlag},
		Action: cmdModelInfo,
	}

	topCmd = &cli.Command{
		Name:   "top",
		Usage:  "List the high scores for a task and scorer",
		Flags:  []cli.Flag{taskPathFlag, scorerFlag, limitFlag},
		Action: cmdHighScores,
	}

	timelineCmd = &cli.Command{
		Name:   "timeline",
		Usage:  "List the dates on which the best score for a task and scorer improved",
		Flags:  []cli.Flag{taskPathFlag, scorerFlag},
		Action: cmdTimeline,
	}

	compareCmd = &cli.Command{
		Name:   "compare",
		Usage:  "Compare selected models across tasks",
		Flags:  []cli.Flag{compareTaskFlag, prefixFlag, nameFlag, excludeFlag},
		Action: cmdCompare,
	}

	missingCmd = &cli.Command{
		Name:   "missing",
		Usage:  "Find model and task combinations without a successful run",
		Flags:  []cli.Flag{groupByFlag, modelFilterFlag, taskFilterFlag, statusFlag, summaryFlag},
		Action: cmdMissing,
	}
)

// taskScores checks that the --task path exists and loads every linked score.
func taskScores(ctx context.Context, cmd *cli.Command) ([]*data.Score, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	l, err := cfg.getLoader(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := data.LoadAll[data.Task](ctx, l, true)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	if _, err := report.FindTask(tasks, cmd.String(taskPathFlag.Name)); err != nil {
		return nil, err
	}
	return linkedScores(ctx, cmd)
}

// linkedScores loads every score with its run, model and task attached.
func linkedScores(ctx context.Context, cmd *cli.Command) ([]*data.Score, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	l, err := cfg.getLoader(ctx)
	if err != nil {
		return nil, err
	}
	scores, err := data.LoadLinked[data.Score](ctx, l, true)
	if err != nil {
		return nil, fmt.Errorf("loading scores: %w", err)
	}
	return scores, nil
}

func cmdModelInfo(ctx context.Context, cmd *cli.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	l, err := cfg.getLoader(ctx)
	if err != nil {
		return err
	}

	models, err := data.LoadLinked[data.MLModel](ctx, l, true)
	if err != nil {
		return fmt.Errorf("loading models: %w", err)
	}
	key := cmd.String(modelNameFlag.Name)
	m, err := report.FindModel(models, key)
	if err != nil {
		return err
	}
	runs, err := m.BenchmarkRuns.Resolve(ctx, l)
	if err != nil {
		return fmt.Errorf("loading runs of %s: %w", m.Name, err)
	}
	if err := data.Link(ctx, l, runs); err != nil {
		return err
	}

	scores, err := linkedScores(ctx, cmd)
	if err != nil {
		return err
	}

	sum, err := report.ModelInfo(models, scores, key)
	if err != nil {
		return err
	}

	return encode(cmd, sum, func() []*table {
		list := []*table{{
			title:  "Model: " + sum.Name,
			header: []string{"Organizations", "Released", "HF Developer"},
			rows: [][]string{{
				strings.Join(sum.Organizations, ", "),
				formatDate(sum.ReleaseDate),
				sum.HFDeveloper,
			}},
		}}
		for _, r := range sum.Runs {
			t := &table{
				title:  fmt.Sprintf("Task: %s (%s) %s", r.Task, formatDate(&r.Date), r.LogViewer),
				header: []string{"Scorer", "Score", "Std Error"},
			}
			for _, s := range r.Scores {
				t.rows = append(t.rows, []string{s.Scorer, formatScore(s.Mean), formatStdErr(s.StdErr)})
			}
			list = append(list, t)
		}
		return list
	})
}

func cmdHighScores(ctx context.Context, cmd *cli.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	limit := cmd.Int(limitFlag.Name)
	if limit <= 0 {
		limit = cfg.Settings.HighScoreLimit
	}

	scores, err := taskScores(ctx, cmd)
	if err != nil {
		return err
	}

	task, scorer := cmd.String(taskPathFlag.Name), cmd.String(scorerFlag.Name)
	list, err := report.HighScores(scores, task, scorer, limit)
	if err != nil {
		return err
	}

	return encode(cmd, list, func() []*table {
		t := &table{
			title:  fmt.Sprintf("Top %d scores for %s (%s)", limit, task, scorer),
			header: []string{"#", "Model", "Score", "Std Error", "Date"},
		}
		for i, e := range list {
			t.rows = append(t.rows, []string{
				strconv.Itoa(i + 1), e.Model, formatScore(e.Value), formatStdErr(e.StdErr), formatDate(&e.Date),
			})
		}
		return []*table{t}
	})
}

func cmdTimeline(ctx context.Context, cmd *cli.Command) error {
	scores, err := taskScores(ctx, cmd)
	if err != nil {
		return err
	}

	task, scorer := cmd.String(taskPathFlag.Name), cmd.String(scorerFlag.Name)
	points, err := report.PerformanceTimeline(scores, task, scorer)
	if err != nil {
		return err
	}

	return encode(cmd, points, func() []*table {
		t := &table{
			title:  fmt.Sprintf("Best score over time for %s (%s)", task, scorer),
			header: []string{"Date", "Model", "Score"},
		}
		for _, p := range points {
			t.rows = append(t.rows, []string{formatDate(&p.Date), p.Model, formatScore(p.Value)})
		}
		return []*table{t}
	})
}

// parseTaskScorers reads path=scorer pairs.
func parseTaskScorers(list []string) (map[string]string, error) {
	m := make(map[string]string, len(list))
	for _, s := range list {
		path, scorer, ok := strings.Cut(s, "=")
		path, scorer = strings.TrimSpace(path), strings.TrimSpace(scorer)
		if !ok || path == "" || scorer == "" {
			return nil, fmt.Errorf("invalid task %q, expected path=scorer", s)
		}
		m[path] = scorer
	}
	return m, nil
}

func cmdCompare(ctx context.Context, cmd *cli.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	taskScorers := cfg.Settings.TaskScorers
	if list := cmd.StringSlice(compareTaskFlag.Name); len(list) > 0 {
		if taskScorers, err = parseTaskScorers(list); err != nil {
			return err
		}
	}

	l, err := cfg.getLoader(ctx)
	if err != nil {
		return err
	}
	if err := l.Preload(ctx); err != nil {
		return err
	}
	models, err := data.LoadAll[data.MLModel](ctx, l, true)
	if err != nil {
		return fmt.Errorf("loading models: %w", err)
	}
	tasks, err := data.LoadAll[data.Task](ctx, l, true)
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}
	scores, err := linkedScores(ctx, cmd)
	if err != nil {
		return err
	}

	selected := report.SelectModels(models, report.ModelFilter{
		Prefixes: cmd.StringSlice(prefixFlag.Name),
		Names:    cmd.StringSlice(nameFlag.Name),
		Exclude:  cmd.StringSlice(excludeFlag.Name),
	})

	c, err := report.CompareModels(selected, scores, tasks, taskScorers)
	if err != nil {
		return err
	}

	return encode(cmd, c, func() []*table {
		t := &table{
			title:  "Model comparison",
			header: []string{"Model", "Released"},
		}
		for _, col := range c.Columns {
			t.header = append(t.header, col.Header())
		}
		for _, r := range c.Rows {
			row := []string{r.Model, formatDate(r.ReleaseDate)}
			for _, col := range c.Columns {
				v, ok := r.Cells[col.Task]
				if !ok {
					row = append(row, notAvail)
					continue
				}
				cell := formatScore(v.Mean)
				if v.StdErr != nil {
					cell += " " + formatStdErr(v.StdErr)
				}
				row = append(row, cell)
			}
			t.rows = append(t.rows, row)
		}
		return []*table{t}
	})
}

type missingResult struct {
	Total   int             `json:"total" yaml:"total"`
	Summary *report.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Groups  []report.Group  `json:"groups" yaml:"groups"`
}

func cmdMissing(ctx context.Context, cmd *cli.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	status := cmd.String(statusFlag.Name)
	if status == "" {
		status = cfg.Settings.SuccessStatus
	}

	l, err := cfg.getLoader(ctx)
	if err != nil {
		return err
	}
	runs, err := data.LoadLinked[data.BenchmarkRun](ctx, l, true)
	if err != nil {
		return fmt.Errorf("loading runs: %w", err)
	}
	models, err := data.LoadLinked[data.MLModel](ctx, l, true)
	if err != nil {
		return fmt.Errorf("loading models: %w", err)
	}
	tasks, err := data.LoadAll[data.Task](ctx, l, true)
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	all, err := report.MissingCombinations(runs, tasks, report.MissingOptions{Status: status})
	if err != nil {
		return err
	}
	pairs, err := report.MissingCombinations(runs, tasks, report.MissingOptions{
		Status:      status,
		ModelFilter: cmd.String(modelFilterFlag.Name),
		TaskFilter:  cmd.String(taskFilterFlag.Name),
	})
	if err != nil {
		return err
	}

	by := cmd.String(groupByFlag.Name)
	groups, err := report.GroupMissing(pairs, by)
	if err != nil {
		return err
	}
	if err := report.LabelGroups(groups, by, models, tasks); err != nil {
		return err
	}

	res := &missingResult{Total: len(pairs), Groups: groups}
	if cmd.Bool(summaryFlag.Name) {
		res.Summary = report.SummarizeMissing(all, len(models), len(tasks), report.DefaultSummaryTop)
		report.LabelSummary(res.Summary, tasks)
	}

	return encode(cmd, res, func() []*table {
		list := make([]*table, 0)
		if s := res.Summary; s != nil {
			list = append(list, &table{
				title:  "Summary",
				header: []string{"Models", "Tasks", "Possible", "Missing", "Complete"},
				rows: [][]string{{
					strconv.Itoa(s.Models), strconv.Itoa(s.Tasks), strconv.Itoa(s.Possible),
					strconv.Itoa(s.Missing), fmt.Sprintf("%.2f%%", s.Completion),
				}},
			}, gapTable("Models with most missing tasks", s.TopModels), gapTable("Tasks with most missing models", s.TopTasks))
		}
		header := []string{"Model", "Organizations", "Missing Task"}
		if by == report.GroupByTask {
			header = []string{"Task", "Name", "Missing Model"}
		}
		t := &table{
			title:  fmt.Sprintf("Missing combinations: %d", res.Total),
			header: header,
		}
		for _, g := range groups {
			for _, m := range g.Members {
				t.rows = append(t.rows, []string{g.Key, g.Label, m})
			}
		}
		return append(list, t)
	})
}

func gapTable(title string, list []report.GapCount) *table {
	t := &table{title: title, header: []string{"Name", "Missing", "Complete"}}
	for _, g := range list {
		name := g.Name
		if g.Label != "" && g.Label != g.Name {
			name = fmt.Sprintf("%s (%s)", g.Label, g.Name)
		}
		t.rows = append(t.rows, []string{
			name, fmt.Sprintf("%d/%d", g.Missing, g.Of), fmt.Sprintf("%.2f%%", g.Completion),
		})
	}
	return t
}
