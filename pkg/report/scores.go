package report

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/mchmarny/benchbase/pkg/data"
)

// DefaultHighScoreLimit is the number of entries HighScores returns when the
// caller does not set a limit.
const DefaultHighScoreLimit = 10

// ScoreEntry is one row of a high score table.
type ScoreEntry struct {
	Model   string    `json:"model" yaml:"model"`
	ModelID string    `json:"model_id" yaml:"model_id"`
	Value   float64   `json:"value" yaml:"value"`
	StdErr  *float64  `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Date    time.Time `json:"date" yaml:"date"`
	RunID   string    `json:"run_id" yaml:"run_id"`
}

// TimelinePoint marks a date on which the best score improved.
type TimelinePoint struct {
	Date    time.Time `json:"date" yaml:"date"`
	Model   string    `json:"model" yaml:"model"`
	ModelID string    `json:"model_id" yaml:"model_id"`
	Value   float64   `json:"value" yaml:"value"`
}

func entryOf(e *scored) ScoreEntry {
	return ScoreEntry{
		Model:   e.model.Name,
		ModelID: e.model.ID,
		Value:   e.score.Mean,
		StdErr:  e.score.StdErr,
		Date:    e.run.Date,
		RunID:   e.run.ID,
	}
}

// FindTask returns the task with the given path.
func FindTask(tasks []*data.Task, path string) (*data.Task, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		for _, t := range tasks {
			if t != nil && t.Path == path {
				return t, nil
			}
		}
	}
	return nil, &data.NotFoundError{Table: data.TableTasks, Key: path}
}

// HighScores returns the best scores for taskPath with scorer, highest
// first. Equal values keep the earlier run first, then sort by model name.
// A limit of zero or less means DefaultHighScoreLimit.
func HighScores(scores []*data.Score, taskPath, scorer string, limit int) ([]ScoreEntry, error) {
	if limit <= 0 {
		limit = DefaultHighScoreLimit
	}

	list, err := matching(scores, taskPath, scorer)
	if err != nil {
		return nil, err
	}

	entries := make([]ScoreEntry, 0, len(list))
	for _, e := range list {
		entries = append(entries, entryOf(e))
	}

	slices.SortStableFunc(entries, func(a, b ScoreEntry) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Model, b.Model)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PerformanceTimeline returns the record-so-far sequence for taskPath with
// scorer. Scores are walked in the order given (table row order); a point is
// emitted when a score beats the best so far and its run date is not earlier
// than the last point. A better score on the same calendar day as the last
// point replaces it, so each date holds at most one point.
func PerformanceTimeline(scores []*data.Score, taskPath, scorer string) ([]TimelinePoint, error) {
	list, err := matching(scores, taskPath, scorer)
	if err != nil {
		return nil, err
	}

	points := make([]TimelinePoint, 0)
	for _, e := range list {
		p := TimelinePoint{
			Date:    e.run.Date,
			Model:   e.model.Name,
			ModelID: e.model.ID,
			Value:   e.score.Mean,
		}
		if len(points) == 0 {
			points = append(points, p)
			continue
		}

		last := &points[len(points)-1]
		if p.Value <= last.Value || day(p.Date).Before(day(last.Date)) {
			continue
		}
		if day(p.Date).Equal(day(last.Date)) {
			*last = p
			continue
		}
		points = append(points, p)
	}
	return points, nil
}
