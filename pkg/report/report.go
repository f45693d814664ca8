// Package report builds summaries over loaded and linked benchmark records.
// Every function here is pure: records must be linked first (data.Link or
// data.LoadLinked), otherwise data.ErrUnresolved is returned.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mchmarny/benchbase/pkg/data"
)

// scored is a score together with the records its run links to.
type scored struct {
	score *data.Score
	run   *data.BenchmarkRun
	model *data.MLModel
	task  *data.Task
}

func expand(s *data.Score) (*scored, error) {
	if s == nil {
		return nil, errors.New("nil score")
	}
	run, ok := s.Run.Get()
	if !ok {
		return nil, fmt.Errorf("score %s run: %w", s.ID, data.ErrUnresolved)
	}
	m, ok := run.Model.Get()
	if !ok {
		return nil, fmt.Errorf("run %s model: %w", run.ID, data.ErrUnresolved)
	}
	t, ok := run.Task.Get()
	if !ok {
		return nil, fmt.Errorf("run %s task: %w", run.ID, data.ErrUnresolved)
	}
	return &scored{score: s, run: run, model: m, task: t}, nil
}

// matching returns the scores recorded for taskPath with scorer.
func matching(scores []*data.Score, taskPath, scorer string) ([]*scored, error) {
	list := make([]*scored, 0)
	for _, s := range scores {
		e, err := expand(s)
		if err != nil {
			return nil, err
		}
		if e.task.Path == taskPath && e.score.Scorer == scorer {
			list = append(list, e)
		}
	}
	return list, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
