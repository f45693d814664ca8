package report

import (
	"time"

	"github.com/mchmarny/benchbase/pkg/data"
)

type fixture struct {
	orgs   []*data.Organization
	models []*data.MLModel
	tasks  []*data.Task
	runs   []*data.BenchmarkRun
	scores []*data.Score
}

func date(s string) time.Time {
	t, err := data.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func fptr(v float64) *float64 {
	return &v
}

func (f *fixture) org(id, name string) *data.Organization {
	o := &data.Organization{ID: id, Name: name}
	f.orgs = append(f.orgs, o)
	return o
}

func (f *fixture) model(id, name, released string, orgs ...*data.Organization) *data.MLModel {
	ids := make([]string, len(orgs))
	for i, o := range orgs {
		ids[i] = o.ID
	}
	m := &data.MLModel{
		ID:            id,
		Name:          name,
		Organizations: data.ResolvedRefList(ids, orgs),
	}
	if released != "" {
		d := date(released)
		m.ReleaseDate = &d
	}
	f.models = append(f.models, m)
	return m
}

func (f *fixture) task(id, path, name string) *data.Task {
	t := &data.Task{ID: id, Path: path, Name: name}
	f.tasks = append(f.tasks, t)
	return t
}

func (f *fixture) run(id string, m *data.MLModel, t *data.Task, on, status string) *data.BenchmarkRun {
	r := &data.BenchmarkRun{
		ID:     id,
		Model:  data.ResolvedRef(m.ID, m),
		Task:   data.ResolvedRef(t.ID, t),
		Date:   date(on),
		Status: status,
	}
	f.runs = append(f.runs, r)
	return r
}

func (f *fixture) score(id string, r *data.BenchmarkRun, scorer string, mean float64, stderr *float64) *data.Score {
	s := &data.Score{
		ID:     id,
		Run:    data.ResolvedRef(r.ID, r),
		Scorer: scorer,
		Mean:   mean,
		StdErr: stderr,
	}
	f.scores = append(f.scores, s)
	return s
}

// abcFixture holds models A, B and C scored 0.50, 0.75 and 0.60 with "acc"
// on bench.task.x on 2024-01-01, 2024-03-01 and 2024-02-01.
func abcFixture() *fixture {
	f := &fixture{}
	x := f.org("o1", "Org X")
	y := f.org("o2", "Org Y")
	a := f.model("mA", "A", "2023-12-01", x)
	b := f.model("mB", "B", "2024-02-15", y, x)
	c := f.model("mC", "C", "")
	tx := f.task("t1", "bench.task.x", "Task X")
	ty := f.task("t2", "bench.task.y", "")

	ra := f.run("r1", a, tx, "2024-01-01", "Success")
	rb := f.run("r2", b, tx, "2024-03-01", "Success")
	rc := f.run("r3", c, tx, "2024-02-01", "Success")
	ray := f.run("r4", a, ty, "2024-01-05", "Error")

	f.score("s1", ra, "acc", 0.50, fptr(0.01))
	f.score("s2", rb, "acc", 0.75, fptr(0.02))
	f.score("s3", rc, "acc", 0.60, nil)
	f.score("s4", ra, "f1", 0.45, nil)
	f.score("s5", ray, "acc", 0.99, nil)
	return f
}
