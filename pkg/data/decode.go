package data

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mchmarny/benchbase/pkg/airtable"
)

const (
	fieldOrgName     = "name"
	fieldModelName   = "id"
	fieldTaskPath    = "path"
	fieldRunModel    = "model"
	fieldRunTask     = "task"
	fieldRunDate     = "started_at"
	fieldScoreRun    = "benchmark_run"
	fieldScoreScorer = "scorer"
	fieldScoreMean   = "mean"

	dateLayout = "2006-01-02"
)

var timeType = reflect.TypeOf(time.Time{})

type orgFields struct {
	Name string `mapstructure:"name"`
}

type modelFields struct {
	Name          string         `mapstructure:"id"`
	ReleaseDate   time.Time      `mapstructure:"release_date"`
	Organizations []string       `mapstructure:"organizations"`
	HFDeveloper   string         `mapstructure:"hf_developer"`
	BenchmarkRuns []string       `mapstructure:"benchmark_runs"`
	Remain        map[string]any `mapstructure:",remain"`
}

type taskFields struct {
	Path string `mapstructure:"path"`
	Name string `mapstructure:"name"`
}

type runFields struct {
	Model     []string  `mapstructure:"model"`
	Task      []string  `mapstructure:"task"`
	StartedAt time.Time `mapstructure:"started_at"`
	Status    string    `mapstructure:"status"`
	LogViewer string    `mapstructure:"log_viewer"`
	Scores    []string  `mapstructure:"scores"`
}

type scoreFields struct {
	Run    []string `mapstructure:"benchmark_run"`
	Scorer string   `mapstructure:"scorer"`
	Mean   float64  `mapstructure:"mean"`
	StdErr *float64 `mapstructure:"stderr"`
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

func dateHook(from reflect.Type, to reflect.Type, v any) (any, error) {
	if to != timeType {
		return v, nil
	}
	if from.Kind() != reflect.String {
		return nil, fmt.Errorf("expected date string, got %s", from)
	}
	return ParseDate(v.(string))
}

func decodeFields(table Table, r *airtable.Record, required []string, target any) error {
	for _, f := range required {
		v, ok := r.Fields[f]
		if !ok || v == nil {
			return &SchemaError{Table: table, RecordID: r.ID, Field: f, Reason: "required field is missing"}
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return &SchemaError{Table: table, RecordID: r.ID, Field: f, Reason: "required field is empty"}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncType(dateHook),
		Result:     target,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(r.Fields); err != nil {
		return &SchemaError{Table: table, RecordID: r.ID, Reason: "unexpected value shape", Err: err}
	}
	return nil
}

func singleLink(table Table, recordID, field string, ids []string) (string, error) {
	switch len(ids) {
	case 0:
		return "", &SchemaError{Table: table, RecordID: recordID, Field: field, Reason: "required link is empty"}
	case 1:
		return ids[0], nil
	}
	return "", &SchemaError{Table: table, RecordID: recordID, Field: field, Reason: fmt.Sprintf("expected one link, got %d", len(ids))}
}

func checkRecord(table Table, r *airtable.Record) error {
	if r == nil {
		return &SchemaError{Table: table, Reason: "nil row"}
	}
	if r.ID == "" {
		return &SchemaError{Table: table, Reason: "row has no id"}
	}
	return nil
}

// DecodeOrganization maps one Organizations row.
func DecodeOrganization(r *airtable.Record) (*Organization, error) {
	if err := checkRecord(TableOrganizations, r); err != nil {
		return nil, err
	}
	var f orgFields
	if err := decodeFields(TableOrganizations, r, []string{fieldOrgName}, &f); err != nil {
		return nil, err
	}
	return &Organization{
		ID:   r.ID,
		Name: strings.TrimSpace(f.Name),
	}, nil
}

// DecodeModel maps one Models row. String fields without a dedicated
// struct field are kept as attributes.
func DecodeModel(r *airtable.Record) (*MLModel, error) {
	if err := checkRecord(TableModels, r); err != nil {
		return nil, err
	}
	var f modelFields
	if err := decodeFields(TableModels, r, []string{fieldModelName}, &f); err != nil {
		return nil, err
	}

	m := &MLModel{
		ID:            r.ID,
		Name:          strings.TrimSpace(f.Name),
		HFDeveloper:   strings.TrimSpace(f.HFDeveloper),
		Organizations: NewRefList[Organization](f.Organizations...),
		BenchmarkRuns: NewRefList[BenchmarkRun](f.BenchmarkRuns...),
	}
	if !f.ReleaseDate.IsZero() {
		d := f.ReleaseDate
		m.ReleaseDate = &d
	}

	for k, v := range f.Remain {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if m.Attributes == nil {
			m.Attributes = make(map[string]string)
		}
		m.Attributes[k] = s
	}

	return m, nil
}

// DecodeTask maps one Tasks row.
func DecodeTask(r *airtable.Record) (*Task, error) {
	if err := checkRecord(TableTasks, r); err != nil {
		return nil, err
	}
	var f taskFields
	if err := decodeFields(TableTasks, r, []string{fieldTaskPath}, &f); err != nil {
		return nil, err
	}
	return &Task{
		ID:   r.ID,
		Path: strings.TrimSpace(f.Path),
		Name: strings.TrimSpace(f.Name),
	}, nil
}

// DecodeRun maps one Benchmark Runs row. The run date falls back to the
// row creation time when started_at is absent.
func DecodeRun(r *airtable.Record) (*BenchmarkRun, error) {
	if err := checkRecord(TableRuns, r); err != nil {
		return nil, err
	}
	var f runFields
	if err := decodeFields(TableRuns, r, []string{fieldRunModel, fieldRunTask}, &f); err != nil {
		return nil, err
	}

	modelID, err := singleLink(TableRuns, r.ID, fieldRunModel, f.Model)
	if err != nil {
		return nil, err
	}
	taskID, err := singleLink(TableRuns, r.ID, fieldRunTask, f.Task)
	if err != nil {
		return nil, err
	}

	date := f.StartedAt
	if date.IsZero() {
		date = r.CreatedTime.UTC()
	}
	if date.IsZero() {
		return nil, &SchemaError{Table: TableRuns, RecordID: r.ID, Field: fieldRunDate, Reason: "run has no date"}
	}

	return &BenchmarkRun{
		ID:        r.ID,
		Model:     NewRef[MLModel](modelID),
		Task:      NewRef[Task](taskID),
		Date:      date,
		Status:    strings.TrimSpace(f.Status),
		LogViewer: strings.TrimSpace(f.LogViewer),
		Scores:    NewRefList[Score](f.Scores...),
	}, nil
}

// DecodeScore maps one Scores row.
func DecodeScore(r *airtable.Record) (*Score, error) {
	if err := checkRecord(TableScores, r); err != nil {
		return nil, err
	}
	var f scoreFields
	if err := decodeFields(TableScores, r, []string{fieldScoreRun, fieldScoreScorer, fieldScoreMean}, &f); err != nil {
		return nil, err
	}

	runID, err := singleLink(TableScores, r.ID, fieldScoreRun, f.Run)
	if err != nil {
		return nil, err
	}

	return &Score{
		ID:     r.ID,
		Run:    NewRef[BenchmarkRun](runID),
		Scorer: strings.TrimSpace(f.Scorer),
		Mean:   f.Mean,
		StdErr: f.StdErr,
	}, nil
}

// Decode maps a row of the table T is stored in.
func Decode[T Entity](r *airtable.Record) (*T, error) {
	var (
		v   any
		err error
	)
	switch any((*T)(nil)).(type) {
	case *Organization:
		v, err = DecodeOrganization(r)
	case *MLModel:
		v, err = DecodeModel(r)
	case *Task:
		v, err = DecodeTask(r)
	case *BenchmarkRun:
		v, err = DecodeRun(r)
	case *Score:
		v, err = DecodeScore(r)
	}
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
