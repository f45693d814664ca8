package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", formatJSON, false},
		{"JSON", formatJSON, false},
		{"yml", formatYAML, false},
		{" yaml ", formatYAML, false},
		{"text", formatTable, false},
		{"table", formatTable, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, &table{
		title:  "Scores",
		header: []string{"Model", "Score"},
		rows: [][]string{
			{"model-long-name", "0.750"},
			{"m", "0.500"},
		},
	})
	require.NoError(t, err)

	want := "Scores\n" +
		"Model            Score\n" +
		"---------------  -----\n" +
		"model-long-name  0.750\n" +
		"m                0.500\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTable_WideRunes(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, &table{
		header: []string{"Name", "X"},
		rows:   [][]string{{"模型", "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Name  X\n----  -\n模型  1\n", buf.String())
}

func TestWriteTable_ShortRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, &table{
		header: []string{"A", "B"},
		rows:   [][]string{{"x"}},
	}))
	assert.Equal(t, "A  B\n-  -\nx\n", buf.String())
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "0.123", formatScore(0.12345))
	assert.Equal(t, notAvail, formatStdErr(nil))
	v := 0.01
	assert.Equal(t, "±0.010", formatStdErr(&v))
	assert.Equal(t, notAvail, formatDate(nil))
	assert.Equal(t, notAvail, formatDate(&time.Time{}))
	d := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01", formatDate(&d))
}

func TestParseTaskScorers(t *testing.T) {
	m, err := parseTaskScorers([]string{"bench.task.x = acc", "bench.task.y=f1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bench.task.x": "acc", "bench.task.y": "f1"}, m)

	for _, bad := range []string{"bench.task.x", "=acc", "bench.task.x="} {
		_, err := parseTaskScorers([]string{bad})
		assert.Error(t, err, bad)
	}
}
