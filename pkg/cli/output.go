package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"

	columnGap = "  "
	notAvail  = "N/A"
)

var formats = []string{formatJSON, formatYAML, formatTable}

func parseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	case formatTable, "text":
		return formatTable, nil
	}
	return "", fmt.Errorf("invalid format %q, expected one of: %s", s, strings.Join(formats, ", "))
}

// table is the plain text rendering of a result.
type table struct {
	title  string
	header []string
	rows   [][]string
}

// encode writes v in the selected format. Table output uses tbl when set
// and falls back to JSON otherwise.
func encode(cmd *cli.Command, v any, tbl func() []*table) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	w := writer(cmd)

	switch {
	case cfg.Format == formatYAML:
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return err
		}
		return e.Close()
	case cfg.Format == formatTable && tbl != nil:
		for i, t := range tbl() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := writeTable(w, t); err != nil {
				return err
			}
		}
		return nil
	}

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// writeTable pads every column to its widest cell, measured in terminal
// cells so wide runes line up.
func writeTable(w io.Writer, t *table) error {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(c))
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			c := ""
			if i < len(cells) {
				c = cells[i]
			}
			if i == len(widths)-1 {
				parts[i] = c
				continue
			}
			parts[i] = runewidth.FillRight(c, widths[i])
		}
		return strings.TrimRight(strings.Join(parts, columnGap), " ")
	}

	var b strings.Builder
	if t.title != "" {
		b.WriteString(t.title + "\n")
	}
	b.WriteString(line(t.header) + "\n")
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	b.WriteString(strings.Join(rule, columnGap) + "\n")
	for _, r := range t.rows {
		b.WriteString(line(r) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatStdErr(v *float64) string {
	if v == nil {
		return notAvail
	}
	return "±" + formatScore(*v)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvail
	}
	return t.Format(time.DateOnly)
}
