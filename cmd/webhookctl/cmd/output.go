package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Output format constants.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// printStructured writes v as JSON or YAML. It reports false for table output.
func printStructured(v any) (bool, error) {
	switch flagOutput {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
		return true, nil
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("marshal YAML: %w", err)
		}
		fmt.Fprint(stdout, string(data))
		return true, nil
	}
	return false, nil
}

type tableWriter struct {
	w *tabwriter.Writer
}

func newTable(headers ...string) *tableWriter {
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return &tableWriter{w: w}
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() {
	_ = t.w.Flush()
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func shortTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateTime)
}
