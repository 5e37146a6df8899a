package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func normalizeOutput(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", outputTable:
		return outputTable, nil
	case outputJSON, outputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeOutput renders v as json or yaml, or hands a tabwriter to table.
func writeOutput(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

// streamWriter emits one record per call in the selected format.
type streamWriter struct {
	format string
	w      io.Writer
	js     *json.Encoder
	ym     *yaml.Encoder
}

func newStreamWriter(w io.Writer, format string) *streamWriter {
	s := &streamWriter{format: format, w: w}
	switch format {
	case outputJSON:
		s.js = json.NewEncoder(w)
	case outputYAML:
		s.ym = yaml.NewEncoder(w)
	}
	return s
}

func (s *streamWriter) write(v any, line string) error {
	switch {
	case s.js != nil:
		return s.js.Encode(v)
	case s.ym != nil:
		return s.ym.Encode(v)
	default:
		_, err := fmt.Fprintln(s.w, line)
		return err
	}
}

func (s *streamWriter) close() error {
	if s.ym != nil {
		return s.ym.Close()
	}
	return nil
}
