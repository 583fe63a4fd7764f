package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputYAML  = "yaml"
)

// Printer renders command results as an aligned table or as YAML.
type Printer struct {
	Out    io.Writer
	Format string
}

// Print writes rows under headers, or doc as YAML when the format asks for it.
func (p Printer) Print(doc any, headers []string, rows [][]string) error {
	switch p.Format {
	case OutputYAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case OutputTable, "":
		return p.table(headers, rows)
	default:
		return fmt.Errorf("unknown output format %q (use table or yaml)", p.Format)
	}
}

func (p Printer) table(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.Out, "Nenhum registro encontrado.")
		return err
	}

	w := tabwriter.NewWriter(p.Out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold).SprintFunc()
	if _, err := fmt.Fprintln(w, bold(strings.Join(headers, "\t"))); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Deref renders an optional string column.
func Deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
