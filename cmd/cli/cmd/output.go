package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/heapql/pkg/model"
)

// Output formats for query results.
const (
	formatText = "text"
	formatHTML = "html"
	formatJSON = "json"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printTable renders a bordered table on terminals and tab separated
// lines otherwise, so the output stays easy to pipe.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if !isTerminal(w) {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for _, r := range rows {
			fmt.Fprintln(w, strings.Join(r, "\t"))
		}
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes query rows in the requested format. Text written by
// print and println in the query comes first.
func printResult(w io.Writer, res *model.QueryResult, format string) error {
	switch format {
	case formatJSON:
		return printJSON(w, res)
	case formatText, formatHTML:
	default:
		return fmt.Errorf("unknown output format %q (valid: text, html, json)", format)
	}
	if res.Output != "" {
		fmt.Fprint(w, res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(w)
		}
	}
	for _, row := range res.Rows {
		if format == formatHTML {
			fmt.Fprintln(w, row.HTML)
		} else {
			fmt.Fprintln(w, row.Text)
		}
	}
	if res.Truncated {
		logger.Warn("Too many results, showing the first %d", len(res.Rows))
	}
	return nil
}
