// Package report renders run summaries for the console: the species
// roster, the search batch outcome, and any per-job failures.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"orthopipe/internal/scheduler"
	"orthopipe/internal/species"
	"orthopipe/internal/workdir"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// DisplayName turns a source FASTA filename into a presentable species
// name: extension dropped, separators spaced, title-cased.
func DisplayName(sourceFasta string) string {
	name := workdir.DisplayName(sourceFasta)
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.Und).String(name)
}

// SpeciesTable renders the roster of species in the run, marking which
// are newly added versus carried over from a previous run. Names runs
// parallel to set.ToUse.
func SpeciesTable(set *species.Set, names []string) string {
	rows := make([][]string, 0, len(set.ToUse))
	for i, id := range set.ToUse {
		origin := "previous"
		if id >= set.FirstNew {
			origin = "new"
		}
		name := ""
		if i < len(names) {
			name = DisplayName(names[i])
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", id),
			name,
			fmt.Sprintf("%d", set.Counts[id]),
			origin,
		})
	}
	return renderTable(
		[]string{"ID", "Species", "Sequences", "Origin"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
}

// BatchSummary renders the outcome of a dispatched search batch.
func BatchSummary(results []scheduler.Result) string {
	var ok, failed int
	var total time.Duration
	for _, r := range results {
		if r.Failed() {
			failed++
		} else {
			ok++
		}
		total += r.Duration
	}
	rows := [][]string{
		{"Jobs", fmt.Sprintf("%d", len(results))},
		{"Succeeded", fmt.Sprintf("%d", ok)},
		{"Failed", fmt.Sprintf("%d", failed)},
		{"Total compute", total.Round(time.Second).String()},
	}
	return renderTable([]string{"Search Batch", ""}, rows, []columnAlignment{alignLeft, alignRight})
}

// FailureTable renders the failed jobs of a batch, one row per job.
func FailureTable(failures []scheduler.Result) string {
	if len(failures) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(failures))
	for _, r := range failures {
		detail := strings.TrimSpace(r.Output)
		if r.Err != nil {
			detail = r.Err.Error()
		}
		if i := strings.IndexByte(detail, '\n'); i >= 0 {
			detail = detail[:i]
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d vs %d", r.Job.Order.Query, r.Job.Order.Target),
			fmt.Sprintf("%d", r.ExitCode),
			detail,
		})
	}
	return renderTable(
		[]string{"Pair", "Exit", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	)
}
