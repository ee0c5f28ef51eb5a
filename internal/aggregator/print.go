package aggregator

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintOptions controls the two output renderings.
type PrintOptions struct {
	// Legacy reproduces hooks.c's fixed-width "%-16s %8s %8s %8s" table
	// with truncated MiB columns, for sites that scrape lltop's stdout.
	Legacy   bool
	NoHeader bool
}

// Print renders rows to w per opts. Rows are assumed already sorted (see
// Aggregator.Rows).
func Print(w io.Writer, rows []*NameStats, opts PrintOptions) error {
	if opts.Legacy {
		return printLegacy(w, rows, opts)
	}
	return printTable(w, rows, opts)
}

func printLegacy(w io.Writer, rows []*NameStats, opts PrintOptions) error {
	if !opts.NoHeader {
		if _, err := fmt.Fprintf(w, "%-16s %8s %8s %8s\n", "JOBID", "WR_MB", "RD_MB", "REQS"); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-16s %8d %8d %8d\n", r.Name, r.WR>>20, r.RD>>20, r.Reqs); err != nil {
			return err
		}
	}
	return nil
}

func printTable(w io.Writer, rows []*NameStats, opts PrintOptions) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	if !opts.NoHeader {
		tbl.AppendHeader(table.Row{"JOBID", "WRITTEN", "READ", "REQS"})
	}
	for _, r := range rows {
		tbl.AppendRow(table.Row{
			r.Name,
			humanize.IBytes(uint64(clampNonNegative(r.WR))),
			humanize.IBytes(uint64(clampNonNegative(r.RD))),
			r.Reqs,
		})
	}
	tbl.Render()
	return nil
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
