package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Report holds the statistics of a gnnbatch run.
type Report struct {
	Block      string
	Parameters int
	OutDim     int

	Epochs, Batches, Graphs, Nodes, Edges int
	Memory                                uintptr

	CacheHits, CacheMisses int64

	// Per graph values, in the order they were batched: the first output of the readout, the target
	// and the number of atoms.
	Predictions, Targets, NumAtoms []float64
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			}
			return s.Align(alignment)
		})
}

// DataFrame returns the per graph values as a dataframe with columns "prediction", "target" (if all graphs
// had a target) and "num_atoms".
func (r *Report) DataFrame() dataframe.DataFrame {
	columns := []series.Series{series.New(r.Predictions, series.Float, "prediction")}
	if len(r.Targets) == len(r.Predictions) {
		columns = append(columns, series.New(r.Targets, series.Float, "target"))
	}
	columns = append(columns, series.New(r.NumAtoms, series.Float, "num_atoms"))
	return dataframe.New(columns...)
}

// Render the report to w.
func (r *Report) Render(w io.Writer) error {
	table := newPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("block", r.Block)
	table.Row("# parameters", humanize.Comma(int64(r.Parameters)))
	table.Row("# epochs", humanize.Comma(int64(r.Epochs)))
	table.Row("# batches", humanize.Comma(int64(r.Batches)))
	table.Row("# graphs", humanize.Comma(int64(r.Graphs)))
	table.Row("# nodes", humanize.Comma(int64(r.Nodes)))
	table.Row("# edges", humanize.Comma(int64(r.Edges)))
	table.Row("batched bytes", humanize.Bytes(uint64(r.Memory)))
	if r.CacheHits+r.CacheMisses > 0 {
		table.Row("cache hits", fmt.Sprintf("%s (%.1f%%)", humanize.Comma(r.CacheHits),
			100*float64(r.CacheHits)/float64(r.CacheHits+r.CacheMisses)))
	}
	if _, err := fmt.Fprintln(w, titleStyle.Render("Summary")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, table.Render()); err != nil {
		return err
	}
	if len(r.Predictions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, titleStyle.Render("Per graph values")); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, r.DataFrame().Describe().String())
	return err
}
