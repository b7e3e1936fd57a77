package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
var ProgressbarStyle = progressbar.ThemeASCII

// progressBar displays the batches of one epoch. A nil progressBar is a no-op.
type progressBar struct {
	bar     *progressbar.ProgressBar
	termenv *termenv.Output
}

func newProgressBar(numBatches, epoch int) *progressBar {
	pBar := &progressBar{termenv: termenv.NewOutput(os.Stdout)}
	pBar.termenv.HideCursor()
	pBar.bar = progressbar.NewOptions(numBatches,
		progressbar.OptionSetDescription(fmt.Sprintf("[bold]epoch %d[reset]", epoch)),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(os.Stdout),
	)
	return pBar
}

// Add one batch, with the running totals of graphs and nodes.
func (pBar *progressBar) Add(graphs, nodes int) {
	if pBar == nil {
		return
	}
	pBar.bar.Describe(fmt.Sprintf("[bold]%s graphs, %s nodes[reset]",
		humanize.Comma(int64(graphs)), humanize.Comma(int64(nodes))))
	_ = pBar.bar.Add(1)
}

// Done finishes the display of the epoch.
func (pBar *progressBar) Done() {
	if pBar == nil {
		return
	}
	_ = pBar.bar.Finish()
	pBar.termenv.ShowCursor()
	fmt.Println()
}
