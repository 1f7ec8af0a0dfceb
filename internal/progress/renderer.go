package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// BarRenderer draws a two-line progress display (status + bar) on a TTY,
// or prints timestamped single lines on a non-TTY.
type BarRenderer struct {
	out       io.Writer
	start     time.Time
	isTTY     bool
	width     int
	lastEvent Event
	lastStage Stage
	lines     int // number of lines currently written (for TTY overwrite)
}

// NewBarRenderer creates a renderer that writes to out.
// It auto-detects TTY mode and terminal width.
func NewBarRenderer(out *os.File) *BarRenderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return newRenderer(out, tty, width)
}

func newRenderer(out io.Writer, tty bool, width int) *BarRenderer {
	return &BarRenderer{
		out:   out,
		start: time.Now(),
		isTTY: tty,
		width: width,
	}
}

// Handle processes a progress event. It satisfies the Callback type.
func (r *BarRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)

	// StageComplete is always 100% regardless of the calculated percent.
	if e.Stage == StageComplete {
		e.Percent = 1.0
	}

	r.lastEvent = e

	if r.isTTY {
		r.renderTTY(e)
	} else {
		r.renderPlain(e)
	}
}

// Finish clears the progress display and prints a final summary.
func (r *BarRenderer) Finish() {
	e := r.lastEvent
	if r.isTTY && r.lines > 0 {
		r.clearLines()
	}

	if e.Error != nil {
		fmt.Fprintf(r.out, "\n  %s %v\n", errStyle.Render("Error:"), e.Error)
		return
	}
	if e.Stage != StageComplete {
		return
	}

	fmt.Fprintln(r.out)
	if e.OutputFile == "" {
		fmt.Fprintf(r.out, "  %s (%s)\n", okStyle.Render(e.Message), formatElapsed(e.Elapsed))
		return
	}
	fmt.Fprintf(r.out, "  %s %s\n", okStyle.Render("Episode saved to"), e.OutputFile)
	row := func(label, value string) {
		fmt.Fprintf(r.out, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-11s", label)), valueStyle.Render(value))
	}
	if e.Duration > 0 {
		row("Length", formatElapsed(e.Duration))
	}
	if e.SizeBytes > 0 {
		row("Size", humanize.Bytes(uint64(e.SizeBytes)))
	}
	if e.Provider != "" {
		row("Script", e.Provider)
	}
	if e.Background != "" {
		row("Background", e.Background)
	}
	row("Total", formatElapsed(e.Elapsed))
	if e.Failures > 0 {
		fmt.Fprintf(r.out, "  %s\n", warnStyle.Render(fmt.Sprintf("%d utterance(s) skipped", e.Failures)))
	}
}

func (r *BarRenderer) renderTTY(e Event) {
	if r.lines > 0 {
		r.clearLines()
	}

	status := "  " + labelStyle.Render(fmt.Sprintf("%-10s", e.Stage)) + " " + e.Message
	if e.SegmentTotal > 0 {
		status += labelStyle.Render(fmt.Sprintf(" (%d/%d)", e.SegmentNum, e.SegmentTotal))
	}
	bar := fmt.Sprintf("  %s %3d%%  %s", renderBar(e.Percent, r.barWidth()), int(e.Percent*100), formatElapsed(e.Elapsed))

	fmt.Fprintf(r.out, "%s\n%s", status, bar)
	r.lines = 2
}

// renderPlain prints one line per stage transition, plus the last clip of a
// synthesis run, so logs stay short.
func (r *BarRenderer) renderPlain(e Event) {
	last := e.SegmentTotal > 0 && e.SegmentNum == e.SegmentTotal
	if e.Stage == r.lastStage && !last && e.Error == nil {
		return
	}
	r.lastStage = e.Stage
	fmt.Fprintf(r.out, "[%s] %s\n", formatElapsed(e.Elapsed), e.Message)
}

// clearLines erases the status and bar lines so the next frame overwrites them.
func (r *BarRenderer) clearLines() {
	fmt.Fprint(r.out, "\r\033[2K"+strings.Repeat("\033[A\033[2K", r.lines-1)+"\r")
	r.lines = 0
}

// barWidth leaves room for the percent and elapsed columns.
func (r *BarRenderer) barWidth() int {
	return min(max(r.width-16, 20), 60)
}

// renderBar draws a [####....] style bar of the given width.
func renderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
