package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

const barWidth = 30

// ProgressBar provides a simple progress indicator
type ProgressBar struct {
	total       int64
	current     int64
	failed      int64
	startTime   time.Time
	output      io.Writer
	enabled     bool
	description string
	now         func() time.Time
}

// NewProgressBar creates a progress bar writing to w. Use stderr so it
// doesn't interfere with the record on stdout.
func NewProgressBar(w io.Writer, total int64, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		startTime:   time.Now(),
		output:      w,
		enabled:     true,
		description: description,
		now:         time.Now,
	}
}

// Disable disables the progress bar
func (p *ProgressBar) Disable() {
	p.enabled = false
}

// Increment advances the bar by one step and shows label as the current item.
func (p *ProgressBar) Increment(label string, failed bool) {
	p.current++
	if failed {
		p.failed++
	}
	p.render(label)
}

// Show redraws the bar with a new current item without advancing it.
func (p *ProgressBar) Show(label string) {
	p.render(label)
}

func (p *ProgressBar) render(label string) {
	if !p.enabled {
		return
	}

	var percent float64
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total) * 100
	}
	filled := min(int(float64(barWidth)*percent/100), barWidth)

	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	output := fmt.Sprintf("\r[%s] %d/%d", bar, p.current, p.total)
	if p.description != "" {
		output = fmt.Sprintf("\r%s [%s] %d/%d", p.description, bar, p.current, p.total)
	}
	if p.failed > 0 {
		output += fmt.Sprintf(" (%d failed)", p.failed)
	}
	output += " | " + formatDuration(p.now().Sub(p.startTime))
	if label != "" {
		output += " | " + label
	}
	// clear leftovers of a longer previous line
	fmt.Fprint(p.output, output+"\033[K")
}

// Finish finishes the progress bar
func (p *ProgressBar) Finish() {
	if !p.enabled {
		return
	}
	p.render("done")
	fmt.Fprint(p.output, "\n")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// ReadProgress drives a ProgressBar from identifier read events.
type ReadProgress struct {
	bar *ProgressBar
}

// NewReadProgress creates a read observer for a table of identifiers.
func NewReadProgress(w io.Writer, table []vehicleinfo.IdentifierSpec) *ReadProgress {
	return &ReadProgress{bar: NewProgressBar(w, int64(len(table)), "Reading")}
}

func (r *ReadProgress) ReadStarted(spec vehicleinfo.IdentifierSpec) {
	r.bar.Show(spec.Field)
}

func (r *ReadProgress) ReadFinished(spec vehicleinfo.IdentifierSpec, outcome vehicleinfo.Outcome, elapsed time.Duration) {
	r.bar.Increment(spec.Field, !outcome.OK())
}

// Finish terminates the progress line.
func (r *ReadProgress) Finish() {
	r.bar.Finish()
}
