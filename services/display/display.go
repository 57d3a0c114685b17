// Package display turns node state into a few short text lines and hands
// them to a Renderer (an OLED panel on the device, the log elsewhere).
package display

import (
	"log/slog"

	"envnode-go/types"
	"envnode-go/x/strconvx"
)

// MaxLines fits a 128x64 panel with an 8pt font and spacing.
const MaxLines = 4

// Renderer draws text lines. It owns no node state.
type Renderer interface {
	Render(lines []string)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(lines []string)

func (f RendererFunc) Render(lines []string) { f(lines) }

// Presenter formats readings and status messages.
type Presenter struct {
	r      Renderer
	title  string
	status string
	last   types.Reading
	seen   bool
}

func NewPresenter(r Renderer, title string) *Presenter {
	return &Presenter{r: r, title: title}
}

// ShowReading renders the latest reading with the current status line.
func (p *Presenter) ShowReading(rd types.Reading) {
	p.last, p.seen = rd, true
	p.flush()
}

// ShowStatus replaces the status line and re-renders.
func (p *Presenter) ShowStatus(text string) {
	p.status = text
	p.flush()
}

// ShowSleeping renders the power-down notice.
func (p *Presenter) ShowSleeping() {
	p.r.Render([]string{p.title, "Sleeping...", "press to wake"})
}

// ShowHalted renders a fatal startup failure.
func (p *Presenter) ShowHalted(reason string) {
	p.r.Render([]string{p.title, "HALTED", reason})
}

func (p *Presenter) flush() { p.r.Render(p.Lines()) }

// Lines returns what would be rendered now.
func (p *Presenter) Lines() []string {
	lines := make([]string, 0, MaxLines)
	lines = append(lines, p.title)
	switch {
	case !p.seen:
		lines = append(lines, "T: --")
	case !p.last.Valid():
		lines = append(lines, "T: sensor error")
	default:
		lines = append(lines, "T: "+strconvx.FormatFloat(p.last.Temperature, 'f', 1, 64)+" C")
		if p.last.HasHumidity {
			lines = append(lines, "H: "+strconvx.FormatFloat(p.last.Humidity, 'f', 1, 64)+" %")
		}
	}
	if p.status != "" {
		lines = append(lines, p.status)
	}
	if len(lines) > MaxLines {
		lines = lines[:MaxLines]
	}
	return lines
}

// LogRenderer writes rendered lines to a logger; used when no panel exists.
type LogRenderer struct{ Log *slog.Logger }

func (l LogRenderer) Render(lines []string) {
	l.Log.Debug("display", "lines", lines)
}
