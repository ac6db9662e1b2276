package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"imgpdf/internal/converter"
)

// ui prints status lines for humans. Machine-readable output goes straight to out.
type ui struct {
	out io.Writer
	err io.Writer
}

func newUI(out, err io.Writer) *ui {
	return &ui{out: out, err: err}
}

func (u *ui) Info(format string, args ...any) {
	color.New(color.FgCyan).Fprintf(u.out, "ℹ️ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) Success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(u.out, "✅ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) Warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(u.err, "⚠️ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) Error(format string, args ...any) {
	color.New(color.FgRed).Fprintf(u.err, "❌ %s\n", fmt.Sprintf(format, args...))
}

// Section prints a bold header.
func (u *ui) Section(title string) {
	color.New(color.FgMagenta, color.Bold).Fprintf(u.out, "━━━ %s ━━━\n", title)
}

// progressReporter draws one progress bar per phase.
type progressReporter struct {
	w     io.Writer
	ui    *ui
	phase converter.Phase
	bar   *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer, u *ui) *progressReporter {
	return &progressReporter{w: w, ui: u}
}

// Step implements converter.Reporter.
func (r *progressReporter) Step(p converter.Progress) {
	switch p.Phase {
	case converter.PhaseComplete:
		r.finish()
		r.ui.Success("%s", p.Message)
		return
	case converter.PhaseError:
		if r.bar != nil {
			_ = r.bar.Exit()
			r.bar = nil
		}
		r.ui.Error("%s", p.Message)
		return
	}

	if r.bar == nil || p.Phase != r.phase {
		r.finish()
		r.phase = p.Phase
		r.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(string(p.Phase)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(r.w, "\n")
			}),
		)
	}
	// Reports arrive before each unit, so the bar shows units finished.
	_ = r.bar.Set(p.Current - 1)
}

func (r *progressReporter) finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	r.bar = nil
}
