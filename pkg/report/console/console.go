// Package console implements a dexit Reporter that prints a
// human-readable, lipgloss-styled tree of test-set/test/task outcomes to
// an io.Writer (stdout by default).
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/report"
	"github.com/dexit-framework/dexit/pkg/repository"
)

func init() {
	report.RegisterFactory("console", func(config map[string]any) (report.Reporter, error) {
		return New(os.Stdout), nil
	})
}

// Status glyphs, matching the vocabulary used across dexit's terminal
// surfaces.
const (
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
	GlyphSkipped = "⏭"
	GlyphRunning = "▸"
)

var (
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("196")
	colorDim   = lipgloss.Color("240")
	colorCyan  = lipgloss.Color("51")
	colorWhite = lipgloss.Color("255")

	setStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	passedStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	skippedStyle = lipgloss.NewStyle().Faint(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	labelStyle   = lipgloss.NewStyle().Foreground(colorWhite)
)

// Reporter prints a tree of lifecycle events to w as they arrive.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, s)
}

func (r *Reporter) LogValidationErrors(errs []*repository.ValidationError) {
	for _, e := range errs {
		r.println(failedStyle.Render(GlyphFailed) + " " + dimStyle.Render(e.Error()))
	}
}

func (r *Reporter) LogTestSetBegin(set *document.TestSetEntry) {
	r.println(setStyle.Render(set.ID))
}

func (r *Reporter) LogTestSetComplete(set *document.TestSetEntry, rep *document.TestSetReport) {
	summary := fmt.Sprintf("%s  tests=%d errors=%d skipped=%d", set.ID, rep.TestCount, rep.ErrorCount, rep.SkippedCount)
	if rep.ErrorCount > 0 {
		r.println(failedStyle.Render(GlyphFailed) + " " + summary)
	} else {
		r.println(passedStyle.Render(GlyphPassed) + " " + summary)
	}
}

func (r *Reporter) LogTestSetSkip(set *document.TestSetEntry) {
	r.println(skippedStyle.Render(GlyphSkipped + " " + set.ID + " (skipped)"))
}

func (r *Reporter) LogTestBegin(set *document.TestSetEntry, test *document.TestEntry) {
	r.println("  " + dimStyle.Render(GlyphRunning) + " " + labelStyle.Render(testName(test)))
}

func (r *Reporter) LogTestComplete(set *document.TestSetEntry, test *document.TestEntry, rep *document.TestReport) {
	line := "  " + testName(test)
	if rep.ErrorCount > 0 {
		r.println(failedStyle.Render(GlyphFailed+" "+line))
	} else {
		r.println(passedStyle.Render(GlyphPassed+" "+line))
	}
}

func (r *Reporter) LogTestSkip(set *document.TestSetEntry, test *document.TestEntry) {
	r.println("  " + skippedStyle.Render(GlyphSkipped+" "+testName(test)+" (skipped)"))
}

func (r *Reporter) LogTaskBegin(set *document.TestSetEntry, test *document.TestEntry, task *document.Task) {
	// Silent: task-level detail is only surfaced on completion, to avoid
	// two lines per task in the common all-passing case.
}

func (r *Reporter) LogTaskComplete(set *document.TestSetEntry, test *document.TestEntry, task *document.Task, rep *document.TaskReport) {
	label := rep.Label
	if label == "" {
		label = task.Do
	}
	line := "    " + label
	if len(rep.Errors) > 0 {
		r.println(failedStyle.Render(GlyphFailed + " " + line))
		for _, e := range rep.Errors {
			r.println("      " + dimStyle.Render(e.Error()))
		}
		return
	}
	r.println(passedStyle.Render(GlyphPassed + " " + line))
}

func (r *Reporter) GenerateReport(complete *document.CompleteReport) {
	bar := strings.Repeat("─", 40)
	r.println(dimStyle.Render(bar))
	summary := fmt.Sprintf("tests=%d errors=%d skipped=%d duration=%.2fs",
		complete.TestCount, complete.ErrorCount, complete.SkippedCount, complete.DurationSecs)
	if complete.ErrorCount > 0 {
		r.println(failedStyle.Render(summary))
	} else {
		r.println(passedStyle.Render(summary))
	}
}

func testName(test *document.TestEntry) string {
	if test == nil || test.Schema == nil {
		return ""
	}
	return test.Schema.Name
}
