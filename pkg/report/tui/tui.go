// Package tui implements a dexit Reporter that drives a live Bubble Tea
// program showing a spinner with the current test, one progress bar over
// completed test sets, and passed/failed test counts as lifecycle events
// arrive, with a glamour-rendered markdown summary on completion.
// Task-level events do not change the view.
package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/report"
	"github.com/dexit-framework/dexit/pkg/repository"
)

func init() {
	report.RegisterFactory("tui", func(config map[string]any) (report.Reporter, error) {
		return New(), nil
	})
}

var renderer *glamour.TermRenderer

func init() {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(0))
	if err == nil {
		renderer = r
	}
}

func renderMarkdown(md string) string {
	if renderer == nil || strings.TrimSpace(md) == "" {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// --- Tea messages, one per Reporter call ---

type setBeginMsg struct{ id string }
type setCompleteMsg struct {
	id                            string
	errorCount, testCount, skip   int
}
type testBeginMsg struct{ name string }
type testCompleteMsg struct {
	name       string
	errorCount int
}
type taskCompleteMsg struct {
	label string
	ok    bool
}
type reportMsg struct{ complete *document.CompleteReport }

// --- Model ---

type model struct {
	spinner    spinner.Model
	bar        progress.Model
	activeSets int
	doneSets   int
	currentSet string
	current    string
	passed     int
	failed     int
	done       bool
	summary    string
}

func newModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	return model{spinner: s, bar: progress.New(progress.WithDefaultGradient())}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case setBeginMsg:
		m.activeSets++
		m.currentSet = msg.id
		return m, nil
	case setCompleteMsg:
		m.doneSets++
		return m, nil
	case testBeginMsg:
		m.current = msg.name
		return m, nil
	case testCompleteMsg:
		if msg.errorCount == 0 {
			m.passed++
		} else {
			m.failed++
		}
		return m, nil
	case taskCompleteMsg:
		return m, nil
	case reportMsg:
		m.done = true
		m.summary = renderSummary(msg.complete)
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return m.summary
	}
	frac := 0.0
	if total := m.activeSets; total > 0 {
		frac = float64(m.doneSets) / float64(total)
	}
	return fmt.Sprintf("%s running %s\n%s passed=%d failed=%d\n",
		m.spinner.View(), m.current, m.bar.ViewAs(frac), m.passed, m.failed)
}

func renderSummary(c *document.CompleteReport) string {
	status := "PASSED"
	if c.ErrorCount > 0 {
		status = "FAILED"
	}
	md := fmt.Sprintf("# %s\n\n- tests: %d\n- errors: %d\n- skipped: %d\n- duration: %.2fs\n",
		status, c.TestCount, c.ErrorCount, c.SkippedCount, c.DurationSecs)
	return renderMarkdown(md)
}

// --- Reporter ---

// Reporter drives a Bubble Tea program, forwarding every lifecycle call
// as a message and blocking GenerateReport until the program exits.
type Reporter struct {
	mu       sync.Mutex
	program  *tea.Program
	doneCh   chan struct{}
}

// New starts the Bubble Tea program in the background and returns a
// Reporter that feeds it.
func New() *Reporter {
	p := tea.NewProgram(newModel())
	r := &Reporter{program: p, doneCh: make(chan struct{})}
	go func() {
		_, _ = p.Run()
		close(r.doneCh)
	}()
	return r
}

func (r *Reporter) LogValidationErrors(errs []*repository.ValidationError) {}

func (r *Reporter) LogTestSetBegin(set *document.TestSetEntry) {
	r.program.Send(setBeginMsg{id: set.ID})
}

func (r *Reporter) LogTestSetComplete(set *document.TestSetEntry, rep *document.TestSetReport) {
	r.program.Send(setCompleteMsg{id: set.ID, errorCount: rep.ErrorCount, testCount: rep.TestCount, skip: rep.SkippedCount})
}

func (r *Reporter) LogTestSetSkip(set *document.TestSetEntry) {}

func (r *Reporter) LogTestBegin(set *document.TestSetEntry, test *document.TestEntry) {
	r.program.Send(testBeginMsg{name: testName(test)})
}

func (r *Reporter) LogTestComplete(set *document.TestSetEntry, test *document.TestEntry, rep *document.TestReport) {
	r.program.Send(testCompleteMsg{name: testName(test), errorCount: rep.ErrorCount})
}

func (r *Reporter) LogTestSkip(set *document.TestSetEntry, test *document.TestEntry) {}

func (r *Reporter) LogTaskBegin(set *document.TestSetEntry, test *document.TestEntry, task *document.Task) {
}

func (r *Reporter) LogTaskComplete(set *document.TestSetEntry, test *document.TestEntry, task *document.Task, rep *document.TaskReport) {
	label := rep.Label
	if label == "" {
		label = task.Do
	}
	r.program.Send(taskCompleteMsg{label: label, ok: len(rep.Errors) == 0})
}

// GenerateReport sends the final report to the program and blocks until
// it has rendered the summary and exited.
func (r *Reporter) GenerateReport(complete *document.CompleteReport) {
	r.program.Send(reportMsg{complete: complete})
	<-r.doneCh
}

func testName(test *document.TestEntry) string {
	if test == nil || test.Schema == nil {
		return ""
	}
	return test.Schema.Name
}
