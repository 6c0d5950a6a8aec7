// Package jsonreport implements a dexit Reporter that writes one
// newline-delimited JSON event per lifecycle call, followed by the final
// CompleteReport document, for CI consumption.
package jsonreport

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/report"
	"github.com/dexit-framework/dexit/pkg/repository"
)

func init() {
	report.RegisterFactory("json", func(config map[string]any) (report.Reporter, error) {
		path, _ := config["path"].(string)
		if path == "" {
			return New(os.Stdout), nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return New(f), nil
	})
}

// EventType names the kind of a single emitted line.
type EventType string

const (
	EventValidationErrors EventType = "validation_errors"
	EventSetBegin         EventType = "set_begin"
	EventSetComplete      EventType = "set_complete"
	EventSetSkip          EventType = "set_skip"
	EventTestBegin        EventType = "test_begin"
	EventTestComplete     EventType = "test_complete"
	EventTestSkip         EventType = "test_skip"
	EventTaskBegin        EventType = "task_begin"
	EventTaskComplete     EventType = "task_complete"
	EventReport           EventType = "report"
)

// Event is one line of the NDJSON stream.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Reporter writes NDJSON lifecycle events to w, then the final
// CompleteReport as the last line.
type Reporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// New returns a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{enc: json.NewEncoder(w)}
}

func (r *Reporter) emit(t EventType, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(Event{Type: t, Timestamp: time.Now().UTC(), Data: data})
}

func (r *Reporter) LogValidationErrors(errs []*repository.ValidationError) {
	r.emit(EventValidationErrors, errs)
}

func (r *Reporter) LogTestSetBegin(set *document.TestSetEntry) {
	r.emit(EventSetBegin, map[string]any{"id": set.ID})
}

func (r *Reporter) LogTestSetComplete(set *document.TestSetEntry, rep *document.TestSetReport) {
	r.emit(EventSetComplete, map[string]any{
		"id":            set.ID,
		"error_count":   rep.ErrorCount,
		"test_count":    rep.TestCount,
		"skipped_count": rep.SkippedCount,
	})
}

func (r *Reporter) LogTestSetSkip(set *document.TestSetEntry) {
	r.emit(EventSetSkip, map[string]any{"id": set.ID})
}

func (r *Reporter) LogTestBegin(set *document.TestSetEntry, test *document.TestEntry) {
	r.emit(EventTestBegin, map[string]any{"set": set.ID, "test": testName(test)})
}

func (r *Reporter) LogTestComplete(set *document.TestSetEntry, test *document.TestEntry, rep *document.TestReport) {
	r.emit(EventTestComplete, map[string]any{
		"set":         set.ID,
		"test":        testName(test),
		"error_count": rep.ErrorCount,
	})
}

func (r *Reporter) LogTestSkip(set *document.TestSetEntry, test *document.TestEntry) {
	r.emit(EventTestSkip, map[string]any{"set": set.ID, "test": testName(test)})
}

func (r *Reporter) LogTaskBegin(set *document.TestSetEntry, test *document.TestEntry, task *document.Task) {
	r.emit(EventTaskBegin, map[string]any{"set": set.ID, "test": testName(test), "do": task.Do})
}

func (r *Reporter) LogTaskComplete(set *document.TestSetEntry, test *document.TestEntry, task *document.Task, rep *document.TaskReport) {
	errs := make([]string, len(rep.Errors))
	for i, e := range rep.Errors {
		errs[i] = e.Error()
	}
	r.emit(EventTaskComplete, map[string]any{
		"set":    set.ID,
		"test":   testName(test),
		"do":     task.Do,
		"label":  rep.Label,
		"errors": errs,
	})
}

func (r *Reporter) GenerateReport(complete *document.CompleteReport) {
	r.emit(EventReport, complete)
}

func testName(test *document.TestEntry) string {
	if test == nil || test.Schema == nil {
		return ""
	}
	return test.Schema.Name
}
