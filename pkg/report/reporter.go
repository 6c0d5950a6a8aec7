// Package report defines the dexit Reporter contract and a Broadcast
// facade that fans lifecycle events out to every registered reporter.
package report

import (
	"fmt"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/repository"
)

// Reporter receives run lifecycle events. Implementations must be safe
// for concurrent calls — the Runner drives tests and sibling test sets
// concurrently.
type Reporter interface {
	LogValidationErrors(errs []*repository.ValidationError)
	LogTestSetBegin(set *document.TestSetEntry)
	LogTestSetComplete(set *document.TestSetEntry, rep *document.TestSetReport)
	LogTestSetSkip(set *document.TestSetEntry)
	LogTestBegin(set *document.TestSetEntry, test *document.TestEntry)
	LogTestComplete(set *document.TestSetEntry, test *document.TestEntry, rep *document.TestReport)
	LogTestSkip(set *document.TestSetEntry, test *document.TestEntry)
	LogTaskBegin(set *document.TestSetEntry, test *document.TestEntry, task *document.Task)
	LogTaskComplete(set *document.TestSetEntry, test *document.TestEntry, task *document.Task, rep *document.TaskReport)
	GenerateReport(complete *document.CompleteReport)
}

// Broadcast forwards every call to each registered reporter, in
// registration order.
type Broadcast struct {
	reporters []Reporter
}

// NewBroadcast validates and wraps the given reporters.
func NewBroadcast(reporters ...Reporter) (*Broadcast, error) {
	for i, r := range reporters {
		if r == nil {
			return nil, fmt.Errorf("reporter at index %d is nil", i)
		}
	}
	return &Broadcast{reporters: reporters}, nil
}

func (b *Broadcast) LogValidationErrors(errs []*repository.ValidationError) {
	for _, r := range b.reporters {
		r.LogValidationErrors(errs)
	}
}

func (b *Broadcast) LogTestSetBegin(set *document.TestSetEntry) {
	for _, r := range b.reporters {
		r.LogTestSetBegin(set)
	}
}

func (b *Broadcast) LogTestSetComplete(set *document.TestSetEntry, rep *document.TestSetReport) {
	for _, r := range b.reporters {
		r.LogTestSetComplete(set, rep)
	}
}

func (b *Broadcast) LogTestSetSkip(set *document.TestSetEntry) {
	for _, r := range b.reporters {
		r.LogTestSetSkip(set)
	}
}

func (b *Broadcast) LogTestBegin(set *document.TestSetEntry, test *document.TestEntry) {
	for _, r := range b.reporters {
		r.LogTestBegin(set, test)
	}
}

func (b *Broadcast) LogTestComplete(set *document.TestSetEntry, test *document.TestEntry, rep *document.TestReport) {
	for _, r := range b.reporters {
		r.LogTestComplete(set, test, rep)
	}
}

func (b *Broadcast) LogTestSkip(set *document.TestSetEntry, test *document.TestEntry) {
	for _, r := range b.reporters {
		r.LogTestSkip(set, test)
	}
}

func (b *Broadcast) LogTaskBegin(set *document.TestSetEntry, test *document.TestEntry, task *document.Task) {
	for _, r := range b.reporters {
		r.LogTaskBegin(set, test, task)
	}
}

func (b *Broadcast) LogTaskComplete(set *document.TestSetEntry, test *document.TestEntry, task *document.Task, rep *document.TaskReport) {
	for _, r := range b.reporters {
		r.LogTaskComplete(set, test, task, rep)
	}
}

func (b *Broadcast) GenerateReport(complete *document.CompleteReport) {
	for _, r := range b.reporters {
		r.GenerateReport(complete)
	}
}
