package runner

import (
	"context"
	"testing"
	"time"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/module"
	"github.com/dexit-framework/dexit/pkg/repository"
)

// noopReporter discards every event; tests assert against the returned
// CompleteReport instead.
type noopReporter struct{}

func (noopReporter) LogValidationErrors([]*repository.ValidationError)                       {}
func (noopReporter) LogTestSetBegin(*document.TestSetEntry)                                  {}
func (noopReporter) LogTestSetComplete(*document.TestSetEntry, *document.TestSetReport)      {}
func (noopReporter) LogTestSetSkip(*document.TestSetEntry)                                   {}
func (noopReporter) LogTestBegin(*document.TestSetEntry, *document.TestEntry)                {}
func (noopReporter) LogTestComplete(*document.TestSetEntry, *document.TestEntry, *document.TestReport) {
}
func (noopReporter) LogTestSkip(*document.TestSetEntry, *document.TestEntry) {}
func (noopReporter) LogTaskBegin(*document.TestSetEntry, *document.TestEntry, *document.Task) {}
func (noopReporter) LogTaskComplete(*document.TestSetEntry, *document.TestEntry, *document.Task, *document.TaskReport) {
}
func (noopReporter) GenerateReport(*document.CompleteReport) {}

func echoRegistry(t *testing.T) *module.Registry {
	t.Helper()
	reg := module.NewRegistry()
	mod := &module.Module{
		Name: "core",
		Commands: map[string]*module.Command{
			"echo": {
				ArgsSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"message": map[string]any{"type": "string"}},
				},
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					return args["message"], nil
				},
			},
			"fail": {
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					return nil, errFail
				},
			},
			"wrap": {
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					return map[string]any{"body": args}, nil
				},
			},
			"sleepy": {
				ArgsSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"ms": map[string]any{"type": "integer"}},
				},
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					ms, _ := args["ms"].(float64)
					time.Sleep(time.Duration(ms) * time.Millisecond)
					return "done", nil
				},
			},
		},
	}
	if err := reg.Register(mod); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errFail = staticErr("boom")

func buildRepo(t *testing.T, reg *module.Registry, docs ...document.TestDocument) *repository.Repository {
	t.Helper()
	repo, err := repository.New(reg)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if err := repo.LoadDocuments(docs, false); err != nil {
		t.Fatalf("load documents: %v", err)
	}
	repo.Build()
	return repo
}

func TestRun_SingleTestSetWithPassingTask(t *testing.T) {
	reg := echoRegistry(t)
	doc := document.TestDocument{
		Name:  "greet",
		Value: map[string]any{"name": "greet"},
		TestSet: document.TestSet{
			Name: "greet",
			Tests: []document.Test{
				{
					Name:        "says hi",
					Description: "says hi",
					Tasks: []document.Task{
						{Do: "core.echo", Args: map[string]any{"message": "hi"}},
					},
				},
			},
		},
	}
	repo := buildRepo(t, reg, doc)
	rep := New(repo, reg, noopReporter{}).Run(context.Background())

	if rep.ErrorCount != 0 {
		t.Fatalf("errorCount = %d, want 0", rep.ErrorCount)
	}
	if rep.TestCount != 1 {
		t.Fatalf("testCount = %d, want 1", rep.TestCount)
	}
	setRep := rep.Sets["greet"]
	if setRep == nil || len(setRep.Tests) != 1 {
		t.Fatalf("expected one test report, got %#v", setRep)
	}
	if setRep.Tests[0].Tasks[0].Result != "hi" {
		t.Fatalf("result = %#v, want \"hi\"", setRep.Tests[0].Tasks[0].Result)
	}
}

func TestRun_FailingTaskStopsListButAfterEachStillRuns(t *testing.T) {
	reg := echoRegistry(t)
	doc := document.TestDocument{
		Name:  "flaky",
		Value: map[string]any{"name": "flaky"},
		TestSet: document.TestSet{
			Name: "flaky",
			AfterEach: []document.Task{
				{ID: "cleanup", Do: "core.echo", Args: map[string]any{"message": "cleaned"}},
			},
			Tests: []document.Test{
				{
					Name:        "breaks",
					Description: "breaks",
					Tasks: []document.Task{
						{ID: "a", Do: "core.fail"},
						{ID: "b", Do: "core.echo", Args: map[string]any{"message": "never"}},
					},
				},
			},
		},
	}
	repo := buildRepo(t, reg, doc)
	rep := New(repo, reg, noopReporter{}).Run(context.Background())

	setRep := rep.Sets["flaky"]
	testRep := setRep.Tests[0]
	if len(testRep.Tasks) != 1 {
		t.Fatalf("expected only the failing task's report (list stopped), got %d", len(testRep.Tasks))
	}
	if len(testRep.Tasks[0].Errors) == 0 {
		t.Fatal("expected an error on the failing task")
	}
	if len(testRep.AfterEachTasks) != 1 || len(testRep.AfterEachTasks[0].Errors) != 0 {
		t.Fatalf("expected afterEach to still run cleanly, got %#v", testRep.AfterEachTasks)
	}
}

func TestRun_SkippedTestSetCountsTestsAsSkipped(t *testing.T) {
	reg := echoRegistry(t)
	doc := document.TestDocument{
		Name:  "off",
		Value: map[string]any{"name": "off"},
		TestSet: document.TestSet{
			Name: "off",
			Skip: true,
			Tests: []document.Test{
				{Name: "a", Description: "a", Tasks: []document.Task{{Do: "core.echo", Args: map[string]any{"message": "x"}}}},
				{Name: "b", Description: "b", Tasks: []document.Task{{Do: "core.echo", Args: map[string]any{"message": "y"}}}},
			},
		},
	}
	repo := buildRepo(t, reg, doc)
	rep := New(repo, reg, noopReporter{}).Run(context.Background())

	if rep.SkippedCount != 2 {
		t.Fatalf("skippedCount = %d, want 2", rep.SkippedCount)
	}
	if rep.TestCount != 0 {
		t.Fatalf("testCount = %d, want 0", rep.TestCount)
	}
}

func TestRun_SetParamFeedsLaterTask(t *testing.T) {
	reg := echoRegistry(t)
	doc := document.TestDocument{
		Name:  "chain",
		Value: map[string]any{"name": "chain"},
		TestSet: document.TestSet{
			Name: "chain",
			Tests: []document.Test{
				{
					Name:        "propagates",
					Description: "propagates",
					Tasks: []document.Task{
						{
							ID:   "first",
							Do:   "core.wrap",
							Args: map[string]any{"message": "seed"},
							Set:  map[string]any{"carried": "${body.message}"},
						},
						{
							ID:   "second",
							Do:   "core.echo",
							Args: map[string]any{"message": "${carried}"},
						},
					},
				},
			},
		},
	}
	repo := buildRepo(t, reg, doc)
	rep := New(repo, reg, noopReporter{}).Run(context.Background())

	testRep := rep.Sets["chain"].Tests[0]
	if testRep.Tasks[1].Result != "seed" {
		t.Fatalf("second task result = %#v, want \"seed\" (carried from first task's result via set)", testRep.Tasks[1].Result)
	}
}

func TestRun_DefaultsExtendingStrictSchemaDoesNotFailAtRuntime(t *testing.T) {
	reg := module.NewRegistry()
	mod := &module.Module{
		Name: "core",
		Commands: map[string]*module.Command{
			"echo": {
				ArgsSchema: map[string]any{
					"type":                 "object",
					"required":             []any{"message"},
					"properties":           map[string]any{"message": map[string]any{"type": "string"}},
					"additionalProperties": false,
				},
				Run: func(ctx context.Context, args map[string]any, notifyReady module.ReadyFunc) (any, error) {
					notifyReady()
					return args["message"], nil
				},
			},
		},
	}
	if err := reg.Register(mod); err != nil {
		t.Fatalf("register: %v", err)
	}

	doc := document.TestDocument{
		Name:  "greet",
		Value: map[string]any{"name": "greet"},
		TestSet: document.TestSet{
			Name:     "greet",
			Defaults: map[string]any{"core": map[string]any{"trace": true}},
			Tests: []document.Test{
				{
					Name:        "says-hi",
					Description: "says hi",
					Tasks: []document.Task{
						{Do: "core.echo", Args: map[string]any{"message": "hi"}},
					},
				},
			},
		},
	}
	repo := buildRepo(t, reg, doc)
	rep := New(repo, reg, noopReporter{}).Run(context.Background())

	testRep := rep.Sets["greet"].Tests[0]
	if len(testRep.Tasks[0].Errors) != 0 {
		t.Fatalf("task errors = %v, want none (defaults merged into a strict schema must not fail at runtime)", testRep.Tasks[0].Errors)
	}
	if testRep.Tasks[0].Result != "hi" {
		t.Fatalf("result = %#v, want \"hi\"", testRep.Tasks[0].Result)
	}
}

func TestRunTaskList_RunBeforeAsyncStartsEarlier(t *testing.T) {
	reg := echoRegistry(t)
	tasks := []document.Task{
		{ID: "a", Do: "core.sleepy", Args: map[string]any{"ms": 10}},
		{ID: "b", Do: "core.echo", Args: map[string]any{"message": "b-ran"}, RunBeforeAsync: "a"},
	}
	r := &Runner{registry: reg, reporter: noopReporter{}}
	rctx := document.NewRunContext()
	reports := r.runTaskList(context.Background(), nil, nil, tasks, rctx)

	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports[0].Task.ID != "a" || reports[1].Task.ID != "b" {
		t.Fatalf("wait order should follow declaration order regardless of runBeforeAsync start order: %#v", reports)
	}
}
