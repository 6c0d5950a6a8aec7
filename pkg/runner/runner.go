// Package runner implements the dexit Runner: the ready/wait task
// scheduling protocol and the nested test/test-set execution that walks a
// resolved Repository tree.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/interp"
	"github.com/dexit-framework/dexit/pkg/module"
	"github.com/dexit-framework/dexit/pkg/report"
	"github.com/dexit-framework/dexit/pkg/repository"
)

// Runner walks a Repository's resolved tree, executing task lists through
// the ready/wait protocol and reporting lifecycle events.
type Runner struct {
	registry *module.Registry
	reporter report.Reporter
	repo     *repository.Repository
}

// New returns a Runner over repo, dispatching tasks through registry and
// reporting lifecycle events to reporter (pass a *report.Broadcast to
// fan out to several).
func New(repo *repository.Repository, registry *module.Registry, reporter report.Reporter) *Runner {
	return &Runner{registry: registry, reporter: reporter, repo: repo}
}

// Run executes every root test set concurrently and returns the aggregate
// report. ctx governs cancellation of the host process only — it is
// plumbed through to each command's Run, not a new scheduling primitive.
func (r *Runner) Run(ctx context.Context) *document.CompleteReport {
	start := time.Now()
	complete := &document.CompleteReport{Sets: map[string]*document.TestSetReport{}}

	rootCtx := document.NewRunContext()

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, set := range r.repo.GetTests() {
		wg.Add(1)
		go func(name string, set *document.TestSetEntry) {
			defer wg.Done()
			var rep *document.TestSetReport
			if set.Skip {
				r.reporter.LogTestSetSkip(set)
				rep = &document.TestSetReport{Set: set, SkippedCount: set.TestCount, Children: map[string]*document.TestSetReport{}}
			} else {
				rep = r.runTestSet(ctx, set, rootCtx)
			}
			mu.Lock()
			complete.Sets[name] = rep
			complete.ErrorCount += rep.ErrorCount
			complete.TestCount += rep.TestCount
			complete.SkippedCount += rep.SkippedCount
			mu.Unlock()
		}(name, set)
	}
	wg.Wait()

	complete.DurationSecs = time.Since(start).Seconds()
	r.reporter.GenerateReport(complete)
	return complete
}

// runTestSet executes one test set node: beforeAll, tests (sync or
// concurrent per executionOrder), children concurrently, afterAll.
func (r *Runner) runTestSet(ctx context.Context, set *document.TestSetEntry, parentCtx *document.RunContext) *document.TestSetReport {
	rctx := parentCtx.WithOverrides(set.Defaults, set.Params)
	rep := &document.TestSetReport{Set: set, Children: map[string]*document.TestSetReport{}}

	r.reporter.LogTestSetBegin(set)

	rep.BeforeAll = r.runTaskList(ctx, set, nil, set.BeforeAll, rctx)
	rep.ErrorCount += countErrors(rep.BeforeAll)

	if countErrors(rep.BeforeAll) == 0 {
		var mu sync.Mutex
		var wg sync.WaitGroup

		runOneTest := func(test *document.TestEntry) {
			if test.Skip {
				r.reporter.LogTestSkip(set, test)
				mu.Lock()
				rep.SkippedCount++
				mu.Unlock()
				return
			}
			testRep := r.runTest(ctx, set, test, rctx)
			mu.Lock()
			rep.Tests = append(rep.Tests, *testRep)
			rep.ErrorCount += testRep.ErrorCount
			rep.TestCount++
			mu.Unlock()
		}

		if set.Schema != nil && set.Schema.IsSync() {
			// Tests run one after another, but alongside the children below.
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range set.Tests {
					runOneTest(&set.Tests[i])
				}
			}()
		} else {
			for i := range set.Tests {
				wg.Add(1)
				test := &set.Tests[i]
				go func() {
					defer wg.Done()
					runOneTest(test)
				}()
			}
		}

		for name, child := range set.Children {
			wg.Add(1)
			go func(name string, child *document.TestSetEntry) {
				defer wg.Done()
				var childRep *document.TestSetReport
				if child.Skip {
					r.reporter.LogTestSetSkip(child)
					childRep = &document.TestSetReport{Set: child, SkippedCount: child.TestCount, Children: map[string]*document.TestSetReport{}}
				} else {
					childRep = r.runTestSet(ctx, child, rctx)
				}
				mu.Lock()
				rep.Children[name] = childRep
				rep.ErrorCount += childRep.ErrorCount
				rep.TestCount += childRep.TestCount
				rep.SkippedCount += childRep.SkippedCount
				mu.Unlock()
			}(name, child)
		}

		wg.Wait()
	}

	rep.AfterAll = r.runTaskList(ctx, set, nil, set.AfterAll, rctx)
	rep.ErrorCount += countErrors(rep.AfterAll)

	r.reporter.LogTestSetComplete(set, rep)
	return rep
}

// runTest executes one test: beforeEach, then (if beforeEach had no
// errors) the test's own tasks, then afterEach unconditionally.
func (r *Runner) runTest(ctx context.Context, set *document.TestSetEntry, test *document.TestEntry, parentCtx *document.RunContext) *document.TestReport {
	rctx := parentCtx.WithOverrides(test.Schema.Defaults, test.Schema.Params)
	rep := &document.TestReport{Test: test}

	r.reporter.LogTestBegin(set, test)

	rep.BeforeEachTasks = r.runTaskList(ctx, set, test, set.BeforeEach, rctx)
	rep.ErrorCount += countErrors(rep.BeforeEachTasks)

	if countErrors(rep.BeforeEachTasks) == 0 {
		rep.Tasks = r.runTaskList(ctx, set, test, test.Schema.Tasks, rctx)
		rep.ErrorCount += countErrors(rep.Tasks)
	}

	rep.AfterEachTasks = r.runTaskList(ctx, set, test, set.AfterEach, rctx)
	rep.ErrorCount += countErrors(rep.AfterEachTasks)

	r.reporter.LogTestComplete(set, test, rep)
	return rep
}

func countErrors(reports []document.TaskReport) int {
	n := 0
	for _, rep := range reports {
		n += len(rep.Errors)
	}
	return n
}

// ---------------------------------------------------------------------------
// Task list scheduling (the ready/wait protocol)
// ---------------------------------------------------------------------------

type scheduledTask struct {
	task      document.Task
	id        string
	runOrder  int
	waitOrder int
}

type planStep struct {
	id       string
	priority int
	isRun    bool
}

// pending tracks the in-flight state of one task across its run/wait
// steps.
type pending struct {
	readyCh chan struct{}
	readyOnce sync.Once
	doneCh  chan struct{}
	report  document.TaskReport
}

func (r *Runner) runTaskList(ctx context.Context, set *document.TestSetEntry, test *document.TestEntry, tasks []document.Task, rctx *document.RunContext) []document.TaskReport {
	if len(tasks) == 0 {
		return nil
	}

	scheduled := make([]scheduledTask, len(tasks))
	byID := make(map[string]*scheduledTask, len(tasks))
	for i, t := range tasks {
		id := taskID(t, i)
		scheduled[i] = scheduledTask{task: t, id: id, runOrder: i * 1000, waitOrder: i*1000 + 1}
		byID[id] = &scheduled[i]
	}
	for i := range scheduled {
		t := &scheduled[i]
		if t.task.RunBeforeAsync != "" {
			if target, ok := byID[t.task.RunBeforeAsync]; ok {
				t.runOrder = target.runOrder - 1
			}
		}
	}

	plan := make([]planStep, 0, len(scheduled)*2)
	for _, t := range scheduled {
		plan = append(plan, planStep{id: t.id, priority: t.runOrder, isRun: true})
		plan = append(plan, planStep{id: t.id, priority: t.waitOrder, isRun: false})
	}
	sort.SliceStable(plan, func(i, j int) bool { return plan[i].priority < plan[j].priority })

	pendingByID := make(map[string]*pending, len(scheduled))
	reports := make([]document.TaskReport, 0, len(scheduled))
	terminated := false

	for _, step := range plan {
		if terminated {
			break
		}
		t := byID[step.id]
		if step.isRun {
			p := &pending{readyCh: make(chan struct{}), doneCh: make(chan struct{})}
			pendingByID[step.id] = p
			taskCtx := context.WithValue(ctx, pendingContextKey{}, p)
			r.reporter.LogTaskBegin(set, test, &t.task)
			go func(t *scheduledTask, p *pending) {
				p.report = r.runTask(taskCtx, t.task, t.id, rctx)
				r.reporter.LogTaskComplete(set, test, &t.task, &p.report)
				close(p.doneCh)
			}(t, p)
			// The task's own run() calls notifyReady, which closes readyCh
			// via runTask's ReadyFunc; block here until it does (or until
			// the task finishes, for commands that never call it).
			select {
			case <-p.readyCh:
			case <-p.doneCh:
			}
		} else {
			p := pendingByID[step.id]
			<-p.doneCh
			reports = append(reports, p.report)
			if len(p.report.Errors) > 0 && !t.task.ContinueOnError {
				terminated = true
			}
		}
	}

	return reports
}

func taskID(t document.Task, index int) string {
	if t.ID != "" {
		return t.ID
	}
	return fmt.Sprintf("$_%d_#", index)
}

// ---------------------------------------------------------------------------
// Per-task processing
// ---------------------------------------------------------------------------

func (r *Runner) runTask(ctx context.Context, task document.Task, id string, rctx *document.RunContext) document.TaskReport {
	rep := document.TaskReport{Task: &task}

	moduleName, _ := module.ParseCommand(task.Do)
	_, cmd, ok := r.registry.GetCommand(task.Do)
	if !ok {
		rep.Errors = append(rep.Errors, fmt.Errorf("task %q: unknown command %q", id, task.Do))
		return rep
	}

	moduleDefaults := rctx.Defaults[moduleName]
	resolvedArgs, _ := interp.Resolve(rctx.Params, anyOrEmpty(task.Args)).(map[string]any)
	runArgs, _ := document.DeepMerge(toAny(moduleDefaults), toAny(resolvedArgs)).(map[string]any)
	expectArgs, _ := interp.Resolve(rctx.Params, anyOrEmpty(task.Expect)).(map[string]any)
	rep.RunArgs = runArgs
	rep.ExpectArgs = expectArgs

	// validation phase: only the command's own hooks run here. Schema
	// validation already ran once at load time against the task's raw,
	// pre-merge args (see repository.validateTaskList); re-running it here
	// against defaults-merged runArgs would reject any
	// additionalProperties:false command whose schema a TestSet's
	// defaults legitimately extend.
	for _, e := range cmd.ValidateArgsHook(runArgs) {
		rep.Errors = append(rep.Errors, e)
	}
	for _, e := range cmd.ValidateExpectHook(expectArgs) {
		rep.Errors = append(rep.Errors, e)
	}
	if len(rep.Errors) > 0 {
		return rep
	}

	rep.Label = taskLabel(task, cmd, runArgs, expectArgs)

	// run phase
	result, err := r.invokeRun(ctx, cmd, runArgs)
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Errorf("failed to execute task run: %v", err))
		return rep
	}
	rep.Result = result

	// expect phase
	if task.Expect != nil && cmd.Expect != nil {
		for _, e := range cmd.Expect(expectArgs, result) {
			rep.Errors = append(rep.Errors, e)
		}
	}

	// set phase
	if task.Set != nil {
		resolved := interp.Resolve(result, task.Set)
		if m, ok := resolved.(map[string]any); ok {
			rctx.SetParams(m)
		}
	}

	return rep
}

// invokeRun wires the command's notifyReady callback to the ready/wait
// protocol's latch via the pending entry tracked in runTaskList. Since
// runTask is invoked from a goroutine that already owns a *pending, the
// latch is threaded through a context value rather than a parameter to
// keep the module.RunFunc signature exactly as the Module Registry
// declares it.
func (r *Runner) invokeRun(ctx context.Context, cmd *module.Command, args map[string]any) (result any, err error) {
	p, _ := ctx.Value(pendingContextKey{}).(*pending)
	notifyReady := func() {
		if p != nil {
			p.readyOnce.Do(func() { close(p.readyCh) })
		}
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		notifyReady()
	}()
	return cmd.Run(ctx, args, notifyReady)
}

type pendingContextKey struct{}

func taskLabel(task document.Task, cmd *module.Command, runArgs, expectArgs map[string]any) string {
	if task.Description != "" {
		return task.Description
	}
	return cmd.Label(task.Do, runArgs, expectArgs)
}

func anyOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func toAny(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
