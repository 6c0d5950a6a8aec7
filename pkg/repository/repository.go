// Package repository builds the resolved TestSetEntry tree from a set of
// loaded documents: schema validation, path-splitting into the namespace
// tree, and top-down propagation of tags, defaults, hooks, and skip.
package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/module"
	"github.com/dexit-framework/dexit/pkg/testschema"
)

// ValidationError describes one failure encountered while loading or
// building the repository. ID is empty when the failure occurred before a
// document could be placed in the tree (e.g. schema validation).
type ValidationError struct {
	ID      string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s", e.ID, e.Message)
	}
	return e.Message
}

// LoadError aggregates every ValidationError from a LoadDocuments call
// that was configured to fail on invalid input.
type LoadError struct {
	Errors []*ValidationError
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%d document(s) failed validation", len(e.Errors))
}

// Repository holds the resolved namespace tree rooted at "$".
type Repository struct {
	Root     *document.TestSetEntry
	registry *module.Registry
	schema   *sjsonschema.Schema
	errors   []*ValidationError
}

// New compiles the composed schema from registry and returns an empty
// repository ready to load documents into.
func New(registry *module.Registry) (*Repository, error) {
	composed, err := testschema.New(registry).Compose()
	if err != nil {
		return nil, fmt.Errorf("compose schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("dexit://testset.json", composed); err != nil {
		return nil, fmt.Errorf("add composed schema resource: %w", err)
	}
	schema, err := c.Compile("dexit://testset.json")
	if err != nil {
		return nil, fmt.Errorf("compile composed schema: %w", err)
	}

	return &Repository{
		Root:     document.NewRoot(),
		registry: registry,
		schema:   schema,
	}, nil
}

// Errors returns every ValidationError accumulated across LoadDocuments
// calls so far.
func (r *Repository) Errors() []*ValidationError {
	return r.errors
}

// LoadDocuments validates and places each document in the tree. When
// ignoreInvalid is false and any document failed, the whole load fails
// with a *LoadError carrying the accumulated errors; placements from
// documents that did validate are still left in the tree either way.
func (r *Repository) LoadDocuments(docs []document.TestDocument, ignoreInvalid bool) error {
	for _, doc := range docs {
		if err := r.loadTestSet(doc); err != nil {
			r.errors = append(r.errors, err)
		}
	}
	if !ignoreInvalid && len(r.errors) > 0 {
		return &LoadError{Errors: r.errors}
	}
	return nil
}

func (r *Repository) loadTestSet(doc document.TestDocument) *ValidationError {
	if err := r.validateAgainstSchema(doc.Value); err != nil {
		return &ValidationError{Message: fmt.Sprintf("%s: %v", doc.Path, err)}
	}

	segments := strings.Split(doc.Name, ".")
	node := r.Root
	for _, seg := range segments {
		node = node.Child(seg)
	}

	if node.Schema != nil {
		return &ValidationError{ID: node.ID, Message: fmt.Sprintf("duplicate test set name %q (source %s)", doc.Name, doc.Path)}
	}

	set := doc.TestSet
	if errs := r.validateTaskList(node.ID, set.BeforeAll); len(errs) > 0 {
		return errs[0]
	}
	if errs := r.validateTaskList(node.ID, set.AfterAll); len(errs) > 0 {
		return errs[0]
	}
	if errs := r.validateTaskList(node.ID, set.BeforeEach); len(errs) > 0 {
		return errs[0]
	}
	if errs := r.validateTaskList(node.ID, set.AfterEach); len(errs) > 0 {
		return errs[0]
	}

	tests := make([]document.TestEntry, 0, len(set.Tests))
	for i := range set.Tests {
		test := &set.Tests[i]
		if errs := r.validateTaskList(node.ID, test.Tasks); len(errs) > 0 {
			return errs[0]
		}
		tests = append(tests, document.TestEntry{Schema: test, Tags: test.Tags, Skip: test.Skip})
	}

	node.Schema = &set
	node.Tests = tests
	node.Tags = set.Tags
	node.Defaults = set.Defaults
	node.Params = set.Params
	node.BeforeAll = set.BeforeAll
	node.AfterAll = set.AfterAll
	node.BeforeEach = set.BeforeEach
	node.AfterEach = set.AfterEach
	node.Skip = set.Skip
	return nil
}

// validateTaskList checks that every task's "do" resolves to a registered
// command, validates args/expect against that command's schemas, and
// ensures any runBeforeAsync target names a task in the same list (the
// task itself included).
func (r *Repository) validateTaskList(nodeID string, tasks []document.Task) []*ValidationError {
	ids := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		ids[taskID(t, i)] = true
	}

	var errs []*ValidationError
	for i, t := range tasks {
		_, cmd, ok := r.registry.GetCommand(t.Do)
		if !ok {
			errs = append(errs, &ValidationError{ID: nodeID, Message: fmt.Sprintf("task %q: unknown command %q", taskID(t, i), t.Do)})
			continue
		}
		for _, e := range cmd.ValidateArgsAgainstSchema(t.Args) {
			errs = append(errs, &ValidationError{ID: nodeID, Message: fmt.Sprintf("task %q: args: %v", taskID(t, i), e)})
		}
		for _, e := range cmd.ValidateExpectAgainstSchema(t.Expect) {
			errs = append(errs, &ValidationError{ID: nodeID, Message: fmt.Sprintf("task %q: expect: %v", taskID(t, i), e)})
		}
		if t.RunBeforeAsync != "" && !ids[t.RunBeforeAsync] {
			errs = append(errs, &ValidationError{ID: nodeID, Message: fmt.Sprintf("task %q: runBeforeAsync target %q not found in this task list", taskID(t, i), t.RunBeforeAsync)})
		}
	}
	errs = append(errs, detectRunBeforeAsyncCycles(nodeID, tasks)...)
	return errs
}

// detectRunBeforeAsyncCycles rejects mutual runBeforeAsync references
// between two distinct tasks. A task naming itself is explicitly legal
// (it just schedules its run step immediately before its own wait step);
// only a 2-cycle between two different tasks is undefined and refused.
func detectRunBeforeAsyncCycles(nodeID string, tasks []document.Task) []*ValidationError {
	targetOf := make(map[string]string, len(tasks))
	for i, t := range tasks {
		if t.RunBeforeAsync != "" {
			targetOf[taskID(t, i)] = t.RunBeforeAsync
		}
	}
	var errs []*ValidationError
	for id, target := range targetOf {
		if target == id {
			continue
		}
		if back, ok := targetOf[target]; ok && back == id {
			errs = append(errs, &ValidationError{ID: nodeID, Message: fmt.Sprintf("tasks %q and %q mutually reference each other via runBeforeAsync", id, target)})
		}
	}
	return errs
}

func taskID(t document.Task, index int) string {
	if t.ID != "" {
		return t.ID
	}
	return fmt.Sprintf("$_%d_#", index)
}

func (r *Repository) validateAgainstSchema(value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return err
	}
	return r.schema.Validate(normalized)
}

// Build performs the top-down propagation of tags, defaults, hooks, and
// skip described for the namespace tree, and computes TestCount bottom-up.
func (r *Repository) Build() {
	buildChildren(r.Root)
}

func buildChildren(parent *document.TestSetEntry) {
	for _, node := range parent.Children {
		propagate(parent, node)
		buildChildren(node)
		node.TestCount = len(node.Tests)
		for _, child := range node.Children {
			node.TestCount += child.TestCount
		}
	}
}

// propagate folds parent into node. node may be a placeholder with no
// Schema of its own (an intermediate dotted-name segment claimed by no
// document); in that case it contributes nothing and simply passes its
// parent's accumulated tags/skip/hooks through to its children.
func propagate(parent, node *document.TestSetEntry) {
	var ownTags []string
	var ownBeforeEach, ownAfterEach []document.Task
	var ownSkip bool
	if node.Schema != nil {
		ownTags = node.Schema.Tags
		ownBeforeEach = node.Schema.BeforeEach
		ownAfterEach = node.Schema.AfterEach
		ownSkip = node.Schema.Skip
		node.Defaults = node.Schema.Defaults
		node.Params = node.Schema.Params
		node.BeforeAll = node.Schema.BeforeAll
		node.AfterAll = node.Schema.AfterAll
	}

	node.Tags = append(append([]string{}, parent.Tags...), ownTags...)
	node.BeforeEach = append(append([]document.Task{}, parent.BeforeEach...), ownBeforeEach...)
	node.AfterEach = append(append([]document.Task{}, parent.AfterEach...), ownAfterEach...)
	node.Skip = parent.Skip || ownSkip

	for i := range node.Tests {
		te := &node.Tests[i]
		te.Tags = append(append([]string{}, node.Tags...), te.Schema.Tags...)
		te.Skip = node.Skip || te.Schema.Skip
	}
}

// GetTests returns the root's immediate children.
func (r *Repository) GetTests() map[string]*document.TestSetEntry {
	return r.Root.Children
}

// Lookup resolves a dotted namespace id (e.g. "api.auth") to its node.
func (r *Repository) Lookup(id string) (*document.TestSetEntry, bool) {
	if id == "" || id == "$" {
		return r.Root, true
	}
	node := r.Root
	for _, seg := range strings.Split(id, ".") {
		child, ok := node.Children[seg]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}
