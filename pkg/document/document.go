// Package document defines the dexit test-document data model: the raw
// schema decoded from YAML, and the resolved TestSetEntry tree the
// Repository produces after inheritance.
package document

// TestDocument is a single parsed YAML document plus its provenance.
// Immutable after load.
type TestDocument struct {
	Name     string // dotted namespace name derived from the path relative to the tests root
	Path     string // absolute path on disk
	Value    map[string]any // raw decoded YAML, used for schema validation
	TestSet  TestSet
}

// TestSet is the schema-level (pre-inheritance) form of a namespace node.
type TestSet struct {
	Name           string         `yaml:"name" json:"name"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Tags           []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Defaults       map[string]any `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Params         map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	BeforeAll      []Task         `yaml:"beforeAll,omitempty" json:"beforeAll,omitempty"`
	AfterAll       []Task         `yaml:"afterAll,omitempty" json:"afterAll,omitempty"`
	BeforeEach     []Task         `yaml:"beforeEach,omitempty" json:"beforeEach,omitempty"`
	AfterEach      []Task         `yaml:"afterEach,omitempty" json:"afterEach,omitempty"`
	ExecutionOrder string         `yaml:"executionOrder,omitempty" json:"executionOrder,omitempty"` // "async" | "sync"
	Skip           bool           `yaml:"skip,omitempty" json:"skip,omitempty"`
	Tests          []Test         `yaml:"tests,omitempty" json:"tests,omitempty"`
}

// Test is a named ordered sequence of Tasks.
type Test struct {
	Name        string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description string         `yaml:"description" json:"description"`
	Tags        []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Defaults    map[string]any `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Params      map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Skip        bool           `yaml:"skip,omitempty" json:"skip,omitempty"`
	Tasks       []Task         `yaml:"tasks" json:"tasks"`
}

// Task is a single invocation of a module command.
type Task struct {
	ID              string         `yaml:"id,omitempty" json:"id,omitempty"`
	Description     string         `yaml:"description,omitempty" json:"description,omitempty"`
	Do              string         `yaml:"do" json:"do"`
	Args            map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
	Expect          map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`
	Set             map[string]any `yaml:"set,omitempty" json:"set,omitempty"`
	RunBeforeAsync  string         `yaml:"runBeforeAsync,omitempty" json:"runBeforeAsync,omitempty"`
	ContinueOnError bool           `yaml:"continueOnError,omitempty" json:"continueOnError,omitempty"`
}

// ExecutionOrderAsync / ExecutionOrderSync are the two legal values of
// TestSet.ExecutionOrder. Empty is treated as ExecutionOrderAsync.
const (
	ExecutionOrderAsync = "async"
	ExecutionOrderSync  = "sync"
)

// IsSync reports whether the test set's tests run sequentially.
func (t *TestSet) IsSync() bool {
	return t.ExecutionOrder == ExecutionOrderSync
}

// ---------------------------------------------------------------------------
// Resolved tree
// ---------------------------------------------------------------------------

// PathSegment is one component of a TestSetEntry's dotted path.
type PathSegment = string

// TestSetEntry is the post-inheritance, resolved form of a TestSet.
type TestSetEntry struct {
	ID          string                   // fully-qualified, e.g. "$.api.auth"
	Name        string                   // local name, e.g. "auth"
	PathSegs    []PathSegment            // ["api", "auth"]
	Schema      *TestSet                 // nil for synthetic/placeholder nodes
	Tags        []string                 // merged parent ⊕ own
	Defaults    map[string]any           // own only
	Params      map[string]any           // own only
	BeforeAll   []Task                   // own only
	AfterAll    []Task                   // own only
	BeforeEach  []Task                   // accumulated: parent's ⧺ own
	AfterEach   []Task                   // accumulated: parent's ⧺ own
	Skip        bool                     // parent.Skip OR own.Skip
	Children    map[string]*TestSetEntry // keyed by local name
	Tests       []TestEntry
	TestCount   int // computed: len(Tests) + sum(children.TestCount)
}

// TestEntry is the post-inheritance form of a Test.
type TestEntry struct {
	Schema *Test
	Tags   []string       // node.Tags ⧺ test.Schema.Tags
	Skip   bool           // node.Skip OR test.Schema.Skip
}

// NewRoot constructs the synthetic root entry with id "$" and no path.
func NewRoot() *TestSetEntry {
	return &TestSetEntry{
		ID:       "$",
		Name:     "",
		PathSegs: nil,
		Children: make(map[string]*TestSetEntry),
	}
}

// Child returns (creating if absent) the direct child keyed by name,
// extending this entry's path by one segment. Newly created children
// are placeholders: Schema is nil until claimed by a document.
func (e *TestSetEntry) Child(name string) *TestSetEntry {
	if e.Children == nil {
		e.Children = make(map[string]*TestSetEntry)
	}
	c, ok := e.Children[name]
	if ok {
		return c
	}
	segs := make([]PathSegment, len(e.PathSegs), len(e.PathSegs)+1)
	copy(segs, e.PathSegs)
	segs = append(segs, name)
	c = &TestSetEntry{
		ID:       e.ID + "." + name,
		Name:     name,
		PathSegs: segs,
		Children: make(map[string]*TestSetEntry),
	}
	if e.ID == "$" {
		c.ID = "$." + name
	}
	e.Children[name] = c
	return c
}
