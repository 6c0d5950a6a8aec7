package debugger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/module"
	"github.com/dexit-framework/dexit/pkg/repository"
)

// buildTestRepo returns a Repository whose tree was assembled directly
// (bypassing document loading and schema validation) so debugger tests
// exercise only the navigation commands, not the loader.
func buildTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.New(module.NewRegistry())
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	api := &document.TestSetEntry{
		ID:       "$.api",
		Name:     "api",
		Tags:     []string{"svc"},
		Children: map[string]*document.TestSetEntry{},
		Tests: []document.TestEntry{
			{Schema: &document.Test{Name: "reaches"}},
		},
	}
	auth := &document.TestSetEntry{
		ID:       "$.api.auth",
		Name:     "auth",
		Tags:     []string{"svc", "auth"},
		Skip:     true,
		Children: map[string]*document.TestSetEntry{},
	}
	api.Children["auth"] = auth
	repo.Root.Children["api"] = api

	return repo
}

func TestDebuggerHandleHelp(t *testing.T) {
	var buf bytes.Buffer
	d := &Debugger{output: &buf}
	d.handleHelp()
	out := buf.String()
	for _, cmd := range []string{"ls", "cd", "show", "tags", "help", "quit"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

func TestDebuggerHandleLs_ListsChildrenAndTests(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleLs()
	if !strings.Contains(buf.String(), "api") {
		t.Errorf("ls output missing child %q: %s", "api", buf.String())
	}
}

func TestDebuggerHandleLs_ShowsSkipAndTestMarkers(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	node, _ := repo.Lookup("api")
	d := &Debugger{repo: repo, cwd: node, cwdPath: "$.api", output: &buf}
	d.handleLs()
	out := buf.String()
	if !strings.Contains(out, "auth/ (skip)") {
		t.Errorf("ls output missing skip marker: %s", out)
	}
	if !strings.Contains(out, "reaches [test]") {
		t.Errorf("ls output missing test entry: %s", out)
	}
}

func TestDebuggerHandleCd_MovesIntoChild(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleCd([]string{"cd", "api"})
	if d.cwdPath != "$.api" {
		t.Fatalf("cwdPath = %q, want %q", d.cwdPath, "$.api")
	}
	d.handleCd([]string{"cd", "auth"})
	if d.cwdPath != "$.api.auth" {
		t.Fatalf("cwdPath = %q, want %q", d.cwdPath, "$.api.auth")
	}
}

func TestDebuggerHandleCd_AbsolutePath(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleCd([]string{"cd", "api"})
	d.handleCd([]string{"cd", "$.api"})
	if d.cwdPath != "$.api" {
		t.Fatalf("cwdPath = %q, want %q", d.cwdPath, "$.api")
	}
}

func TestDebuggerHandleCd_UnknownNodeReportsErrorAndLeavesCwd(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleCd([]string{"cd", "nope"})
	if !strings.Contains(buf.String(), "No such node") {
		t.Errorf("expected 'No such node' message, got: %s", buf.String())
	}
	if d.cwdPath != "$" {
		t.Fatalf("cwdPath should be unchanged after failed cd, got %q", d.cwdPath)
	}
}

func TestDebuggerHandleTags_ShowsTagsForArgument(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleTags([]string{"tags", "api"})
	if !strings.Contains(buf.String(), "svc") {
		t.Errorf("tags output missing %q: %s", "svc", buf.String())
	}
}

func TestDebuggerHandleTags_NoTagsReportsPlaceholder(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleTags(nil)
	if !strings.Contains(buf.String(), "no tags") {
		t.Errorf("expected 'no tags' placeholder, got: %s", buf.String())
	}
}

func TestDebuggerHandleShow_DumpsJSON(t *testing.T) {
	repo := buildTestRepo(t)
	var buf bytes.Buffer
	d := &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: &buf}
	d.handleShow([]string{"show", "api"})
	if !strings.Contains(buf.String(), "\"ID\"") || !strings.Contains(buf.String(), "$.api") {
		t.Errorf("show output missing expected JSON content: %s", buf.String())
	}
}

func TestDebuggerBuildPrompt(t *testing.T) {
	d := &Debugger{cwdPath: "$.api"}
	if got := d.buildPrompt(); got != "dexit[$.api]> " {
		t.Fatalf("buildPrompt() = %q", got)
	}
}
