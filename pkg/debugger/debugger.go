// Package debugger implements a read-only interactive REPL for
// inspecting a resolved Repository's namespace tree before committing
// to a run. It never invokes the Runner.
package debugger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dexit-framework/dexit/pkg/document"
	"github.com/dexit-framework/dexit/pkg/repository"
)

// Debugger is a REPL over an already-built Repository tree.
type Debugger struct {
	repo    *repository.Repository
	cwd     *document.TestSetEntry
	cwdPath string
	output  io.Writer
}

// New creates a debugger positioned at the root of repo's tree. repo
// must already have had Build called on it.
func New(repo *repository.Repository) *Debugger {
	return &Debugger{repo: repo, cwd: repo.Root, cwdPath: "$", output: os.Stdout}
}

// Run starts the interactive REPL loop.
func (d *Debugger) Run() error {
	commands := []string{"ls", "cd", "show", "tags", "help", "quit"}
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(d.output, "dexit debugger — read-only namespace inspector\n")
	fmt.Fprintf(d.output, "Type 'help' for available commands.\n\n")

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "ls":
			d.handleLs()
		case "cd":
			d.handleCd(parts)
		case "show":
			d.handleShow(parts)
		case "tags":
			d.handleTags(parts)
		case "help", "?":
			d.handleHelp()
		case "quit", "q":
			fmt.Fprintln(d.output, "Exiting debugger.")
			return nil
		default:
			fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
		}
	}
}

// buildPrompt creates the prompt string: dexit[current-id]>
func (d *Debugger) buildPrompt() string {
	return fmt.Sprintf("dexit[%s]> ", d.cwdPath)
}

// resolve interprets id relative to the current working node: an id
// starting with "$" is absolute, otherwise it is joined onto cwdPath.
func (d *Debugger) resolve(id string) string {
	if id == "" || id == "$" || strings.HasPrefix(id, "$.") {
		return id
	}
	if d.cwdPath == "$" {
		return "$." + id
	}
	return d.cwdPath + "." + id
}

func (d *Debugger) handleLs() {
	names := make([]string, 0, len(d.cwd.Children))
	for name := range d.cwd.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := d.cwd.Children[name]
		marker := "/"
		if child.Skip {
			marker += " (skip)"
		}
		fmt.Fprintf(d.output, "  %s%s\n", name, marker)
	}
	for i := range d.cwd.Tests {
		t := &d.cwd.Tests[i]
		name := "<unnamed>"
		if t.Schema != nil {
			name = t.Schema.Name
		}
		marker := ""
		if t.Skip {
			marker = " (skip)"
		}
		fmt.Fprintf(d.output, "  %s [test]%s\n", name, marker)
	}
}

func (d *Debugger) handleCd(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(d.output, "Usage: cd <id>")
		return
	}
	id := d.resolve(parts[1])
	node, ok := d.repo.Lookup(strings.TrimPrefix(id, "$."))
	if !ok {
		fmt.Fprintf(d.output, "No such node: %q\n", parts[1])
		return
	}
	d.cwd = node
	d.cwdPath = node.ID
	if d.cwdPath == "" {
		d.cwdPath = "$"
	}
}

func (d *Debugger) handleShow(parts []string) {
	target := d.cwd
	if len(parts) >= 2 {
		id := d.resolve(parts[1])
		node, ok := d.repo.Lookup(strings.TrimPrefix(id, "$."))
		if !ok {
			fmt.Fprintf(d.output, "No such node: %q\n", parts[1])
			return
		}
		target = node
	}
	data, err := json.MarshalIndent(target, "", "  ")
	if err != nil {
		fmt.Fprintf(d.output, "Error marshaling node: %v\n", err)
		return
	}
	fmt.Fprintln(d.output, string(data))
}

func (d *Debugger) handleTags(parts []string) {
	target := d.cwd
	if len(parts) >= 2 {
		id := d.resolve(parts[1])
		node, ok := d.repo.Lookup(strings.TrimPrefix(id, "$."))
		if !ok {
			fmt.Fprintf(d.output, "No such node: %q\n", parts[1])
			return
		}
		target = node
	}
	if len(target.Tags) == 0 {
		fmt.Fprintln(d.output, "(no tags)")
		return
	}
	fmt.Fprintln(d.output, strings.Join(target.Tags, ", "))
}

func (d *Debugger) handleHelp() {
	fmt.Fprintln(d.output, "Available commands:")
	fmt.Fprintln(d.output, "  ls            List the current node's children and tests")
	fmt.Fprintln(d.output, "  cd <id>       Move to a child node (absolute ids start with '$')")
	fmt.Fprintln(d.output, "  show [id]     Dump a node's resolved state as JSON (default: current node)")
	fmt.Fprintln(d.output, "  tags [id]     Show a node's merged tags (default: current node)")
	fmt.Fprintln(d.output, "  help (?)      Show this help")
	fmt.Fprintln(d.output, "  quit (q)      Exit debugger")
}
