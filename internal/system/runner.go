// Package system wraps the privileged OS side effects behind an injectable
// command runner so handlers can be exercised without touching the host.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Runner executes OS commands. Handlers depend on this interface rather
// than os/exec directly.
type Runner interface {
	// Run executes a command and returns its exit error, if any.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its combined stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// Shell executes a command line through the shell. Used for operator
	// configured scripts.
	Shell(ctx context.Context, command string) error
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// Output executes a command and captures stdout
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Shell executes a command line via sh -c
func (r *ExecRunner) Shell(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sh -c %q: %w", command, err)
	}
	return nil
}

// Command records a single invocation against the mock runner
type Command struct {
	Name  string
	Args  []string
	Shell bool
	Time  time.Time
}

// String returns the command line form used for matching scripted results
func (c Command) String() string {
	if c.Shell {
		return c.Name
	}
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// MockRunner implements Runner for testing. It records every invocation
// and returns scripted errors/outputs keyed by the full command line.
type MockRunner struct {
	mu       sync.Mutex
	commands []Command
	errors   map[string]error
	outputs  map[string]string
}

// NewMockRunner creates a new mock runner
func NewMockRunner() *MockRunner {
	return &MockRunner{
		errors:  make(map[string]error),
		outputs: make(map[string]string),
	}
}

// SetError scripts an error for the given command line
func (m *MockRunner) SetError(commandLine string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[commandLine] = err
}

// SetOutput scripts stdout for the given command line
func (m *MockRunner) SetOutput(commandLine, out string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[commandLine] = out
}

// Run records the invocation and returns any scripted error
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := Command{Name: name, Args: args, Time: time.Now()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.errors[cmd.String()]
}

// Output records the invocation and returns any scripted output
func (m *MockRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := Command{Name: name, Args: args, Time: time.Now()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.outputs[cmd.String()], m.errors[cmd.String()]
}

// Shell records the invocation and returns any scripted error
func (m *MockRunner) Shell(ctx context.Context, command string) error {
	cmd := Command{Name: command, Shell: true, Time: time.Now()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.errors[command]
}

// Commands returns all recorded invocations
func (m *MockRunner) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmds := make([]Command, len(m.commands))
	copy(cmds, m.commands)
	return cmds
}

// ClearCommands resets the recorded invocations
func (m *MockRunner) ClearCommands() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

// FindCommand returns true if a command line was invoked
func (m *MockRunner) FindCommand(commandLine string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cmd := range m.commands {
		if cmd.String() == commandLine {
			return true
		}
	}
	return false
}

// CountCommands counts invocations of the given command line
func (m *MockRunner) CountCommands(commandLine string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, cmd := range m.commands {
		if cmd.String() == commandLine {
			count++
		}
	}
	return count
}
