package hardware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Executor runs one external command to completion.
type Executor interface {
	Exec(ctx context.Context, name string, args ...string) error
}

// CommandExecutor runs commands, optionally through sudo, with their
// output appended to a shared log.
type CommandExecutor struct {
	sudo bool
	out  io.Writer
	mu   sync.Mutex
}

func NewCommandExecutor(sudo bool, out io.Writer) *CommandExecutor {
	if out == nil {
		out = io.Discard
	}
	return &CommandExecutor{sudo: sudo, out: out}
}

func (e *CommandExecutor) Exec(ctx context.Context, name string, args ...string) error {
	if e.sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = e.out
	cmd.Stderr = e.out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", commandLine(name, args), err)
	}
	return nil
}

// DryRunExecutor logs commands instead of running them and remembers
// what it was asked to do.
type DryRunExecutor struct {
	logger *slog.Logger

	mu       sync.Mutex
	commands []string
}

func NewDryRunExecutor(logger *slog.Logger) *DryRunExecutor {
	return &DryRunExecutor{logger: logger}
}

func (e *DryRunExecutor) Exec(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := commandLine(name, args)
	e.logger.Info("dry run", "command", line)

	e.mu.Lock()
	e.commands = append(e.commands, line)
	e.mu.Unlock()
	return nil
}

// Commands returns the command lines seen so far.
func (e *DryRunExecutor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.commands))
	copy(out, e.commands)
	return out
}

func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
