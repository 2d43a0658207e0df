package workload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Runner executes the benchmark.
type Runner interface {
	// Run executes one scored run and returns its combined output lines.
	Run(ctx context.Context, kind Kind, n, nb int) ([]string, error)
	// Warmup executes an unscored run with its output sent to out.
	Warmup(ctx context.Context, kind Kind, n, nb int, out io.Writer) error
}

// ExecRunner runs benchmark commands through sh.
type ExecRunner struct {
	commands *CommandBuilder
	tempPath string
	logger   *slog.Logger
}

// NewExecRunner captures the output of scored runs in tempPath.
func NewExecRunner(commands *CommandBuilder, tempPath string, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{commands: commands, tempPath: tempPath, logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, kind Kind, n, nb int) ([]string, error) {
	cmdline, err := r.commands.Command(kind, n, nb)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(r.tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create workload output file: %w", err)
	}

	runErr := r.exec(ctx, cmdline, out)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}

	return readLines(r.tempPath)
}

func (r *ExecRunner) Warmup(ctx context.Context, kind Kind, n, nb int, out io.Writer) error {
	cmdline, err := r.commands.Command(kind, n, nb)
	if err != nil {
		return err
	}
	return r.exec(ctx, cmdline, out)
}

// exec runs cmdline with stdout and stderr sent to w. A non-zero exit is
// logged but not an error: the output decides whether the run counts.
func (r *ExecRunner) exec(ctx context.Context, cmdline string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Stdout = w
	cmd.Stderr = w

	start := time.Now()
	r.logger.Info("running workload", "command", cmdline)

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		r.logger.Warn("workload exited with error", "exit_code", exitErr.ExitCode())
	default:
		return fmt.Errorf("failed to run workload: %w", err)
	}

	r.logger.Info("workload finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload output: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read workload output: %w", err)
	}
	return lines, nil
}
