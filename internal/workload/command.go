package workload

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/haskel/codvfs/internal/config"
)

// CommandBuilder renders the shell command of a benchmark run.
type CommandBuilder struct {
	cfg       config.WorkloadConfig
	outputDir string
}

func NewCommandBuilder(cfg config.WorkloadConfig, outputDir string) (*CommandBuilder, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	return &CommandBuilder{cfg: cfg, outputDir: abs}, nil
}

// Command returns the command line for kind with problem size n and
// block size nb. A configured command template wins over the generated one.
func (b *CommandBuilder) Command(kind Kind, n, nb int) (string, error) {
	app, ok := b.cfg.Apps[kind.String()]
	if !ok {
		return "", fmt.Errorf("no workload configured for %q", kind)
	}

	if app.Command != "" {
		r := strings.NewReplacer("{N}", strconv.Itoa(n), "{NB}", strconv.Itoa(nb))
		return r.Replace(app.Command), nil
	}

	bench := fmt.Sprintf("%s -n %d -b %d", app.Binary, n, nb)
	if !b.cfg.Docker {
		return bench, nil
	}

	parts := []string{"docker run --rm --gpus all"}
	if b.cfg.MountOutput {
		parts = append(parts, fmt.Sprintf("-v %s:/out", b.outputDir))
	}
	parts = append(parts, app.Image, bench)
	return strings.Join(parts, " "), nil
}
