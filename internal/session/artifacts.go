package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/results"
)

// Artifacts are the files a session writes. The session closes them
// during cleanup.
type Artifacts struct {
	Dir        string
	Raw        *os.File
	Results    results.Multi
	ResultPath string
	PowerPaths []string
	TempPath   string
}

// OpenArtifacts creates the output directory, the raw log and the result
// sinks for app. Files of a previous session of the same app are
// truncated, except the power logs, which only ever grow.
func OpenArtifacts(ctx context.Context, cfg *config.Config, app string, logger *slog.Logger) (*Artifacts, error) {
	dir := cfg.Session.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	a := &Artifacts{
		Dir:        dir,
		ResultPath: filepath.Join(dir, fmt.Sprintf("bayes_%s.csv", app)),
		TempPath:   filepath.Join(dir, "bayes_temp.out"),
		PowerPaths: PowerLogPaths(cfg, app),
	}

	raw, err := os.Create(filepath.Join(dir, fmt.Sprintf("bayes_%s_raw.out", app)))
	if err != nil {
		return nil, fmt.Errorf("failed to create raw log: %w", err)
	}
	a.Raw = raw

	csv, err := results.NewCSVSink(a.ResultPath)
	if err != nil {
		raw.Close()
		return nil, err
	}
	a.Results = results.Multi{csv}

	if cfg.Results.MySQLDSN != "" {
		db, err := results.NewMySQLSink(ctx, cfg.Results.MySQLDSN, cfg.Results.MySQLTable)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Results = append(a.Results, db)
		logger.Info("mysql result sink enabled", "table", cfg.Results.MySQLTable)
	}

	return a, nil
}

// PowerLogPaths returns the power log of every configured meter, in
// meter order.
func PowerLogPaths(cfg *config.Config, app string) []string {
	paths := make([]string, len(cfg.Power.Meters))
	for i, m := range cfg.Power.Meters {
		paths[i] = filepath.Join(cfg.Session.OutputDir, fmt.Sprintf("power_bayes_%s_%s.out", app, m.Name))
	}
	return paths
}

// Close flushes and closes every result sink and the raw log.
func (a *Artifacts) Close() error {
	var errs []error
	if a.Results != nil {
		errs = append(errs, a.Results.Close())
	}
	if a.Raw != nil {
		errs = append(errs, a.Raw.Close())
	}
	return errors.Join(errs...)
}
