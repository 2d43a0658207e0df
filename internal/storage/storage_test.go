package storage

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/tuner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func entry(phase tuner.Phase, index int, cpu, gpu, score float64) Entry {
	return Entry{
		Phase:       phase,
		Index:       index,
		Observation: tuner.Observation{Candidate: tuner.Candidate{CPU: cpu, GPU: gpu}, Score: score},
	}
}

func TestStorage_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir, "hplai", false, time.Second, testLogger())

	s.SetHost(monitor.HostInfo{Hostname: "gpu01", LogicalCores: 64})
	s.SetClockOffset(1500 * time.Microsecond)
	s.Record(entry(tuner.PhaseSeed, 0, 2.2, 1.44, 40))
	s.Record(entry(tuner.PhaseSeed, 1, 1.2, 0.135, 55))
	s.Record(entry(tuner.PhaseIterate, 0, 1.7, 0.8, 50))
	s.Finish(nil)

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(filepath.Join(tmpDir, "summary_hplai.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.App != "hplai" || got.QuickTest {
		t.Errorf("unexpected header: %+v", got)
	}
	if len(got.Observations) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(got.Observations))
	}
	if got.Observations[2].Phase != tuner.PhaseIterate || got.Observations[2].Candidate.CPU != 1.7 {
		t.Errorf("unexpected entry: %+v", got.Observations[2])
	}
	if got.Best == nil || got.Best.Score != 55 {
		t.Errorf("expected best score 55, got %+v", got.Best)
	}
	if got.Host == nil || got.Host.Hostname != "gpu01" {
		t.Errorf("host not saved: %+v", got.Host)
	}
	if got.ClockOffsetMS == nil || *got.ClockOffsetMS != 1.5 {
		t.Errorf("clock offset not saved: %v", got.ClockOffsetMS)
	}
	if got.FinishedAt == nil || got.Error != "" {
		t.Errorf("expected a clean finish, got %v %q", got.FinishedAt, got.Error)
	}
}

func TestStorage_FinishWithError(t *testing.T) {
	s := New(t.TempDir(), "hpl", true, time.Second, testLogger())
	s.Finish(errors.New("cholesky failed"))

	snap := s.Snapshot()
	if snap.Error != "cholesky failed" || !snap.QuickTest {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStorage_SnapshotIsACopy(t *testing.T) {
	s := New(t.TempDir(), "hpl", false, time.Second, testLogger())
	s.Record(entry(tuner.PhaseSeed, 0, 1.2, 0.135, 1))

	snap := s.Snapshot()
	snap.Observations[0].Score = 99

	if s.Snapshot().Observations[0].Score != 1 {
		t.Error("snapshot shares state with storage")
	}
}

func TestLoad_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(filepath.Join(tmpDir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	corrupted := filepath.Join(tmpDir, "corrupted.json")
	if err := os.WriteFile(corrupted, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(corrupted); err == nil {
		t.Error("expected decode error")
	}

	future := filepath.Join(tmpDir, "future.json")
	if err := os.WriteFile(future, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(future); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected %v, got %v", ErrUnsupportedVersion, err)
	}
}

func TestStorage_IsDirty(t *testing.T) {
	s := New(t.TempDir(), "hplai", false, time.Second, testLogger())

	if s.IsDirty() {
		t.Error("expected not dirty initially")
	}

	s.Record(entry(tuner.PhaseSeed, 0, 1.2, 0.135, 1))

	if !s.IsDirty() {
		t.Error("expected dirty after record")
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if s.IsDirty() {
		t.Error("expected not dirty after save")
	}
}

func TestStorage_PeriodicFlush(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir, "hplai", false, 20*time.Millisecond, testLogger())

	s.Start(context.Background())
	s.Record(entry(tuner.PhaseSeed, 0, 1.2, 0.135, 1))

	time.Sleep(100 * time.Millisecond)

	// written by the flush loop, before Stop
	got, err := Load(s.Path())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Observations) != 1 {
		t.Errorf("expected 1 observation, got %d", len(got.Observations))
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStorage_GracefulShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir, "hplai", false, time.Hour, testLogger())

	s.Start(context.Background())
	s.Record(entry(tuner.PhaseSeed, 0, 1.2, 0.135, 1))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got, err := Load(s.Path())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Observations) != 1 {
		t.Errorf("expected 1 observation after graceful shutdown, got %d", len(got.Observations))
	}
}

func TestStorage_AtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir, "hplai", false, time.Second, testLogger())

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not exist after save")
	}
	if _, err := os.Stat(s.Path()); os.IsNotExist(err) {
		t.Error("summary file should exist after save")
	}
}

func TestStorage_SaveNonFinitePower(t *testing.T) {
	s := New(t.TempDir(), "hpl", false, time.Second, testLogger())
	e := entry(tuner.PhaseSeed, 0, 2.2, 1.44, 0)
	e.PowerW = Watts(math.NaN())
	s.Record(e)
	ok := entry(tuner.PhaseSeed, 1, 1.2, 0.135, 3)
	ok.PowerW = Watts(410.5)
	s.Record(ok)

	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(s.Path())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Observations[0].PowerW != nil {
		t.Errorf("NaN power persisted as %v", *loaded.Observations[0].PowerW)
	}
	if p := loaded.Observations[1].PowerW; p == nil || *p != 410.5 {
		t.Errorf("power = %v, want 410.5", p)
	}
}
