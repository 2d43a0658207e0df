package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/lattice"
	"github.com/haskel/codvfs/internal/power"
	"github.com/haskel/codvfs/internal/results"
	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/tuner"
	"github.com/haskel/codvfs/internal/workload"
)

type mockHardware struct {
	mock.Mock
}

func (m *mockHardware) Apply(ctx context.Context, cpuGHz float64, memMHz, gfxMHz int) error {
	return m.Called(cpuGHz, memMHz, gfxMHz).Error(0)
}

func (m *mockHardware) Reset(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockHardware) Manual(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockHardware) Automatic(ctx context.Context) error {
	return m.Called().Error(0)
}

type mockSampler struct {
	mock.Mock
}

func (m *mockSampler) Start(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockSampler) Stop() error {
	return m.Called().Error(0)
}

// scriptedRunner replays outputs in order; calls past the script reuse
// the last entry.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs []runOutput
	calls   int
	warmups int
}

type runOutput struct {
	lines []string
	err   error
	panic bool
}

func (r *scriptedRunner) Run(ctx context.Context, kind workload.Kind, n, nb int) ([]string, error) {
	r.mu.Lock()
	out := r.outputs[min(r.calls, len(r.outputs)-1)]
	r.calls++
	r.mu.Unlock()

	if out.panic {
		panic("benchmark exploded")
	}
	return out.lines, out.err
}

func (r *scriptedRunner) Warmup(ctx context.Context, kind workload.Kind, n, nb int, out io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warmups++
	return nil
}

type fixedAggregator struct {
	watts float64
}

func (a fixedAggregator) Average(w power.Window) (power.Reading, error) {
	if !w.Valid() {
		return power.Reading{}, power.ErrInvalidWindow
	}
	return power.Reading{Total: a.watts, Meters: []power.MeterAverage{{Watts: a.watts, Samples: 10}}}, nil
}

var goodOutput = runOutput{lines: []string{
	"2021-12-03 02:00:00",
	"2021-12-03 02:01:00",
	"HPL_AI       WR03L2L2  204800   896     1     1        60.00   1.000e+03",
}}

var garbageOutput = runOutput{lines: []string{"Segmentation fault"}}

type fixture struct {
	cfg      *config.Config
	hw       *mockHardware
	sampler  *mockSampler
	runner   *scriptedRunner
	summary  *storage.Storage
	session  *Session
	artifact *Artifacts
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, quick bool, outputs ...runOutput) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Session.OutputDir = t.TempDir()
	cfg.Session.QuickTest = quick
	cfg.Session.Iterations = 3
	cfg.Session.SettleDelayMS = 0
	cfg.Power.Meters = []config.MeterConfig{{Name: "pdu0", Type: "static", Watts: 500}}
	cfg.Optimizer.Strategy = "random"
	cfg.Optimizer.RandomSearch = 50
	cfg.Optimizer.FitRestarts = 1
	cfg.Optimizer.RandomSeed = 7

	lat, err := lattice.New(LatticeSpec(cfg.Hardware))
	require.NoError(t, err)

	artifacts, err := OpenArtifacts(context.Background(), cfg, "hplai", testLogger())
	require.NoError(t, err)

	f := &fixture{
		cfg:      cfg,
		hw:       &mockHardware{},
		sampler:  &mockSampler{},
		runner:   &scriptedRunner{outputs: outputs},
		summary:  storage.New(cfg.Session.OutputDir, "hplai", quick, time.Hour, testLogger()),
		artifact: artifacts,
	}
	if len(outputs) == 0 {
		f.runner.outputs = []runOutput{goodOutput}
	}

	f.session, err = New(Options{
		Config:     cfg,
		Kind:       workload.HPLAI,
		Lattice:    lat,
		Artifacts:  artifacts,
		Setter:     f.hw,
		Governor:   f.hw,
		Runner:     f.runner,
		Sampler:    f.sampler,
		Aggregator: fixedAggregator{watts: 500},
		Parser:     workload.Parser{TimingPrefix: "20", Location: time.UTC},
		Summary:    f.summary,
		Logger:     testLogger(),
		Sleep:      func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) expectLifecycle() {
	f.sampler.On("Start").Return(nil).Once()
	f.sampler.On("Stop").Return(nil).Once()
	f.hw.On("Manual").Return(nil).Once()
	f.hw.On("Automatic").Return(nil).Once()
	f.hw.On("Reset").Return(nil).Once()
}

func resultRows(t *testing.T, f *fixture) []string {
	t.Helper()
	data, err := os.ReadFile(f.artifact.ResultPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, results.Header, lines[0])
	return lines[1:]
}

func TestSession_QuickTestScores(t *testing.T) {
	f := newFixture(t, true)
	f.expectLifecycle()

	report, err := f.session.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.History, 4+3)
	scores := map[tuner.Candidate]float64{}
	for _, obs := range report.History {
		scores[obs.Candidate] = obs.Score
	}
	assert.Equal(t, 2.0, scores[tuner.Candidate{CPU: 2.2, GPU: 1.44}])
	assert.Equal(t, 0.0, scores[tuner.Candidate{CPU: 1.2, GPU: 0.135}])
	assert.Equal(t, 2.0, report.Best.Score)

	assert.Zero(t, f.runner.calls, "quick test must not run the workload")
	assert.Zero(t, f.runner.warmups, "quick test skips the warm-up")
	f.hw.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, resultRows(t, f), "quick test writes no result rows")
	assert.Nil(t, f.session.Entries()[0].PowerW)

	f.hw.AssertExpectations(t)
	f.sampler.AssertExpectations(t)
	assert.Equal(t, StateFinished, f.session.Progress().State)
}

func TestSession_ScoresEfficiency(t *testing.T) {
	f := newFixture(t, false)
	f.expectLifecycle()
	f.hw.On("Apply", mock.Anything, 810, mock.Anything).Return(nil)

	report, err := f.session.Run(context.Background())
	require.NoError(t, err)

	// 1000 Gflops at 500 W
	for _, obs := range report.History {
		assert.Equal(t, 2.0, obs.Score)
	}
	assert.Equal(t, 1, f.runner.warmups)
	assert.Equal(t, 7, f.runner.calls)

	rows := resultRows(t, f)
	require.Len(t, rows, 7)
	assert.Equal(t, "2.2,1440,1000,500.0,2.00,60.00,204800,896", rows[0])

	f.hw.AssertNumberOfCalls(t, "Apply", 7)
	f.hw.AssertCalled(t, "Apply", 2.2, 810, 1440)
	f.hw.AssertExpectations(t)
	f.sampler.AssertExpectations(t)

	entries := f.session.Entries()
	require.Len(t, entries, 7)
	assert.Equal(t, tuner.PhaseSeed, entries[0].Phase)
	assert.Equal(t, tuner.PhaseIterate, entries[6].Phase)
	require.NotNil(t, entries[0].PowerW)
	assert.Equal(t, 500.0, *entries[0].PowerW)
}

func TestSession_ParseFailureScoresZero(t *testing.T) {
	f := newFixture(t, false, garbageOutput, goodOutput)
	f.expectLifecycle()
	f.hw.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	report, err := f.session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.History[0].Score)
	assert.Equal(t, 2.0, report.History[1].Score)

	rows := resultRows(t, f)
	assert.Equal(t, "2.2,1440,-1,NaN,0.00,-1.00,204800,896", rows[0])
	assert.Nil(t, f.session.Entries()[0].PowerW)
}

func TestSession_IterateFailureCleansUpOnce(t *testing.T) {
	boom := errors.New("docker daemon not running")
	f := newFixture(t, false, goodOutput, goodOutput, goodOutput, goodOutput, runOutput{err: boom})
	f.expectLifecycle()
	f.hw.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.session.Run(context.Background())
	require.ErrorIs(t, err, boom)

	f.hw.AssertNumberOfCalls(t, "Automatic", 1)
	f.hw.AssertNumberOfCalls(t, "Reset", 1)
	f.sampler.AssertNumberOfCalls(t, "Stop", 1)
	f.hw.AssertExpectations(t)

	// a second cleanup is a no-op
	assert.NoError(t, f.session.cleanup(context.Background(), nil))
	f.hw.AssertNumberOfCalls(t, "Automatic", 1)

	progress := f.session.Progress()
	assert.Equal(t, StateFailed, progress.State)
	assert.Equal(t, 4, progress.Evaluations)

	summary, err := storage.Load(f.summary.Path())
	require.NoError(t, err)
	assert.Len(t, summary.Observations, 4)
	assert.Contains(t, summary.Error, boom.Error())
}

func TestSession_CleanupErrorDoesNotMaskCause(t *testing.T) {
	boom := errors.New("workload failed")
	restore := errors.New("cpupower: permission denied")

	f := newFixture(t, false, runOutput{err: boom})
	f.sampler.On("Start").Return(nil)
	f.sampler.On("Stop").Return(nil)
	f.hw.On("Manual").Return(nil)
	f.hw.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.hw.On("Automatic").Return(restore).Once()
	f.hw.On("Reset").Return(nil).Once()

	_, err := f.session.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, restore)
	f.hw.AssertExpectations(t)
}

func TestSession_CleanupErrorReturnedOnSuccess(t *testing.T) {
	restore := errors.New("nvidia-smi: not found")

	f := newFixture(t, true)
	f.sampler.On("Start").Return(nil)
	f.sampler.On("Stop").Return(nil)
	f.hw.On("Manual").Return(nil)
	f.hw.On("Automatic").Return(nil)
	f.hw.On("Reset").Return(restore).Once()

	_, err := f.session.Run(context.Background())
	require.ErrorIs(t, err, restore)
}

func TestSession_PanicStillCleansUp(t *testing.T) {
	f := newFixture(t, false, runOutput{panic: true})
	f.expectLifecycle()
	f.hw.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	assert.Panics(t, func() {
		_, _ = f.session.Run(context.Background())
	})

	f.hw.AssertExpectations(t)
	f.sampler.AssertExpectations(t)
}

func TestSession_SamplerStartFailure(t *testing.T) {
	f := newFixture(t, false)
	f.sampler.On("Start").Return(errors.New("permission denied")).Once()
	f.sampler.On("Stop").Return(nil).Once()
	f.hw.On("Automatic").Return(nil).Once()
	f.hw.On("Reset").Return(nil).Once()

	_, err := f.session.Run(context.Background())
	require.Error(t, err)

	f.hw.AssertNotCalled(t, "Manual")
	f.hw.AssertExpectations(t)
}

func TestEfficiency(t *testing.T) {
	tests := []struct {
		gflops, watts, want float64
	}{
		{1000, 500, 2},
		{1000, 0, 0},
		{1000, -5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, efficiency(tt.gflops, tt.watts))
	}
	assert.Equal(t, 0.0, efficiency(1000, nanWatts()))
}

func nanWatts() float64 {
	var zero float64
	return zero / zero
}
