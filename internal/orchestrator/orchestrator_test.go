package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"normalizer/internal/config"
	"normalizer/internal/contenthash"
	"normalizer/internal/progress"
	"normalizer/internal/resultcache"
	"normalizer/internal/services"
	"normalizer/internal/testsupport"
)

type fakeRunner struct {
	lufs       float64
	analyses   []string
	transforms []string
	gains      []float64
	failOn     string
	analyzeErr error
}

func (f *fakeRunner) Analyze(ctx context.Context, input string) (progress.Measurements, error) {
	f.analyses = append(f.analyses, input)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return progress.Measurements{progress.MetricIntegratedLUFS: f.lufs, progress.MetricPeakDBFS: -1}, nil
}

func (f *fakeRunner) Transform(ctx context.Context, format, input, output string, gain float64) error {
	f.transforms = append(f.transforms, output)
	f.gains = append(f.gains, gain)
	if err := os.WriteFile(output, []byte("encoded"), 0o644); err != nil {
		return err
	}
	if input == f.failOn {
		return services.Wrap(services.ErrAbnormalTermination, "ffmpeg", "diagnostics", "Error: disk full", nil)
	}
	return nil
}

func newOrchestrator(t *testing.T, runner Runner, cache *resultcache.Cache, opts Options) *Orchestrator {
	t.Helper()
	hasher, err := contenthash.New(config.HashBlake3)
	if err != nil {
		t.Fatal(err)
	}
	return New(runner, cache, hasher, opts)
}

func transformJob(dir, name string) Job {
	return Job{
		Input:  filepath.Join(dir, name+".flac"),
		Output: filepath.Join(dir, "out", name+".m4a"),
		Kind:   KindTransform,
		Format: config.FormatAAC,
		Params: Params{TargetLUFS: -16},
	}
}

func TestIdenticalContentAnalyzedOnce(t *testing.T) {
	dir := t.TempDir()
	a, b := transformJob(dir, "a"), transformJob(dir, "b")
	testsupport.WriteFile(t, a.Input, 512, 'x')
	testsupport.WriteFile(t, b.Input, 512, 'x')

	runner := &fakeRunner{lufs: -20.04}
	report, err := newOrchestrator(t, runner, nil, Options{}).Run(context.Background(), []Job{a, b})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(runner.analyses) != 1 || len(runner.transforms) != 2 {
		t.Fatalf("expected one analysis and two transforms, got %d/%d", len(runner.analyses), len(runner.transforms))
	}
	for _, g := range runner.gains {
		if g != 4.0 {
			t.Fatalf("expected gain 4.0, got %v", runner.gains)
		}
	}
	if report.Analyses != 1 || report.Transforms != 2 || report.CacheHits != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !report.Outcomes[1].CacheHit || report.Outcomes[0].Key != report.Outcomes[1].Key {
		t.Fatalf("second job should hit the cache with the same key: %+v", report.Outcomes)
	}
}

func TestCachedGainSkipsAnalysis(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "song")
	testsupport.WriteFile(t, job.Input, 64, 'q')

	hasher, _ := contenthash.New(config.HashBlake3)
	key, err := hasher.File(job.Input)
	if err != nil {
		t.Fatal(err)
	}
	cache, err := resultcache.Open(filepath.Join(dir, "volumes.db"), resultcache.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Store(key, -2.5); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	if _, err := New(runner, cache, hasher, Options{}).Run(context.Background(), []Job{job}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(runner.analyses) != 0 {
		t.Fatalf("expected no analysis, got %v", runner.analyses)
	}
	if runner.gains[0] != -2.5 {
		t.Fatalf("expected cached gain, got %v", runner.gains)
	}
}

func TestTransformFailureRemovesOutputAndStopsBatch(t *testing.T) {
	dir := t.TempDir()
	jobs := []Job{transformJob(dir, "a"), transformJob(dir, "b"), transformJob(dir, "c")}
	for i, job := range jobs {
		testsupport.WriteFile(t, job.Input, 128, byte('a'+i))
	}

	runner := &fakeRunner{lufs: -16, failOn: jobs[1].Input}
	report, err := newOrchestrator(t, runner, nil, Options{}).Run(context.Background(), jobs)
	if !errors.Is(err, services.ErrAbnormalTermination) {
		t.Fatalf("expected abnormal termination, got %v", err)
	}
	if _, statErr := os.Stat(jobs[1].Output); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat err=%v", statErr)
	}
	if _, statErr := os.Stat(jobs[0].Output); statErr != nil {
		t.Fatalf("completed output should remain: %v", statErr)
	}
	if len(runner.transforms) != 2 {
		t.Fatalf("later jobs must be skipped, got %v", runner.transforms)
	}
	failed, ok := report.Failed()
	if !ok || failed.Job.Input != jobs[1].Input {
		t.Fatalf("unexpected failed outcome %+v", failed)
	}
}

func TestAnalysisFailureStopsBatch(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "a")
	testsupport.WriteFile(t, job.Input, 16, 'z')
	runner := &fakeRunner{analyzeErr: services.ErrBinaryNotFound}
	_, err := newOrchestrator(t, runner, nil, Options{}).Run(context.Background(), []Job{job})
	if !errors.Is(err, services.ErrBinaryNotFound) || len(runner.transforms) != 0 {
		t.Fatalf("expected analysis failure without transforms, got %v", err)
	}
}

func TestEmptyInputRejected(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "empty")
	if err := os.WriteFile(job.Input, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{}
	_, err := newOrchestrator(t, runner, nil, Options{}).Run(context.Background(), []Job{job})
	if !errors.Is(err, services.ErrValidation) || len(runner.analyses) != 0 {
		t.Fatalf("expected validation error before any tool runs, got %v", err)
	}
}

func TestDryRunAnalyzesButDoesNotTransform(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "a")
	testsupport.WriteFile(t, job.Input, 32, 'd')
	runner := &fakeRunner{lufs: -19}
	report, err := newOrchestrator(t, runner, nil, Options{DryRun: true}).Run(context.Background(), []Job{job})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(runner.analyses) != 1 || len(runner.transforms) != 0 {
		t.Fatalf("dry run should analyze only, got %d/%d", len(runner.analyses), len(runner.transforms))
	}
	if !report.Outcomes[0].DryRun || report.Outcomes[0].Gain != 3.0 {
		t.Fatalf("unexpected outcome %+v", report.Outcomes[0])
	}
	if _, err := os.Stat(filepath.Dir(job.Output)); !os.IsNotExist(err) {
		t.Fatal("dry run must not create output directories")
	}
}

func TestSkipAnalysisDryRun(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "a")
	testsupport.WriteFile(t, job.Input, 32, 'd')
	runner := &fakeRunner{}
	report, err := newOrchestrator(t, runner, nil, Options{DryRun: true, SkipAnalysis: true}).Run(context.Background(), []Job{job})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(runner.analyses) != 0 || report.Outcomes[0].GainKnown {
		t.Fatalf("expected no analysis and unknown gain, got %+v", report.Outcomes[0])
	}
}

func TestGainOverrideSkipsCache(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "a")
	gain := 1.5
	job.Params.Gain = &gain
	testsupport.WriteFile(t, job.Input, 32, 'g')
	runner := &fakeRunner{}
	cache := resultcache.NewMemory()
	report, err := newOrchestrator(t, runner, cache, Options{}).Run(context.Background(), []Job{job})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(runner.analyses) != 0 || runner.gains[0] != 1.5 || cache.Len() != 0 || !report.Outcomes[0].Override {
		t.Fatalf("override not applied: %+v", report.Outcomes[0])
	}
}

func TestCancelledBatch(t *testing.T) {
	dir := t.TempDir()
	job := transformJob(dir, "a")
	testsupport.WriteFile(t, job.Input, 32, 'c')
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{}
	_, err := newOrchestrator(t, runner, nil, Options{}).Run(ctx, []Job{job})
	if services.ExitCode(err) != services.ExitInterrupted || len(runner.analyses) != 0 {
		t.Fatalf("expected interrupted exit, got %v", err)
	}
}

func TestRunReportsBatchID(t *testing.T) {
	ctx := services.WithBatchID(context.Background(), "batch-1")
	report, err := newOrchestrator(t, &fakeRunner{}, nil, Options{}).Run(ctx, nil)
	if err != nil || report.BatchID != "batch-1" {
		t.Fatalf("unexpected report %+v err=%v", report, err)
	}
}
