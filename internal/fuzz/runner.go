package fuzz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codeforge/config"
	"codeforge/internal/container"
	"codeforge/internal/corpus"
	"codeforge/internal/crash"
	"codeforge/internal/types"
	"codeforge/pkg/sink"
	"codeforge/pkg/watchdog"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const outputExcerptLimit = 8 * 1024

// Runner executes built fuzz targets with libFuzzer inside tracked
// containers and detects the crash artifacts they produce.
type Runner struct {
	logger       *zap.Logger
	runtime      container.Runtime
	registry     *container.Registry
	watchDogFac  *watchdog.WatchDogFactory
	crashManager *crash.Manager
	seeder       *corpus.Seeder
	cfg          *config.AppConfig
}

type RunnerParams struct {
	fx.In

	Logger       *zap.Logger
	Runtime      container.Runtime
	Registry     *container.Registry
	WatchDogFac  *watchdog.WatchDogFactory
	CrashManager *crash.Manager
	Seeder       *corpus.Seeder
	AppConfig    *config.AppConfig
}

func NewRunner(p RunnerParams) *Runner {
	return &Runner{
		logger:       p.Logger.Named("fuzz"),
		runtime:      p.Runtime,
		registry:     p.Registry,
		watchDogFac:  p.WatchDogFac,
		crashManager: p.CrashManager,
		seeder:       p.Seeder,
		cfg:          p.AppConfig,
	}
}

// RunAll executes every built target in turn. One target's spawn failure is
// recorded in its result and execution proceeds to the next target.
func (r *Runner) RunAll(ctx context.Context, executables map[string]string, out sink.Sink) []types.FuzzRunResult {
	targets := make([]string, 0, len(executables))
	for target := range executables {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	results := make([]types.FuzzRunResult, 0, len(targets))
	for _, target := range targets {
		select {
		case <-ctx.Done():
			return results
		default:
		}
		results = append(results, r.RunTarget(ctx, target, executables[target], out))
	}
	return results
}

// RunTarget runs one fuzz target and scans its output directory for crash
// artifacts once the engine exits. A crash exit code is an expected result.
func (r *Runner) RunTarget(ctx context.Context, target, executable string, out sink.Sink) types.FuzzRunResult {
	logger := r.logger.With(zap.String("target", target))
	result := types.FuzzRunResult{Target: target}

	fuzzer := crash.FuzzerNameFromTarget(target)
	outputDir := filepath.Join(r.cfg.FuzzingDir(), crash.OutputDirName(fuzzer))
	corpusDir := filepath.Join(outputDir, "corpus")
	for _, dir := range []string{outputDir, corpusDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			result.ExitCode = -1
			result.Output = fmt.Sprintf("create output dir: %v", err)
			return result
		}
	}

	if _, err := r.seeder.Seed(r.cfg.WorkspaceRoot, fuzzer, corpusDir); err != nil {
		logger.Warn("corpus seeding failed, starting from existing corpus", zap.Error(err))
	}

	// artifacts kept from earlier runs must not count as this run's findings
	preexisting := make(map[string]struct{})
	if kept, err := crash.ScanOutputDir(fuzzer, outputDir); err == nil {
		for _, artifact := range kept {
			preexisting[artifact.Path] = struct{}{}
		}
	}

	// surface crashes live while the engine is still running
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	r.watchLive(watchCtx, outputDir, out, logger)

	name := fmt.Sprintf("codeforge-fuzz-%s-%s", fuzzer, uuid.New().String()[:8])
	handle, err := r.runtime.Run(ctx, container.RunSpec{
		WorkspaceRoot: r.cfg.WorkspaceRoot,
		Image:         r.cfg.FuzzImage,
		Cmd: BuildFuzzArgs(executable, outputDir, corpusDir,
			FindDictionary(r.cfg.FuzzingDir(), target),
			r.cfg.FuzzWorkers, r.cfg.FuzzIterations),
		Workdir:    r.cfg.WorkspaceRoot,
		Name:       name,
		AutoRemove: true,
		Env: map[string]string{
			"LLVM_PROFILE_FILE": filepath.Join(outputDir, target+".profraw"),
		},
	})
	if err != nil {
		logger.Error("failed to start fuzzer container", zap.Error(err))
		result.ExitCode = -1
		result.Output = err.Error()
		return result
	}

	r.registry.Track(container.Record{
		ID:            name,
		Name:          name,
		Image:         r.cfg.FuzzImage,
		WorkspaceRoot: r.cfg.WorkspaceRoot,
		Category:      container.CategoryFuzzRun,
		Metadata:      map[string]string{"fuzzer": fuzzer},
	})
	defer r.registry.Untrack(name)

	var sb strings.Builder
	for line := range handle.Lines() {
		out.AppendLine(line)
		if sb.Len() < outputExcerptLimit {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	status := handle.Wait()
	cancelWatch()

	result.ExitCode = status.Code
	result.Output = sb.String()

	switch ClassifyExit(status.Code) {
	case ExitCrash:
		result.Crashed = true
	case ExitEngineFailure:
		logger.Warn("fuzzing engine failed",
			zap.Int("exit_code", status.Code), zap.Error(status.Err))
	}

	artifacts, err := crash.ScanOutputDir(fuzzer, outputDir)
	if err != nil {
		logger.Error("failed to scan for crash artifacts", zap.Error(err))
		return result
	}
	var fresh []types.CrashArtifact
	for _, artifact := range artifacts {
		if _, old := preexisting[artifact.Path]; !old {
			fresh = append(fresh, artifact)
		}
	}
	result.Crashes = fresh
	if len(fresh) > 0 {
		result.Crashed = true
		logger.Info("crash artifacts found", zap.Int("count", len(fresh)))
		r.crashManager.Record(ctx, fresh)
	}
	return result
}

// watchLive reports crash files as they appear, ahead of the final scan.
func (r *Runner) watchLive(ctx context.Context, outputDir string, out sink.Sink, logger *zap.Logger) {
	notifyChan := make(chan string, 64)
	dog, err := r.watchDogFac.New(ctx, notifyChan, func(path string) bool {
		return crash.IsCrashFile(filepath.Base(path))
	})
	if err != nil {
		logger.Warn("live crash watch unavailable", zap.Error(err))
		return
	}
	dog.AddDir(outputDir)

	go func() {
		for crashFile := range notifyChan {
			out.AppendLine(fmt.Sprintf("crash artifact detected: %s", crashFile))
			out.Reveal()
		}
	}()
}
