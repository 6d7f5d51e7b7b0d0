// Package workflow is the engine's single upward entry point: discover,
// build and fuzz everything in a workspace, and report both what succeeded
// and everything that failed.
package workflow

import (
	"context"
	"fmt"

	"codeforge/internal/builder"
	"codeforge/internal/cache"
	"codeforge/internal/container"
	"codeforge/internal/fuzz"
	"codeforge/internal/types"
	"codeforge/pkg/sink"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Progress reports a human-readable label and completion percentage to the
// caller's UI surface.
type Progress func(label string, pct int)

type Engine struct {
	logger       *zap.Logger
	registry     *container.Registry
	orchestrator *builder.Orchestrator
	runner       *fuzz.Runner
	cacheService *cache.Service
	out          sink.Sink
}

type EngineParams struct {
	fx.In

	Logger       *zap.Logger
	Registry     *container.Registry
	Orchestrator *builder.Orchestrator
	Runner       *fuzz.Runner
	CacheService *cache.Service
	Sink         sink.Sink
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		logger:       p.Logger.Named("workflow"),
		registry:     p.Registry,
		orchestrator: p.Orchestrator,
		runner:       p.Runner,
		cacheService: p.CacheService,
		out:          p.Sink,
	}
}

// Run executes the full pipeline. Only preset discovery is fatal; every
// other failure is collected into the report and the run continues. The
// returned report is complete and never mutated afterwards.
func (e *Engine) Run(ctx context.Context, progress Progress) (*types.WorkflowReport, error) {
	if progress == nil {
		progress = func(string, int) {}
	}

	// reconcile state left behind by a previous process before launching
	// anything new
	e.registry.AdoptJournal(ctx)
	e.registry.CleanupOrphaned(ctx)

	buildReport, err := e.orchestrator.BuildAll(ctx, func(label string, pct int) {
		// building is the first half of the workflow
		progress(label, pct/2)
	})
	if err != nil {
		return nil, fmt.Errorf("build stage: %w", err)
	}
	e.cacheService.NoteBuildReport(buildReport)

	report := &types.WorkflowReport{
		PresetsTotal:     buildReport.PresetsTotal,
		PresetsProcessed: buildReport.PresetsProcessed,
		TargetsTotal:     buildReport.TargetsTotal,
		TargetsBuilt:     buildReport.TargetsBuilt,
		Errors:           buildReport.Errors,
	}

	progress("Running fuzzers", 50)
	results := e.runner.RunAll(ctx, buildReport.Executables, e.out)
	for _, result := range results {
		report.CrashesFound += len(result.Crashes)
		if !result.Crashed && fuzz.ClassifyExit(result.ExitCode) == fuzz.ExitEngineFailure {
			report.Errors = append(report.Errors, types.WorkflowError{
				Stage:   "fuzz",
				Targets: []string{result.Target},
				Message: fmt.Sprintf("fuzzing engine exited with code %d", result.ExitCode),
			})
		}
	}

	// discovery state changed; force the next metadata query to rescan
	e.cacheService.Invalidate()

	e.logger.Info("workflow complete",
		zap.Int("presets", report.PresetsProcessed),
		zap.Int("targets_built", report.TargetsBuilt),
		zap.Int("crashes_found", report.CrashesFound),
		zap.Int("errors", len(report.Errors)))
	progress("Done", 100)
	return report, nil
}
