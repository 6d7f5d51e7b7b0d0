package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"codeforge/config"
	"codeforge/internal/container"
	"codeforge/internal/types"
	"codeforge/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// outputExcerptLimit bounds the captured build output attached to an
// outcome. Full logs stream to the sink; outcomes carry only the tail.
const outputExcerptLimit = 8 * 1024

var ErrNoPresets = errors.New("no build presets found")

// Report aggregates one discovery-and-build pass. Failures are recorded as
// data alongside everything that succeeded.
type Report struct {
	PresetsTotal     int
	PresetsProcessed int
	TargetsTotal     int
	TargetsBuilt     int
	Outcomes         []types.BuildOutcome
	Executables      map[string]string // fuzzer name -> path in the central fuzzing dir
	Errors           []types.WorkflowError
}

// Orchestrator discovers build presets and fuzz targets and builds them,
// every build-system invocation running as a tracked ephemeral container.
type Orchestrator struct {
	logger   *zap.Logger
	runtime  container.Runtime
	registry *container.Registry
	cfg      *config.AppConfig
}

type OrchestratorParams struct {
	fx.In

	Logger    *zap.Logger
	Runtime   container.Runtime
	Registry  *container.Registry
	AppConfig *config.AppConfig
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	return &Orchestrator{
		logger:   p.Logger.Named("builder"),
		runtime:  p.Runtime,
		registry: p.Registry,
		cfg:      p.AppConfig,
	}
}

// DiscoverPresets lists the workspace's configure presets. A failure here is
// fatal to the whole run: no presets means nothing to do.
func (o *Orchestrator) DiscoverPresets(ctx context.Context) ([]string, error) {
	output, exitCode, err := o.runTracked(ctx, container.CategoryDiscovery, nil,
		[]string{"cmake", "--list-presets"})
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("list presets exited with code %d: %s", exitCode, excerpt(output))
	}

	presets := ParsePresetList(output)
	if len(presets) == 0 {
		return nil, ErrNoPresets
	}
	o.logger.Info("discovered presets", zap.Strings("presets", presets))
	return presets, nil
}

// DiscoverTargets configures the preset into buildDir, detects the build
// backend and returns the fuzz targets the backend's listing reports.
func (o *Orchestrator) DiscoverTargets(ctx context.Context, preset, buildDir string) ([]types.FuzzTarget, error) {
	output, exitCode, err := o.runTracked(ctx, container.CategoryDiscovery, nil,
		[]string{"cmake", "--preset", preset, "-B", buildDir})
	if err != nil {
		return nil, fmt.Errorf("configure preset %s: %w", preset, err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("configure preset %s exited with code %d: %s", preset, exitCode, excerpt(output))
	}

	backend := DetectBackend(buildDir)
	listCmd, err := TargetListCommand(backend, buildDir)
	if err != nil {
		return nil, err
	}

	output, exitCode, err = o.runTracked(ctx, container.CategoryDiscovery, nil, listCmd)
	if err != nil {
		return nil, fmt.Errorf("list targets for preset %s: %w", preset, err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("list targets for preset %s exited with code %d: %s", preset, exitCode, excerpt(output))
	}

	var targets []types.FuzzTarget
	for _, name := range ParseTargets(backend, output) {
		if IsFuzzTarget(name) {
			targets = append(targets, types.FuzzTarget{Preset: preset, Name: name})
		}
	}
	o.logger.Info("discovered fuzz targets",
		zap.String("preset", preset), zap.String("backend", backend.String()), zap.Int("count", len(targets)))
	return targets, nil
}

// BuildTarget builds one fuzz target inside a tracked container and locates
// the resulting executable. Failure is returned as data in the outcome.
func (o *Orchestrator) BuildTarget(ctx context.Context, target types.FuzzTarget, buildDir string) types.BuildOutcome {
	buildCtx, cancel := context.WithTimeout(ctx, o.cfg.BuildTimeout)
	defer cancel()

	output, exitCode, err := o.runTracked(buildCtx, container.CategoryBuild,
		map[string]string{"target": target.Name},
		[]string{"cmake", "--build", buildDir, "--target", target.Name})

	outcome := types.BuildOutcome{Target: target.Name, Output: excerpt(output), ExitCode: exitCode}
	switch {
	case err != nil:
		outcome.ErrorMessage = err.Error()
	case buildCtx.Err() == context.DeadlineExceeded:
		outcome.ErrorMessage = fmt.Sprintf("build timed out after %s", o.cfg.BuildTimeout)
	case exitCode != 0:
		outcome.ErrorMessage = fmt.Sprintf("build exited with code %d", exitCode)
	}
	if outcome.ErrorMessage != "" {
		outcome.Hint = DeriveHint(outcome.ErrorMessage + "\n" + output)
		return outcome
	}

	execPath, err := findExecutable(buildDir, target.Name)
	if err != nil {
		outcome.ErrorMessage = err.Error()
		return outcome
	}
	outcome.Success = true
	outcome.ExecutablePath = execPath
	return outcome
}

// BuildAll runs the full discovery-and-build pipeline. Per-preset and
// per-target failures are collected in the report; only preset discovery is
// fatal.
func (o *Orchestrator) BuildAll(ctx context.Context, progress func(label string, pct int)) (*Report, error) {
	if progress == nil {
		progress = func(string, int) {}
	}

	progress("Discovering presets", 0)
	presets, err := o.DiscoverPresets(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		PresetsTotal: len(presets),
		Executables:  make(map[string]string),
	}

	fuzzingDir := o.cfg.FuzzingDir()
	if err := os.MkdirAll(fuzzingDir, 0755); err != nil {
		return nil, fmt.Errorf("create fuzzing dir: %w", err)
	}

	for i, preset := range presets {
		progress(fmt.Sprintf("Building preset %s", preset), (i*100)/len(presets))

		buildDir, err := o.makeBuildDir(preset)
		if err != nil {
			report.Errors = append(report.Errors, types.WorkflowError{
				Stage: "configure", Preset: preset, Message: err.Error(),
			})
			continue
		}

		targets, err := o.DiscoverTargets(ctx, preset, buildDir)
		if err != nil {
			o.logger.Warn("target discovery failed, skipping preset",
				zap.String("preset", preset), zap.Error(err))
			report.Errors = append(report.Errors, types.WorkflowError{
				Stage: "discover", Preset: preset, Message: err.Error(),
			})
			continue
		}
		report.TargetsTotal += len(targets)

		var failed []types.BuildOutcome
		for _, target := range targets {
			outcome := o.BuildTarget(ctx, target, buildDir)
			report.Outcomes = append(report.Outcomes, outcome)
			if !outcome.Success {
				failed = append(failed, outcome)
				continue
			}
			report.TargetsBuilt++

			centralPath := filepath.Join(fuzzingDir, target.Name)
			if err := utils.CopyFile(outcome.ExecutablePath, centralPath); err != nil {
				o.logger.Error("failed to collect executable",
					zap.String("target", target.Name), zap.Error(err))
				report.Errors = append(report.Errors, types.WorkflowError{
					Stage: "collect", Preset: preset, Targets: []string{target.Name}, Message: err.Error(),
				})
				continue
			}
			report.Executables[target.Name] = centralPath
		}

		if len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for _, outcome := range failed {
				names = append(names, outcome.Target)
			}
			report.Errors = append(report.Errors, types.WorkflowError{
				Stage:   "build",
				Preset:  preset,
				Targets: names,
				Message: fmt.Sprintf("%d of %d targets failed to build", len(failed), len(targets)),
				Details: failed,
			})
		}
		report.PresetsProcessed++
	}

	progress("Build complete", 100)
	return report, nil
}

// DiscoverAllTargets runs preset and target discovery without building,
// tolerating per-preset failures. Used by the metadata cache's discovery
// cycle.
func (o *Orchestrator) DiscoverAllTargets(ctx context.Context) ([]types.FuzzTarget, error) {
	presets, err := o.DiscoverPresets(ctx)
	if err != nil {
		return nil, err
	}

	var targets []types.FuzzTarget
	for _, preset := range presets {
		buildDir, err := o.makeBuildDir(preset)
		if err != nil {
			o.logger.Warn("skipping preset", zap.String("preset", preset), zap.Error(err))
			continue
		}
		found, err := o.DiscoverTargets(ctx, preset, buildDir)
		if err != nil {
			o.logger.Warn("target discovery failed, skipping preset",
				zap.String("preset", preset), zap.Error(err))
			continue
		}
		targets = append(targets, found...)
	}
	return targets, nil
}

func (o *Orchestrator) makeBuildDir(preset string) (string, error) {
	// must live under the workspace so the container sees it at the same path
	dir := filepath.Join(o.cfg.WorkspaceRoot, ".codeforge", "build",
		fmt.Sprintf("%s-%s", preset, uuid.New().String()[:8]))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create build dir: %w", err)
	}
	return dir, nil
}

// runTracked runs a command in an ephemeral container, tracking it in the
// registry for its lifetime, and returns the captured output and exit code.
func (o *Orchestrator) runTracked(ctx context.Context, category string, metadata map[string]string, cmd []string) (string, int, error) {
	name := fmt.Sprintf("codeforge-%s-%s", category, uuid.New().String()[:8])
	handle, err := o.runtime.Run(ctx, container.RunSpec{
		WorkspaceRoot: o.cfg.WorkspaceRoot,
		Image:         o.cfg.FuzzImage,
		Cmd:           cmd,
		Workdir:       o.cfg.WorkspaceRoot,
		Name:          name,
		AutoRemove:    true,
	})
	if err != nil {
		return "", -1, err
	}

	o.registry.Track(container.Record{
		ID:            name,
		Name:          name,
		Image:         o.cfg.FuzzImage,
		WorkspaceRoot: o.cfg.WorkspaceRoot,
		Category:      category,
		Metadata:      metadata,
	})
	defer o.registry.Untrack(name)

	var sb strings.Builder
	for line := range handle.Lines() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	status := handle.Wait()
	return sb.String(), status.Code, status.Err
}

// findExecutable locates the built binary for a target inside the build
// directory, accepting the first regular executable file with the target's
// name.
func findExecutable(buildDir, target string) (string, error) {
	var found string
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if d.IsDir() || d.Name() != target {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() && info.Mode()&0111 != 0 {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return "", fmt.Errorf("search for %s executable: %w", target, err)
	}
	if found == "" {
		return "", fmt.Errorf("built target %s but no executable found under %s", target, buildDir)
	}
	return found, nil
}

func excerpt(output string) string {
	if len(output) <= outputExcerptLimit {
		return output
	}
	return "..." + output[len(output)-outputExcerptLimit:]
}
