// Package analyze bridges discovered crash artifacts into symbol-aware GDB
// sessions running inside the fuzzing container.
package analyze

import (
	"context"
	"fmt"
	"os"
	"strings"

	"codeforge/config"
	"codeforge/internal/container"
	"codeforge/internal/pathmap"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Result is the structured outcome of an analysis launch; it is surfaced
// directly to a human, so failures are data, not raised errors.
type Result struct {
	OK        bool
	Container string
	Message   string
}

type Analyzer struct {
	logger   *zap.Logger
	runtime  container.Runtime
	registry *container.Registry
	cfg      *config.AppConfig
}

type AnalyzerParams struct {
	fx.In

	Logger    *zap.Logger
	Runtime   container.Runtime
	Registry  *container.Registry
	AppConfig *config.AppConfig
}

func NewAnalyzer(p AnalyzerParams) *Analyzer {
	return &Analyzer{
		logger:   p.Logger.Named("analyze"),
		runtime:  p.Runtime,
		registry: p.Registry,
		cfg:      p.AppConfig,
	}
}

// Validate checks every precondition for analyzing a crash independently
// and returns the union of failures, so the user sees all blocking issues
// at once instead of fixing them one by one.
func (a *Analyzer) Validate(fuzzer, crashPath string) []error {
	var problems []error

	if info, err := os.Stat(crashPath); err != nil {
		problems = append(problems, fmt.Errorf("crash file not accessible: %w", err))
	} else if !info.Mode().IsRegular() {
		problems = append(problems, fmt.Errorf("crash path is not a regular file: %s", crashPath))
	}

	if _, err := ResolveFuzzerExecutable(a.cfg.FuzzingDir(), fuzzer); err != nil {
		problems = append(problems, err)
	}

	if _, err := pathmap.HostToContainer(crashPath, a.cfg.WorkspaceRoot); err != nil {
		problems = append(problems, fmt.Errorf("crash path cannot be mapped into the container: %w", err))
	}

	return problems
}

// Analyze resolves the fuzzer, maps both paths into container form, builds
// the debugger command and launches it as a tracked interactive container.
// It blocks until the debugging session ends.
func (a *Analyzer) Analyze(ctx context.Context, fuzzer, crashPath string, opts DebuggerOptions) Result {
	if problems := a.Validate(fuzzer, crashPath); len(problems) > 0 {
		messages := make([]string, 0, len(problems))
		for _, p := range problems {
			messages = append(messages, p.Error())
		}
		return Result{Message: strings.Join(messages, "; ")}
	}

	fuzzerPath, err := ResolveFuzzerExecutable(a.cfg.FuzzingDir(), fuzzer)
	if err != nil {
		return Result{Message: err.Error()}
	}

	fuzzerInContainer, err := pathmap.HostToContainer(fuzzerPath, a.cfg.WorkspaceRoot)
	if err != nil {
		return Result{Message: fmt.Sprintf("fuzzer path cannot be mapped into the container: %v", err)}
	}
	crashInContainer, err := pathmap.HostToContainer(crashPath, a.cfg.WorkspaceRoot)
	if err != nil {
		return Result{Message: fmt.Sprintf("crash path cannot be mapped into the container: %v", err)}
	}

	name := fmt.Sprintf("codeforge-debug-%s-%s", fuzzer, uuid.New().String()[:8])
	handle, err := a.runtime.Run(ctx, container.RunSpec{
		WorkspaceRoot: a.cfg.WorkspaceRoot,
		Image:         a.cfg.FuzzImage,
		Cmd:           BuildDebuggerCommand(fuzzerInContainer, crashInContainer, opts),
		Workdir:       a.cfg.WorkspaceRoot,
		Name:          name,
		Interactive:   true,
		AutoRemove:    true,
	})
	if err != nil {
		a.logger.Error("failed to launch debug session", zap.Error(err))
		return Result{Message: fmt.Sprintf("failed to launch debug session: %v", err)}
	}

	a.registry.Track(container.Record{
		ID:            name,
		Name:          name,
		Image:         a.cfg.FuzzImage,
		WorkspaceRoot: a.cfg.WorkspaceRoot,
		Category:      container.CategoryDebug,
		Metadata:      map[string]string{"fuzzer": fuzzer, "crash": crashPath},
	})
	defer a.registry.Untrack(name)

	status := handle.Wait()
	if status.Err != nil {
		return Result{Container: name, Message: fmt.Sprintf("debug session ended abnormally: %v", status.Err)}
	}
	return Result{OK: true, Container: name}
}

// Backtrace runs a non-interactive batch-mode GDB session and returns the
// captured backtrace text.
func (a *Analyzer) Backtrace(ctx context.Context, fuzzer, crashPath string) (string, error) {
	fuzzerPath, err := ResolveFuzzerExecutable(a.cfg.FuzzingDir(), fuzzer)
	if err != nil {
		return "", err
	}
	fuzzerInContainer, err := pathmap.HostToContainer(fuzzerPath, a.cfg.WorkspaceRoot)
	if err != nil {
		return "", err
	}
	crashInContainer, err := pathmap.HostToContainer(crashPath, a.cfg.WorkspaceRoot)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("codeforge-backtrace-%s-%s", fuzzer, uuid.New().String()[:8])
	handle, err := a.runtime.Run(ctx, container.RunSpec{
		WorkspaceRoot: a.cfg.WorkspaceRoot,
		Image:         a.cfg.FuzzImage,
		Cmd: BuildDebuggerCommand(fuzzerInContainer, crashInContainer, DebuggerOptions{
			Batch:    true,
			Quiet:    true,
			Commands: []string{"run", "bt"},
		}),
		Workdir:    a.cfg.WorkspaceRoot,
		Name:       name,
		AutoRemove: true,
	})
	if err != nil {
		return "", fmt.Errorf("launch backtrace session: %w", err)
	}

	a.registry.Track(container.Record{
		ID:            name,
		Name:          name,
		Image:         a.cfg.FuzzImage,
		WorkspaceRoot: a.cfg.WorkspaceRoot,
		Category:      container.CategoryDebug,
	})
	defer a.registry.Untrack(name)

	var sb strings.Builder
	for line := range handle.Lines() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	handle.Wait()
	return sb.String(), nil
}
