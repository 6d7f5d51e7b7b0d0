package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"codeforge/config"
	"codeforge/internal/builder"
	"codeforge/internal/container"
	"codeforge/internal/crash"
	"codeforge/internal/types"
	"codeforge/pkg/clock"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service runs the discovery cycle behind the cache and answers fuzzer
// metadata queries from it while it is fresh.
type Service struct {
	logger       *zap.Logger
	orchestrator *builder.Orchestrator
	registry     *container.Registry
	cache        *Cache
	clk          clock.Clock
	cfg          *config.AppConfig

	mu           sync.Mutex
	failedBuilds map[string]bool // target name -> last build attempt failed
}

type ServiceParams struct {
	fx.In

	Logger       *zap.Logger
	Orchestrator *builder.Orchestrator
	Registry     *container.Registry
	AppConfig    *config.AppConfig
}

func NewService(p ServiceParams) *Service {
	return &Service{
		logger:       p.Logger.Named("cache"),
		orchestrator: p.Orchestrator,
		registry:     p.Registry,
		cache:        NewCache(p.AppConfig.CacheTTL, clock.New()),
		clk:          clock.New(),
		cfg:          p.AppConfig,
		failedBuilds: make(map[string]bool),
	}
}

// NewServiceWith builds a service around explicit collaborators for tests.
func NewServiceWith(logger *zap.Logger, orchestrator *builder.Orchestrator, registry *container.Registry, cache *Cache, clk clock.Clock, cfg *config.AppConfig) *Service {
	return &Service{
		logger:       logger,
		orchestrator: orchestrator,
		registry:     registry,
		cache:        cache,
		clk:          clk,
		cfg:          cfg,
		failedBuilds: make(map[string]bool),
	}
}

// Fuzzers returns the cached fuzzer set, running a full discovery cycle
// first when the cache is stale.
func (s *Service) Fuzzers(ctx context.Context) ([]types.FuzzerMetadata, error) {
	if !s.cache.IsValid() {
		if err := s.RefreshAll(ctx); err != nil {
			return nil, err
		}
	}
	list := s.cache.List()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Invalidate drops the cache; the next query re-runs discovery.
func (s *Service) Invalidate() {
	s.cache.Invalidate()
}

// NoteBuildReport records each target's last build outcome so metadata
// queries can tell a failed build from a target that was never built.
func (s *Service) NoteBuildReport(report *builder.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, outcome := range report.Outcomes {
		s.failedBuilds[outcome.Target] = !outcome.Success
	}
}

// RefreshAll re-runs target discovery and crash discovery and replaces the
// whole cache. Crash-scan failures degrade to fuzzers without crashes; the
// refreshed set is cached either way.
func (s *Service) RefreshAll(ctx context.Context) error {
	targets, err := s.orchestrator.DiscoverAllTargets(ctx)
	if err != nil {
		return err
	}

	list := make([]types.FuzzerMetadata, len(targets))
	var group errgroup.Group
	var mu sync.Mutex
	for i, target := range targets {
		i, target := i, target
		group.Go(func() error {
			md, err := s.describe(target)
			mu.Lock()
			list[i] = md
			mu.Unlock()
			return err
		})
	}
	if err := group.Wait(); err != nil {
		s.logger.Warn("crash discovery failed for some fuzzers, reporting them without crashes",
			zap.Error(err))
	}

	s.cache.UpdateCache(list)
	return nil
}

// Refresh re-inspects a single fuzzer and merges the result, used when the
// user triggers one build or run rather than a full rescan.
func (s *Service) Refresh(ctx context.Context, name string) types.FuzzerMetadata {
	md, ok := s.cache.Get(name)
	if !ok {
		md = types.FuzzerMetadata{Name: name, Status: types.StatusDiscovered}
	}
	refreshed, err := s.describe(types.FuzzTarget{Preset: md.Preset, Name: s.targetName(name)})
	if err != nil {
		s.logger.Warn("crash discovery failed, reporting fuzzer without crashes",
			zap.String("fuzzer", name), zap.Error(err))
	}
	s.cache.Merge(refreshed)
	return refreshed
}

// describe builds one fuzzer's metadata from the filesystem, the last build
// outcome and live registry state, in increasing precedence: discovered,
// built, failed, building, running. The returned metadata is usable even
// when the crash scan errors.
func (s *Service) describe(target types.FuzzTarget) (types.FuzzerMetadata, error) {
	fuzzer := crash.FuzzerNameFromTarget(target.Name)
	outputDir := filepath.Join(s.cfg.FuzzingDir(), crash.OutputDirName(fuzzer))

	md := types.FuzzerMetadata{
		Name:      fuzzer,
		Preset:    target.Preset,
		Status:    types.StatusDiscovered,
		OutputDir: outputDir,
		UpdatedAt: s.clk.Now(),
	}

	if info, err := os.Stat(filepath.Join(s.cfg.FuzzingDir(), target.Name)); err == nil && info.Mode().IsRegular() {
		md.Status = types.StatusBuilt
	}

	s.mu.Lock()
	if s.failedBuilds[target.Name] {
		md.Status = types.StatusFailed
	}
	s.mu.Unlock()

	for _, rec := range s.registry.ListActive() {
		switch rec.Category {
		case container.CategoryBuild:
			if rec.Metadata["target"] == target.Name {
				md.Status = types.StatusBuilding
			}
		case container.CategoryFuzzRun:
			if rec.Metadata["fuzzer"] == fuzzer {
				md.Status = types.StatusRunning
			}
		}
	}

	artifacts, err := crash.ScanOutputDir(fuzzer, outputDir)
	if err != nil {
		return md, err
	}
	md.Crashes = artifacts
	return md, nil
}

// targetName reconstructs the target executable name for a bare fuzzer
// name, preferring whichever variant exists in the fuzzing directory.
func (s *Service) targetName(name string) string {
	for _, candidate := range []string{name, name + "-fuzz", "codeforge-" + name + "-fuzz"} {
		if _, err := os.Stat(filepath.Join(s.cfg.FuzzingDir(), candidate)); err == nil {
			return candidate
		}
	}
	return name + "-fuzz"
}
