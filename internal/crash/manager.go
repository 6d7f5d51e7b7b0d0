package crash

import (
	"context"
	"os"
	"path/filepath"

	"codeforge/internal/types"
	"codeforge/pkg/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager catalogs discovered crash artifacts and, when a database is
// configured, mirrors them into the crash sink. Persistence is advisory:
// a sink failure never hides a crash from the caller.
type Manager struct {
	logger *zap.Logger
	db     *gorm.DB // nil when no DATABASE_URL is configured
}

type ManagerParams struct {
	fx.In

	Logger *zap.Logger
	DB     *gorm.DB `optional:"true"`
}

func NewManager(p ManagerParams) *Manager {
	return &Manager{
		logger: p.Logger.Named("crash"),
		db:     p.DB,
	}
}

// Record persists crash artifacts to the configured sink, if any.
func (m *Manager) Record(ctx context.Context, artifacts []types.CrashArtifact) {
	if m.db == nil || len(artifacts) == 0 {
		return
	}
	records := make([]*database.CrashRecord, 0, len(artifacts))
	for _, artifact := range artifacts {
		records = append(records, database.NewCrashRecord(
			artifact.Fuzzer, artifact.Hash, artifact.Path, artifact.Size))
	}
	if err := database.AddCrashRecords(ctx, m.db, records); err != nil {
		m.logger.Warn("failed to persist crash records", zap.Error(err))
	}
}

// Clear deletes every crash artifact of one fuzzer. This is the only way
// artifacts are removed besides direct filesystem deletion.
func (m *Manager) Clear(fuzzingDir, fuzzer string) (int, error) {
	dir := filepath.Join(fuzzingDir, OutputDirName(fuzzer))
	artifacts, err := ScanOutputDir(fuzzer, dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, artifact := range artifacts {
		if err := os.Remove(artifact.Path); err != nil {
			m.logger.Warn("failed to remove crash artifact",
				zap.String("path", artifact.Path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
