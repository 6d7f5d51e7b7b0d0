// Package corpus seeds a fuzzer's working corpus from inputs checked into
// the workspace, so a fresh run does not start from nothing.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"codeforge/internal/utils"

	"go.uber.org/zap"
)

// seedDirName is the workspace directory holding per-fuzzer seed inputs:
// <workspace>/corpus/<fuzzer>/*.
const seedDirName = "corpus"

type Seeder struct {
	logger *zap.Logger
}

func NewSeeder(logger *zap.Logger) *Seeder {
	return &Seeder{logger: logger.Named("corpus")}
}

// Seed copies the workspace's seed inputs for a fuzzer into its working
// corpus directory. A missing seed directory is normal; copy failures are
// logged and skipped since a partial corpus is still a usable corpus.
func (s *Seeder) Seed(workspaceRoot, fuzzer, corpusDir string) (int, error) {
	seedDir := filepath.Join(workspaceRoot, seedDirName, fuzzer)
	entries, err := os.ReadDir(seedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read seed dir %s: %w", seedDir, err)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(seedDir, entry.Name())
		dst := filepath.Join(corpusDir, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			continue // already seeded on an earlier run
		}
		if err := utils.CopyFile(src, dst); err != nil {
			s.logger.Warn("failed to copy seed input",
				zap.String("seed", src), zap.Error(err))
			continue
		}
		copied++
	}
	if copied > 0 {
		s.logger.Info("seeded corpus",
			zap.String("fuzzer", fuzzer), zap.Int("seeds", copied))
	}
	return copied, nil
}
