package crash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"codeforge/internal/types"
)

// ScanOutputDir lists the crash artifacts in one fuzzer's output directory.
// A missing directory is not an error: no directory, no crashes.
func ScanOutputDir(fuzzer, dir string) ([]types.CrashArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output dir %s: %w", dir, err)
	}

	var artifacts []types.CrashArtifact
	for _, entry := range entries {
		if entry.IsDir() || !IsCrashFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, types.CrashArtifact{
			Fuzzer:    fuzzer,
			Hash:      HashFromCrashFile(entry.Name()),
			Path:      filepath.Join(dir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return artifacts, nil
}

// DiscoverAll walks the central fuzzing directory and groups crash artifacts
// by owning fuzzer, using the output-directory naming convention.
func DiscoverAll(fuzzingDir string) (map[string][]types.CrashArtifact, error) {
	entries, err := os.ReadDir(fuzzingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]types.CrashArtifact{}, nil
		}
		return nil, fmt.Errorf("read fuzzing dir %s: %w", fuzzingDir, err)
	}

	found := make(map[string][]types.CrashArtifact)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fuzzer, ok := ExtractFuzzerName(entry.Name())
		if !ok {
			continue
		}
		artifacts, err := ScanOutputDir(fuzzer, filepath.Join(fuzzingDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		found[fuzzer] = artifacts
	}
	return found, nil
}

// ReadPrefix reads at most limit bytes from the start of a crash file.
// Artifacts can be large; display surfaces only ever need a bounded prefix.
func ReadPrefix(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crash file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("read crash file: %w", err)
	}
	return data, nil
}
