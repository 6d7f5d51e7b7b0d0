package analyze

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrFuzzingDirMissing = errors.New("fuzzing output directory does not exist")

// FuzzerNotFoundError reports every candidate path that was tried for a
// fuzzer name, so the user can see exactly where the resolver looked.
type FuzzerNotFoundError struct {
	Name      string
	Attempted []string
}

func (e *FuzzerNotFoundError) Error() string {
	return fmt.Sprintf("no executable found for fuzzer %q, tried: %s",
		e.Name, strings.Join(e.Attempted, ", "))
}

// ResolveFuzzerExecutable locates the executable for a fuzzer name in the
// central fuzzing directory, trying naming-convention candidates in order:
// the direct name, <name>-fuzz and codeforge-<name>-fuzz, each also inside a
// same-named subdirectory. The first regular, executable file wins.
func ResolveFuzzerExecutable(fuzzingDir, name string) (string, error) {
	if _, err := os.Stat(fuzzingDir); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFuzzingDirMissing, fuzzingDir)
	}

	candidates := []string{
		name,
		name + "-fuzz",
		"codeforge-" + name + "-fuzz",
	}

	var attempted []string
	for _, candidate := range candidates {
		for _, rel := range []string{candidate, filepath.Join(candidate, candidate)} {
			path := filepath.Join(fuzzingDir, rel)
			attempted = append(attempted, path)
			if isExecutableFile(path) {
				return path, nil
			}
		}
	}
	return "", &FuzzerNotFoundError{Name: name, Attempted: attempted}
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
