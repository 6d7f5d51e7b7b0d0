package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend is the generator CMake configured a build directory with.
type Backend int

const (
	BackendUnknown Backend = iota
	BackendNinja
	BackendMake
)

func (b Backend) String() string {
	switch b {
	case BackendNinja:
		return "ninja"
	case BackendMake:
		return "make"
	default:
		return "unknown"
	}
}

// DetectBackend probes a configured build directory for backend-specific
// marker files.
func DetectBackend(buildDir string) Backend {
	if _, err := os.Stat(filepath.Join(buildDir, "build.ninja")); err == nil {
		return BackendNinja
	}
	if _, err := os.Stat(filepath.Join(buildDir, "Makefile")); err == nil {
		return BackendMake
	}
	return BackendUnknown
}

// TargetListCommand returns the command that prints the backend's target
// list for the given build directory.
func TargetListCommand(backend Backend, buildDir string) ([]string, error) {
	switch backend {
	case BackendNinja:
		return []string{"ninja", "-C", buildDir, "-t", "targets", "all"}, nil
	case BackendMake:
		return []string{"cmake", "--build", buildDir, "--target", "help"}, nil
	default:
		return nil, fmt.Errorf("cannot list targets: unknown build backend in %s", buildDir)
	}
}

// ParseTargets extracts target names from backend-specific listing output.
func ParseTargets(backend Backend, output string) []string {
	switch backend {
	case BackendNinja:
		return parseNinjaTargets(output)
	case BackendMake:
		return parseMakeTargets(output)
	default:
		return nil
	}
}

// parseNinjaTargets parses `ninja -t targets all` output, one
// "path/to/target: rule" entry per line. Names are reduced to their final
// path component.
func parseNinjaTargets(output string) []string {
	seen := make(map[string]struct{})
	var targets []string
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		name := filepath.Base(strings.TrimSpace(line[:idx]))
		if name == "" || name == "." {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	return targets
}

// parseMakeTargets parses `cmake --build <dir> --target help` output for the
// Makefile generator, which prefixes each target with "... ".
func parseMakeTargets(output string) []string {
	var targets []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "... ") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, "... "))
		// some generators append the dependency list after the name
		if idx := strings.IndexByte(name, ' '); idx > 0 {
			name = name[:idx]
		}
		if name != "" {
			targets = append(targets, name)
		}
	}
	return targets
}

// IsFuzzTarget reports whether a target name follows the project's fuzz
// harness naming convention.
func IsFuzzTarget(name string) bool {
	return strings.HasSuffix(name, "-fuzz")
}
