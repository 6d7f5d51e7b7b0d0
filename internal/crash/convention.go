// Package crash discovers and catalogs crash artifacts produced by fuzzer
// runs, based on fixed naming conventions: each fuzzer writes artifacts
// named crash-<hash> into a directory named codeforge-<name>-fuzz-output.
package crash

import (
	"regexp"
	"strings"
)

const (
	outputDirPrefix = "codeforge-"
	outputDirSuffix = "-fuzz-output"
	crashFilePrefix = "crash-"
)

var outputDirRe = regexp.MustCompile(`^codeforge-(.+)-fuzz-output$`)

// OutputDirName returns the output directory name for a fuzzer.
func OutputDirName(fuzzer string) string {
	return outputDirPrefix + fuzzer + outputDirSuffix
}

// ExtractFuzzerName recovers the owning fuzzer name from an output directory
// path. Both Unix and Windows separators are accepted since workspace paths
// may originate on either platform.
func ExtractFuzzerName(dirPath string) (string, bool) {
	base := dirPath
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	m := outputDirRe.FindStringSubmatch(base)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FuzzerNameFromTarget reduces a fuzz-target executable name to the bare
// fuzzer name users refer to: codeforge-parser-fuzz and parser-fuzz both
// map to parser.
func FuzzerNameFromTarget(target string) string {
	name := strings.TrimPrefix(target, outputDirPrefix)
	name = strings.TrimSuffix(name, "-fuzz")
	if name == "" {
		return target
	}
	return name
}

// IsCrashFile reports whether a file name follows the crash artifact
// convention.
func IsCrashFile(name string) bool {
	return strings.HasPrefix(name, crashFilePrefix)
}

// HashFromCrashFile extracts the content hash embedded in a crash artifact
// file name.
func HashFromCrashFile(name string) string {
	return strings.TrimPrefix(name, crashFilePrefix)
}
