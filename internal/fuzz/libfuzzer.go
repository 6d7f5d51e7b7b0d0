package fuzz

import "fmt"

// Exit outcomes of a libFuzzer process. The engine exits non-zero when it
// finds a crash; that is an expected result, distinct from a failure of the
// engine itself (bad flags, missing corpus dir and the like).
type ExitKind int

const (
	ExitClean ExitKind = iota
	ExitCrash
	ExitEngineFailure
)

// 1 is the sanitizer's default exitcode; 7x come from libFuzzer itself
// (timeout, OOM, crash).
var crashExitCodes = map[int]struct{}{
	1:  {},
	70: {},
	71: {},
	77: {},
}

// ClassifyExit maps a libFuzzer exit code to an outcome.
func ClassifyExit(code int) ExitKind {
	if code == 0 {
		return ExitClean
	}
	if _, ok := crashExitCodes[code]; ok {
		return ExitCrash
	}
	return ExitEngineFailure
}

// BuildFuzzArgs assembles the fixed libFuzzer invocation for one target:
// forked parallel workers that keep fuzzing past individual crashes, a
// bounded iteration count, and crash artifacts written into the target's
// output directory. dictPath is optional.
func BuildFuzzArgs(executable, outputDir, corpusDir, dictPath string, workers, iterations int) []string {
	args := []string{
		executable,
		fmt.Sprintf("-fork=%d", workers),
		"-ignore_crashes=1",
		fmt.Sprintf("-runs=%d", iterations),
		"-create_missing_dirs=1",
		fmt.Sprintf("-artifact_prefix=%s/", outputDir),
	}
	if dictPath != "" {
		args = append(args, fmt.Sprintf("-dict=%s", dictPath))
	}
	return append(args, corpusDir)
}
