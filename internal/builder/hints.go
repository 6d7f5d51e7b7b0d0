package builder

import "strings"

// hintRule matches error text against one known failure category. Rules are
// ordered; the first match wins. The classification is heuristic and
// best-effort, not exhaustive.
type hintRule struct {
	match func(string) bool
	hint  string
}

func containsAny(substrings ...string) func(string) bool {
	return func(text string) bool {
		for _, s := range substrings {
			if strings.Contains(text, s) {
				return true
			}
		}
		return false
	}
}

var hintRules = []hintRule{
	{
		match: containsAny("LLVMFuzzerTestOneInput", "-fsanitize=fuzzer", "libFuzzer"),
		hint:  "The target does not link against libFuzzer. Add -fsanitize=fuzzer (and the matching sanitizer) to the target's compile and link flags.",
	},
	{
		match: containsAny("undefined reference", "undefined symbol", "unresolved external"),
		hint:  "Undefined symbols at link time. Check that all required libraries are listed in target_link_libraries for this target.",
	},
	{
		match: containsAny("No such file or directory", "No rule to make target", "Cannot open include file", "file not found"),
		hint:  "A source or header the build expects is missing. Verify the file exists and the path in the build configuration is correct.",
	},
	{
		match: containsAny("Permission denied", "permission denied", "Operation not permitted"),
		hint:  "Permission error inside the build container. Check ownership of the workspace bind mount and the build directory.",
	},
	{
		match: containsAny("internal compiler error", "command not found", "compiler not found", "CMake Error", "clang: error", "gcc: error"),
		hint:  "The compiler or build toolchain failed. Verify the container image provides the expected toolchain for this preset.",
	},
}

// DeriveHint classifies build error text against the known failure
// categories and returns an actionable hint, or empty when nothing matches.
func DeriveHint(errorText string) string {
	for _, rule := range hintRules {
		if rule.match(errorText) {
			return rule.hint
		}
	}
	return ""
}
