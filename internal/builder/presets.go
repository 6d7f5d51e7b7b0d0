package builder

import (
	"regexp"
	"strings"
)

var presetNameRe = regexp.MustCompile(`^\s*"([^"]+)"`)

// ParsePresetList extracts preset names from `cmake --list-presets` output.
// The listing is plain text of the form:
//
//	Available configure presets:
//
//	  "default" - Default configuration
//	  "asan-fuzz"
//
// Only quoted names from the configure-preset section are returned.
func ParsePresetList(output string) []string {
	var presets []string
	inSection := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "presets:") {
			inSection = strings.Contains(trimmed, "configure") || !strings.Contains(trimmed, "preset type")
			continue
		}
		if !inSection || trimmed == "" {
			continue
		}
		if m := presetNameRe.FindStringSubmatch(line); m != nil {
			presets = append(presets, m[1])
		}
	}
	return presets
}
