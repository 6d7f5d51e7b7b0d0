package fuzz

import (
	"os"
	"path/filepath"
	"strings"
)

// FindDictionary returns the dictionary file to pass to libFuzzer for a
// target, or empty when none exists. It checks <target>.options for a
// "dict = <file>" entry first, then falls back to <target>.dict, both
// resolved relative to the fuzzing directory.
func FindDictionary(fuzzingDir, target string) string {
	if dict := dictFromOptions(fuzzingDir, target); dict != "" {
		return dict
	}
	dictFile := filepath.Join(fuzzingDir, target+".dict")
	if info, err := os.Stat(dictFile); err == nil && info.Mode().IsRegular() {
		return dictFile
	}
	return ""
}

func dictFromOptions(fuzzingDir, target string) string {
	content, err := os.ReadFile(filepath.Join(fuzzingDir, target+".options"))
	if err != nil {
		return ""
	}

	var lastDict string
	for _, line := range strings.Split(string(content), "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == "dict" {
			lastDict = strings.TrimSpace(parts[1])
		}
	}
	if lastDict == "" {
		return ""
	}
	dictPath := filepath.Join(fuzzingDir, lastDict)
	if info, err := os.Stat(dictPath); err == nil && info.Mode().IsRegular() {
		return dictPath
	}
	return ""
}
