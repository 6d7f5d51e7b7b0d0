package crash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputDirName(t *testing.T) {
	assert.Equal(t, "codeforge-parser-fuzz-output", OutputDirName("parser"))
}

func TestExtractFuzzerName(t *testing.T) {
	cases := []struct {
		path   string
		fuzzer string
		ok     bool
	}{
		{"codeforge-parser-fuzz-output", "parser", true},
		{"/ws/fuzzing/codeforge-parser-fuzz-output", "parser", true},
		{`C:\ws\fuzzing\codeforge-parser-fuzz-output`, "parser", true},
		{"codeforge-multi-word-name-fuzz-output", "multi-word-name", true},
		{"codeforge-parser-fuzz-output-old", "", false},
		{"parser-fuzz-output", "", false},
		{"random-dir", "", false},
	}
	for _, tc := range cases {
		fuzzer, ok := ExtractFuzzerName(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.fuzzer, fuzzer, tc.path)
	}
}

func TestFuzzerNameFromTarget(t *testing.T) {
	assert.Equal(t, "parser", FuzzerNameFromTarget("codeforge-parser-fuzz"))
	assert.Equal(t, "parser", FuzzerNameFromTarget("parser-fuzz"))
	assert.Equal(t, "parser", FuzzerNameFromTarget("parser"))
}

func TestCrashFileConvention(t *testing.T) {
	assert.True(t, IsCrashFile("crash-0a1b2c"))
	assert.False(t, IsCrashFile("timeout-0a1b2c"))
	assert.False(t, IsCrashFile("oom-0a1b2c"))

	assert.Equal(t, "0a1b2c", HashFromCrashFile("crash-0a1b2c"))
}
