package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveHint(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		wantHint string
	}{
		{
			name:     "missing libfuzzer link",
			text:     "undefined reference to `LLVMFuzzerTestOneInput'",
			wantHint: "libFuzzer",
		},
		{
			name:     "undefined symbol",
			text:     "ld: error: undefined symbol: parse_header",
			wantHint: "target_link_libraries",
		},
		{
			name:     "missing file",
			text:     "fatal error: proto/decoder.h: No such file or directory",
			wantHint: "missing",
		},
		{
			name:     "permission",
			text:     "cannot create directory build: Permission denied",
			wantHint: "bind mount",
		},
		{
			name:     "toolchain",
			text:     "clang: error: unsupported option '-fconcepts'",
			wantHint: "toolchain",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hint := DeriveHint(tc.text)
			assert.Contains(t, hint, tc.wantHint)
		})
	}
}

func TestDeriveHintFirstMatchWins(t *testing.T) {
	// both the libFuzzer and the undefined-symbol rules match; the
	// libFuzzer rule is more specific and comes first
	text := "undefined reference to `LLVMFuzzerTestOneInput'"
	assert.True(t, strings.Contains(DeriveHint(text), "-fsanitize=fuzzer"))
}

func TestDeriveHintNoMatch(t *testing.T) {
	assert.Empty(t, DeriveHint("everything is fine"))
	assert.Empty(t, DeriveHint(""))
}
