package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBackend(t *testing.T) {
	ninjaDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ninjaDir, "build.ninja"), []byte("rule cc\n"), 0644))
	assert.Equal(t, BackendNinja, DetectBackend(ninjaDir))

	makeDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(makeDir, "Makefile"), []byte("all:\n"), 0644))
	assert.Equal(t, BackendMake, DetectBackend(makeDir))

	assert.Equal(t, BackendUnknown, DetectBackend(t.TempDir()))
}

func TestTargetListCommand(t *testing.T) {
	cmd, err := TargetListCommand(BackendNinja, "/ws/build")
	require.NoError(t, err)
	assert.Equal(t, []string{"ninja", "-C", "/ws/build", "-t", "targets", "all"}, cmd)

	cmd, err = TargetListCommand(BackendMake, "/ws/build")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake", "--build", "/ws/build", "--target", "help"}, cmd)

	_, err = TargetListCommand(BackendUnknown, "/ws/build")
	assert.Error(t, err)
}

func TestParseNinjaTargets(t *testing.T) {
	output := `lib/libparser.a: phony
bin/parser-fuzz: CXX_EXECUTABLE_LINKER
bin/decoder-fuzz: CXX_EXECUTABLE_LINKER
bin/parser-fuzz: phony
all: phony
`
	targets := ParseTargets(BackendNinja, output)
	assert.Equal(t, []string{"libparser.a", "parser-fuzz", "decoder-fuzz", "all"}, targets)
}

func TestParseMakeTargets(t *testing.T) {
	output := `The following are some of the valid targets for this Makefile:
... all (the default if no target is provided)
... clean
... parser-fuzz
... decoder-fuzz
`
	targets := ParseTargets(BackendMake, output)
	assert.Equal(t, []string{"all", "clean", "parser-fuzz", "decoder-fuzz"}, targets)
}

func TestParseTargetsUnknownBackend(t *testing.T) {
	assert.Nil(t, ParseTargets(BackendUnknown, "anything"))
}

func TestIsFuzzTarget(t *testing.T) {
	assert.True(t, IsFuzzTarget("parser-fuzz"))
	assert.True(t, IsFuzzTarget("codeforge-decoder-fuzz"))
	assert.False(t, IsFuzzTarget("parser"))
	assert.False(t, IsFuzzTarget("fuzz-parser"))
	assert.False(t, IsFuzzTarget("parser-fuzzer"))
}
