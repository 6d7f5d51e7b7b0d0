package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostToContainerNested(t *testing.T) {
	mapped, err := HostToContainer("/home/dev/project/fuzzing/crash-abc", "/home/dev/project")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/project/fuzzing/crash-abc", mapped)
}

func TestHostToContainerWorkspaceRootItself(t *testing.T) {
	mapped, err := HostToContainer("/home/dev/project", "/home/dev/project")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/project", mapped)
}

func TestHostToContainerWindowsRoot(t *testing.T) {
	mapped, err := HostToContainer(`C:\Users\dev\project\fuzzing\crash-abc`, `C:\Users\dev\project`)
	require.NoError(t, err)
	assert.Equal(t, "/Users/dev/project/fuzzing/crash-abc", mapped)
}

func TestHostToContainerMixedSeparators(t *testing.T) {
	mapped, err := HostToContainer(`C:\Users\dev\project/fuzzing/crash-abc`, `C:/Users/dev/project`)
	require.NoError(t, err)
	assert.Equal(t, "/Users/dev/project/fuzzing/crash-abc", mapped)
}

func TestHostToContainerOutsideWorkspace(t *testing.T) {
	_, err := HostToContainer("/tmp/other/crash-abc", "/home/dev/project")
	assert.ErrorIs(t, err, ErrPathOutsideWorkspace)
}

func TestHostToContainerSiblingPrefixIsOutside(t *testing.T) {
	// /home/dev/project-2 shares a string prefix but is not nested
	_, err := HostToContainer("/home/dev/project-2/file", "/home/dev/project")
	assert.ErrorIs(t, err, ErrPathOutsideWorkspace)
}

func TestHostToContainerMissingArguments(t *testing.T) {
	_, err := HostToContainer("", "/home/dev/project")
	assert.ErrorIs(t, err, ErrMissingArgument)

	_, err = HostToContainer("/home/dev/project/file", "")
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestContainerToHostIsIdentity(t *testing.T) {
	assert.Equal(t, "/home/dev/project/file", ContainerToHost("/home/dev/project/file"))
}
