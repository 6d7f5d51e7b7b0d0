// Package pathmap translates host filesystem paths into their equivalent
// inside a container whose workspace is bind-mounted at the identical
// absolute path.
package pathmap

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	ErrMissingArgument      = errors.New("path and workspace root are both required")
	ErrPathOutsideWorkspace = errors.New("path is outside the workspace root")
)

var driveLetterRe = regexp.MustCompile(`^[A-Za-z]:`)

// HostToContainer maps hostPath to the equivalent path inside a container
// with the workspace mounted at the same absolute location. The workspace
// root may use Windows-style separators and a drive-letter prefix even when
// the engine runs elsewhere; the result always uses Unix separators.
func HostToContainer(hostPath, workspaceRoot string) (string, error) {
	if hostPath == "" || workspaceRoot == "" {
		return "", ErrMissingArgument
	}

	normHost := normalize(hostPath)
	normRoot := normalize(workspaceRoot)

	if normHost != normRoot && !strings.HasPrefix(normHost, normRoot+"/") {
		return "", fmt.Errorf("%w: %s not under %s", ErrPathOutsideWorkspace, hostPath, workspaceRoot)
	}

	rel := strings.TrimPrefix(normHost, normRoot)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return normRoot, nil
	}
	return path.Join(normRoot, rel), nil
}

// ContainerToHost is the identity mapping under the 1:1 mount design. It is
// kept as a named seam so callers do not hardcode that assumption.
func ContainerToHost(containerPath string) string {
	return containerPath
}

// normalize converts separators to '/', strips a drive-letter prefix, and
// collapses redundant separators while keeping the path absolute.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = driveLetterRe.ReplaceAllString(p, "")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	return p
}
