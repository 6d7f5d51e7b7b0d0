package container

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunSpec describes one container launch.
type RunSpec struct {
	WorkspaceRoot string
	Image         string
	Cmd           []string
	Workdir       string
	Name          string // assign a discoverable name when non-empty
	Interactive   bool   // attach the caller's terminal
	AutoRemove    bool
	Env           map[string]string
	ExtraArgs     []string
}

// ExitStatus is the final outcome of a container process.
type ExitStatus struct {
	Code int
	Err  error // spawn or wait error, nil for a plain non-zero exit
}

// Handle is a running container process. Output lines stream through
// Lines(); Wait blocks until the process exits.
type Handle struct {
	Name string

	lines chan string
	done  chan ExitStatus

	mu     sync.Mutex
	status *ExitStatus
}

func (h *Handle) Lines() <-chan string {
	return h.lines
}

func (h *Handle) Wait() ExitStatus {
	h.mu.Lock()
	if h.status != nil {
		st := *h.status
		h.mu.Unlock()
		return st
	}
	h.mu.Unlock()

	st := <-h.done
	h.mu.Lock()
	h.status = &st
	h.mu.Unlock()
	return st
}

// NewCompletedHandle returns a handle whose output and exit status are
// already known. Fake runtimes standing in for docker use it.
func NewCompletedHandle(name string, lines []string, status ExitStatus) *Handle {
	handle := &Handle{
		Name:  name,
		lines: make(chan string, len(lines)),
		done:  make(chan ExitStatus, 1),
	}
	for _, line := range lines {
		handle.lines <- line
	}
	close(handle.lines)
	handle.done <- status
	return handle
}

// Status is the runtime's view of one container, queried by id or exact name.
type Status struct {
	Exists  bool
	Running bool
	ID      string
}

// Runtime is the container-runtime contract the engine depends on. The
// production implementation shells out to the docker CLI; tests substitute
// a fake.
type Runtime interface {
	Run(ctx context.Context, spec RunSpec) (*Handle, error)
	Inspect(ctx context.Context, ref string) (Status, error)
	Stop(ctx context.Context, ref string, timeout time.Duration) error
	Kill(ctx context.Context, ref string) error
	Remove(ctx context.Context, ref string) error
}

type dockerCLI struct {
	logger *zap.Logger
}

func NewDockerRuntime(logger *zap.Logger) Runtime {
	return &dockerCLI{logger: logger.Named("docker")}
}

func (d *dockerCLI) Run(ctx context.Context, spec RunSpec) (*Handle, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("run spec has no image")
	}

	args := []string{"run"}
	if spec.AutoRemove {
		args = append(args, "--rm")
	}
	if spec.Interactive {
		args = append(args, "-it")
	}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	if spec.WorkspaceRoot != "" {
		args = append(args, "-v", spec.WorkspaceRoot+":"+spec.WorkspaceRoot)
	}
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	for name, value := range spec.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", name, value))
	}
	args = append(args, spec.ExtraArgs...)
	args = append(args, spec.Image)
	args = append(args, spec.Cmd...)

	cmd := exec.CommandContext(ctx, "docker", args...)
	d.logger.Debug("running container", zap.String("command", cmd.String()))

	handle := &Handle{
		Name:  spec.Name,
		lines: make(chan string, 256),
		done:  make(chan ExitStatus, 1),
	}

	if spec.Interactive {
		// Interactive sessions own the caller's terminal; nothing to stream.
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start container: %w", err)
		}
		close(handle.lines)
		go func() {
			handle.done <- waitStatus(cmd)
		}()
		return handle, nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	var wg sync.WaitGroup
	for _, pipe := range []interface{ Read([]byte) (int, error) }{stdout, stderr} {
		wg.Add(1)
		go func(r interface{ Read([]byte) (int, error) }) {
			defer wg.Done()
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				handle.lines <- scanner.Text()
			}
		}(pipe)
	}

	go func() {
		wg.Wait()
		close(handle.lines)
		handle.done <- waitStatus(cmd)
	}()

	return handle, nil
}

func waitStatus(cmd *exec.Cmd) ExitStatus {
	err := cmd.Wait()
	if err == nil {
		return ExitStatus{Code: 0}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return ExitStatus{Code: exitErr.ExitCode()}
	}
	return ExitStatus{Code: -1, Err: err}
}

func (d *dockerCLI) Inspect(ctx context.Context, ref string) (Status, error) {
	cmd := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}} {{.Id}}", ref)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		if strings.Contains(errOut.String(), "No such") {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("docker inspect %s: %w", ref, err)
	}
	fields := strings.Fields(out.String())
	status := Status{Exists: true}
	if len(fields) > 0 {
		status.Running = fields[0] == "true"
	}
	if len(fields) > 1 {
		status.ID = fields[1]
	}
	return status, nil
}

func (d *dockerCLI) Stop(ctx context.Context, ref string, timeout time.Duration) error {
	seconds := int(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	cmd := exec.CommandContext(ctx, "docker", "stop", "-t", fmt.Sprintf("%d", seconds), ref)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker stop %s: %w: %s", ref, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (d *dockerCLI) Kill(ctx context.Context, ref string) error {
	cmd := exec.CommandContext(ctx, "docker", "kill", ref)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker kill %s: %w: %s", ref, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (d *dockerCLI) Remove(ctx context.Context, ref string) error {
	cmd := exec.CommandContext(ctx, "docker", "rm", "-f", ref)
	if output, err := cmd.CombinedOutput(); err != nil {
		// a container that is already gone counts as removed
		if strings.Contains(string(output), "No such") {
			return nil
		}
		return fmt.Errorf("docker rm %s: %w: %s", ref, err, strings.TrimSpace(string(output)))
	}
	return nil
}
