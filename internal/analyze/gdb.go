package analyze

// DebuggerOptions controls how the GDB invocation is assembled.
type DebuggerOptions struct {
	Batch    bool     // exit after the scripted commands run
	Quiet    bool     // suppress the introductory banner
	Commands []string // pre-scripted commands, each passed via -ex
}

// BuildDebuggerCommand builds the GDB argument list for a fuzzer executable
// and a crash artifact. Pure function of its inputs: optional flags come
// before the --args separator, the crash file is handed to the fuzzer as its
// single input argument.
func BuildDebuggerCommand(fuzzerPath, crashPath string, opts DebuggerOptions) []string {
	args := []string{"gdb"}
	if opts.Batch {
		args = append(args, "--batch")
	}
	if opts.Quiet {
		args = append(args, "-q")
	}
	for _, command := range opts.Commands {
		args = append(args, "-ex", command)
	}
	return append(args, "--args", fuzzerPath, crashPath)
}
