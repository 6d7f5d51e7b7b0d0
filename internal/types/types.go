package types

import "time"

// FuzzTarget is a single fuzz harness discovered inside a build preset.
type FuzzTarget struct {
	Preset string `json:"preset"`
	Name   string `json:"name"`
}

// BuildOutcome records the result of one target's build attempt. The set of
// outcomes for a preset is kept in full even when some targets fail.
type BuildOutcome struct {
	Target         string `json:"target"`
	Success        bool   `json:"success"`
	ExecutablePath string `json:"executable_path,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Output         string `json:"output,omitempty"`
	ExitCode       int    `json:"exit_code,omitempty"`
	Hint           string `json:"hint,omitempty"`
}

// FuzzRunResult records one fuzzer execution. A crash exit code is an
// expected outcome, not an error.
type FuzzRunResult struct {
	Target   string          `json:"target"`
	ExitCode int             `json:"exit_code"`
	Output   string          `json:"output,omitempty"`
	Crashed  bool            `json:"crashed"`
	Crashes  []CrashArtifact `json:"crashes,omitempty"`
}

// CrashArtifact is a saved fuzzer input that caused a crash, discovered by
// the crash-<hash> naming convention under a fuzzer's output directory.
type CrashArtifact struct {
	Fuzzer    string    `json:"fuzzer"`
	Hash      string    `json:"hash"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// FuzzerStatus is the lifecycle state tracked per fuzzer in the metadata cache.
type FuzzerStatus string

const (
	StatusDiscovered FuzzerStatus = "discovered"
	StatusBuilding   FuzzerStatus = "building"
	StatusBuilt      FuzzerStatus = "built"
	StatusRunning    FuzzerStatus = "running"
	StatusFailed     FuzzerStatus = "failed"
)

// FuzzerMetadata is one cached discovery record.
type FuzzerMetadata struct {
	Name      string          `json:"name"`
	Preset    string          `json:"preset"`
	Status    FuzzerStatus    `json:"status"`
	Crashes   []CrashArtifact `json:"crashes"`
	OutputDir string          `json:"output_dir"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WorkflowError is one structured failure collected during a workflow run.
// It carries enough context to act on without re-running the workflow.
type WorkflowError struct {
	Stage   string         `json:"stage"`
	Preset  string         `json:"preset,omitempty"`
	Targets []string       `json:"targets,omitempty"`
	Message string         `json:"message"`
	Details []BuildOutcome `json:"details,omitempty"`
}

// WorkflowReport aggregates one full orchestration run. It is produced once
// and never mutated afterwards.
type WorkflowReport struct {
	PresetsTotal     int             `json:"presets_total"`
	PresetsProcessed int             `json:"presets_processed"`
	TargetsTotal     int             `json:"targets_total"`
	TargetsBuilt     int             `json:"targets_built"`
	CrashesFound     int             `json:"crashes_found"`
	Errors           []WorkflowError `json:"errors"`
}
