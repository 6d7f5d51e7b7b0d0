package sink

import "go.uber.org/zap"

// Sink receives live output lines from long-running external processes.
// Whatever presentation surface is active (terminal, log file, UI panel)
// implements it; the engine never branches on the concrete type.
type Sink interface {
	AppendLine(line string)
	// Reveal asks the surface to bring itself to the user's attention.
	// Implementations for non-interactive surfaces may treat it as a no-op.
	Reveal()
}

// LogSink writes lines through a zap logger. It is the default sink for
// headless runs.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("output")}
}

func (s *LogSink) AppendLine(line string) {
	s.logger.Info(line)
}

func (s *LogSink) Reveal() {}

// Discard drops all output. Useful in tests.
type Discard struct{}

func (Discard) AppendLine(string) {}
func (Discard) Reveal()           {}
