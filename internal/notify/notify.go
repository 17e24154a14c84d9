package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Level classifies a user-visible notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible message emitted by a flow. The UI layer decides
// how to render it; the core only decides when one is due.
type Notice struct {
	Level Level
	Title string
	Body  string
}

// Notifier delivers notices to whatever surface the host application has.
type Notifier interface {
	Push(ctx context.Context, notice Notice) error
}

// LoggerNotifier writes notices to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Push writes the notice to the structured logger.
func (n *LoggerNotifier) Push(_ context.Context, notice Notice) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notice", "level", string(notice.Level), "title", notice.Title, "body", notice.Body)
	return nil
}

// ConsoleNotifier renders notices as plain lines, for the CLI.
type ConsoleNotifier struct {
	Out io.Writer
}

// Push prints the notice as "[LEVEL] Title: Body".
func (n ConsoleNotifier) Push(_ context.Context, notice Notice) error {
	_, err := fmt.Fprintf(n.Out, "[%s] %s: %s\n", strings.ToUpper(string(notice.Level)), notice.Title, notice.Body)
	return err
}

// Recorder captures notices in memory for tests.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Push records the notice.
func (r *Recorder) Push(_ context.Context, notice Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	return nil
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}
