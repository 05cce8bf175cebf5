// Package log provides the agent's diagnostic channel using zap.
//
// Every line is rendered as
//
//	[YYYY-MM-DD HH:MM:SS] [<agent-name>] <message>
//
// and written to both a date-named file and the console under one lock.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultName is the agent name used in log lines and the log file name.
const DefaultName = "RASPSimple_Native"

// Options configures a Logger.
type Options struct {
	Name    string           // agent name, defaults to DefaultName
	Dir     string           // directory for the daily log file, defaults to cwd
	Console io.Writer        // console stream, defaults to os.Stderr
	Now     func() time.Time // clock, defaults to time.Now
}

// Logger wraps zap.Logger with agent-specific helpers.
type Logger struct {
	*zap.Logger
	name string
	sink *dailySink
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given options.
// Safe to call multiple times; only the first call takes effect.
func Init(opts Options) {
	once.Do(func() {
		L = New(opts)
	})
}

// Default returns the global logger, initializing it with defaults if needed.
func Default() *Logger {
	Init(Options{})
	return L
}

// New creates a new Logger instance.
func New(opts Options) *Logger {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sink := &dailySink{
		name:    opts.Name,
		dir:     opts.Dir,
		now:     opts.Now,
		console: opts.Console,
	}

	core := zapcore.NewCore(newLineEncoder(), sink, zapcore.DebugLevel)
	logger := zap.New(core, zap.WithClock(clock(opts.Now))).Named(opts.Name)

	return &Logger{Logger: logger, name: opts.Name, sink: sink}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), name: DefaultName}
}

// newLineEncoder renders "[time] [name] message"; level and caller are omitted.
func newLineEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:    "ts",
		NameKey:    "agent",
		MessageKey: "msg",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format("2006-01-02 15:04:05") + "]")
		},
		EncodeName: func(name string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + name + "]")
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	})
}

type clock func() time.Time

func (c clock) Now() time.Time { return c() }

func (c clock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

// Name returns the agent name stamped on every line.
func (l *Logger) Name() string {
	return l.name
}

// FilePath returns the daily log file path, or "" if no file is open.
func (l *Logger) FilePath() string {
	if l.sink == nil {
		return ""
	}
	return l.sink.Path()
}

// Close releases the log file. The agent itself never calls this; the file
// lives for the whole process.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Logf formats and writes a single line.
func (l *Logger) Logf(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// Hooked logs that a bind event for a watched method was redirected.
func (l *Logger) Hooked(class, method string) {
	l.Logf("NativeMethodBind: hooking %s %s", class, method)
}

// Captured logs the first capture of an original entry point.
func (l *Logger) Captured(target string, entry any) {
	l.Logf("Saved original %s address %p", target, entry)
}

// Intercepted logs a decoded call attempt.
func (l *Logger) Intercepted(target, detail string) {
	l.Logf("Intercepted %s %s", target, detail)
}

// Blocked logs a policy block. The timestamp prefix inside the message mirrors
// the audit line format consumed by existing log scrapers.
func (l *Logger) Blocked(at time.Time, command string) {
	l.Logf("%s Blocked dangerous command at: %s", at.Format("2006-01-02 15:04:05"), command)
}

// FailClosed logs a call blocked because the original entry was never captured.
func (l *Logger) FailClosed(target string) {
	l.Logf("Original %s pointer not found - blocking by default", target)
}

// Failure logs a failed host call with its error.
func (l *Logger) Failure(what string, err error) {
	l.Error(what+" failed", zap.Error(err))
}

// Frame logs one stack frame line.
func (l *Logger) Frame(frame fmt.Stringer) {
	l.Info(frame.String())
}
