package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger provides leveled, timestamped logging for the pipeline.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	debug *log.Logger

	verbose bool
	now     func() time.Time
}

// New creates a Logger writing info and debug lines to out and warnings to
// errOut. Debug lines are dropped unless verbose is set.
func New(out, errOut io.Writer, verbose bool) *Logger {
	return &Logger{
		info:    log.New(out, "", 0),
		warn:    log.New(errOut, "", 0),
		debug:   log.New(out, "", 0),
		verbose: verbose,
		now:     time.Now,
	}
}

// NewStd creates a Logger on stdout/stderr.
func NewStd(verbose bool) *Logger {
	return New(os.Stdout, os.Stderr, verbose)
}

// Discard returns a Logger that writes nothing.
func Discard() *Logger {
	return New(io.Discard, io.Discard, false)
}

func (l *Logger) timestamp() string {
	return l.now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf("[%s] INFO  %s", l.timestamp(), fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf("[%s] WARN  %s", l.timestamp(), fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.debug.Printf("[%s] DEBUG %s", l.timestamp(), fmt.Sprintf(format, args...))
}
