package testing

import (
	"fmt"
	"io"
	"os"
)

// stdoutLogger implements TestLogger for CLI mode
type stdoutLogger struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
	debug   bool
}

// NewStdoutLogger creates a logger that outputs to stdout/stderr
func NewStdoutLogger(verbose, debug bool) TestLogger {
	return NewWriterLogger(os.Stdout, os.Stderr, verbose, debug)
}

// NewWriterLogger creates a logger writing regular output to out and errors to errOut
func NewWriterLogger(out, errOut io.Writer, verbose, debug bool) TestLogger {
	return &stdoutLogger{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		debug:   debug,
	}
}

func (l *stdoutLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		fmt.Fprintf(l.out, format, args...)
	}
}

func (l *stdoutLogger) Info(format string, args ...interface{}) {
	if l.verbose || l.debug {
		fmt.Fprintf(l.out, format, args...)
	}
}

func (l *stdoutLogger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.errOut, format, args...)
}

func (l *stdoutLogger) IsDebugEnabled() bool {
	return l.debug
}

func (l *stdoutLogger) IsVerboseEnabled() bool {
	return l.verbose
}

// silentLogger implements TestLogger for structured output modes, where
// anything but the rendered report would corrupt stdout
type silentLogger struct {
	verbose bool
	debug   bool
}

// NewSilentLogger creates a logger that suppresses all output
func NewSilentLogger(verbose, debug bool) TestLogger {
	return &silentLogger{
		verbose: verbose,
		debug:   debug,
	}
}

func (l *silentLogger) Debug(string, ...interface{}) {}

func (l *silentLogger) Info(string, ...interface{}) {}

func (l *silentLogger) Error(string, ...interface{}) {}

func (l *silentLogger) IsDebugEnabled() bool {
	return l.debug
}

func (l *silentLogger) IsVerboseEnabled() bool {
	return l.verbose
}
