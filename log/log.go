package log

import (
	"fmt"
	"os"
)

// DebugOn enables DEBUG output when true. The morph CLI flips this from
// -D/--debug or the DEBUG environment variable.
var DebugOn = false

// TraceOn enables TRACE output (very verbose). Implies nothing about
// DebugOn; the CLI turns both on for -T/--trace.
var TraceOn = false

// DEBUG prints a debug message to stderr when debugging is enabled.
func DEBUG(format string, args ...interface{}) {
	if DebugOn {
		fmt.Fprintf(os.Stderr, "DEBUG> "+format+"\n", args...)
	}
}

// TRACE prints a trace message to stderr when tracing is enabled.
func TRACE(format string, args ...interface{}) {
	if TraceOn {
		fmt.Fprintf(os.Stderr, "TRACE> "+format+"\n", args...)
	}
}

// PrintfStdErr writes directly to stderr, regardless of debug settings.
func PrintfStdErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
