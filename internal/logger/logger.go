package logger

import (
	"github.com/fatih/color" // Colored console output for the leveled log stream
)

// The log stream is a set of colorized printf-style functions, one per level.
// Every user-visible message during a provisioning run goes through these;
// there is no structured log sink, the console is the interface.

// Info logs progress messages in cyan.
var Info = color.New(color.FgCyan).PrintfFunc()

// Success logs completed-step messages in green.
// The closing verification report leans on this level heavily.
var Success = color.New(color.FgGreen).PrintfFunc()

// Warn logs warnings in bright magenta. Warnings never fail the run;
// they are how non-fatal problems (config fallback, missing entry points
// during verification) reach the user.
var Warn = color.New(color.FgHiMagenta).PrintfFunc()

// Error logs error messages in red. An Error line accompanies every
// per-tool failed result, but the run itself keeps going.
var Error = color.New(color.FgRed).PrintfFunc()

// Debug logs diagnostic messages when enabled via Init, and is a no-op
// otherwise. It starts as a no-op so packages can log before Init runs.
var Debug = func(format string, a ...any) {}

// Init enables or disables debug logging. Called once from the root command's
// PersistentPreRun based on the --debug flag.
func Init(enableDebug bool) {
	if enableDebug {
		Debug = color.New(color.FgHiBlack).PrintfFunc()
	} else {
		Debug = func(format string, a ...any) {}
	}
}
