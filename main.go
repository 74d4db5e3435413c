package main

import (
	"devstrap/cmd" // CLI commands and execution logic
)

// main delegates to cmd.Execute(), which owns argument parsing and command
// dispatch.
//
// devstrap provisions a non-administrator developer environment from a
// declarative JSON options file:
//   - Downloads portable tool distributions (version control, CLI utilities,
//     language runtimes, editors, terminal) into a user-writable root
//   - Extracts archives through an ordered list of backends, since the
//     target platform has no single universal decompressor
//   - Publishes stable entry points into one bin directory, with
//     version-qualified names for multi-version runtimes and unqualified
//     names owned by the declared default version
//   - Rewrites the shell profile and git identity from templates, backing up
//     whatever was there before
//   - Re-runs idempotently: a tool whose marker path already exists is
//     skipped without any network or extraction work
//
// Error handling strategy: per-tool failures are logged and collected, and
// the run continues with the next tool; the process exits non-zero only when
// the run cannot start at all — an enabled category has no catalog backing,
// or the destination layout cannot be created. The closing verification
// report, not the exit code, tells the user what is actually present.
func main() {
	cmd.Execute()
}
