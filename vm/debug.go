//go:build debug

package vm

import (
	"fmt"
	"os"
)

// traceEnabled turns on per-instruction execution tracing. Build with
// -tags debug to get a disassembly-level log on stderr.
const traceEnabled = true

func trace(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}
