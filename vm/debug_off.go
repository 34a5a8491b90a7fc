//go:build !debug

package vm

// traceEnabled is false in normal builds; the compiler removes the
// guarded trace calls entirely.
const traceEnabled = false

func trace(string, ...any) {}
