// Package logger provides levelled logging for Lorekeeper.
// Debug, Info and Section output is printed only in verbose mode so users can
// follow the retrieval pipeline with --verbose. Warnings and degraded-mode
// notices are always printed: operators must see when the router or an
// embedding backend is running in a fallback path.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

var (
	mu       sync.RWMutex
	verbose  bool
	output   io.Writer = os.Stderr
	degraded atomic.Int64
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	printVerbose("[DEBUG] ", format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	printVerbose("[INFO] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Warn prints a warning message regardless of verbose mode.
func Warn(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
}

// Degraded reports that a component fell back to a degraded code path.
// It is always printed and increments the process-wide degraded counter.
func Degraded(component, reason string) {
	degraded.Add(1)
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, "[DEGRADED] %s: %s\n", component, reason)
}

// DegradedCount returns how many degraded notices were logged since start
// (or since the last ResetDegradedCount).
func DegradedCount() int64 {
	return degraded.Load()
}

// ResetDegradedCount zeroes the degraded counter.
func ResetDegradedCount() {
	degraded.Store(0)
}

// printVerbose takes the write lock: the output writer is not assumed to be
// safe for concurrent use.
func printVerbose(prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}
