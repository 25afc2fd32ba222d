package vm

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Process arguments
// ---------------------------------------------------------------------------

var args atomic.Pointer[[]string]

// SetArgs records the process arguments. Only the first call has effect.
func SetArgs(a []string) {
	cp := append([]string(nil), a...)
	args.CompareAndSwap(nil, &cp)
}

// NumArgs returns the number of process arguments.
func NumArgs() int {
	if a := args.Load(); a != nil {
		return len(*a)
	}
	return 0
}

// Arg returns process argument i, or "" when out of range.
func Arg(i int) string {
	a := args.Load()
	if a == nil || i < 0 || i >= len(*a) {
		return ""
	}
	return (*a)[i]
}

// ---------------------------------------------------------------------------
// System information registry
// ---------------------------------------------------------------------------

// Fixed system information indices.
const (
	InfoBackend = iota
	InfoOS
	InfoArch
	InfoVersion
)

// Version is the runtime version reported under InfoVersion.
const Version = "0.1.0"

var (
	sysInfoMu sync.RWMutex
	sysInfo   = map[int]func() string{
		InfoBackend: func() string { return "go" },
		InfoOS:      func() string { return runtime.GOOS },
		InfoArch:    func() string { return runtime.GOARCH },
		InfoVersion: func() string { return Version },
	}
)

// RegisterSystemInfo adds or replaces the entry at index.
func RegisterSystemInfo(index int, fn func() string) {
	sysInfoMu.Lock()
	defer sysInfoMu.Unlock()
	sysInfo[index] = fn
}

// SystemInfo returns the entry at index.
func SystemInfo(index int) (string, bool) {
	sysInfoMu.RLock()
	fn, ok := sysInfo[index]
	sysInfoMu.RUnlock()
	if !ok {
		return "", false
	}
	return fn(), true
}
