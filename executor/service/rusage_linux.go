//go:build linux

package service

import (
	"os"
	"syscall"
)

// peakMemoryKb reports ru_maxrss, which linux already expresses in kilobytes.
func peakMemoryKb(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok {
		return int64(ru.Maxrss)
	}
	return 0
}
