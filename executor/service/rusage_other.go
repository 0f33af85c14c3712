//go:build !linux

package service

import "os"

func peakMemoryKb(state *os.ProcessState) int64 {
	return 0
}
